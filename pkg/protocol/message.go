package protocol

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/vango-dev/vbridge/pkg/bridge"
	"github.com/vango-dev/vbridge/pkg/vdom"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Version is the protocol version spoken by this package.
const Version uint8 = 1

// Hello is the first frame a renderer sends.
type Hello struct {
	Version  uint8
	Renderer string // Free-form renderer name, for logs
}

// EncodeHello encodes a Hello payload.
func EncodeHello(h *Hello) []byte {
	e := NewEncoder()
	e.WriteByte(h.Version)
	e.WriteString(h.Renderer)
	return e.Bytes()
}

// DecodeHello decodes a Hello payload.
func DecodeHello(data []byte) (*Hello, error) {
	d := NewDecoder(data)
	h := &Hello{}
	var err error
	if h.Version, err = d.ReadByte(); err != nil {
		return nil, malformed("hello", err)
	}
	if h.Renderer, err = d.ReadString(); err != nil {
		return nil, malformed("hello", err)
	}
	if err := d.Finish(); err != nil {
		return nil, malformed("hello", err)
	}
	return h, nil
}

// EncodeCommand encodes a bridge command. Props travel as JSON, so they must
// be JSON-encodable.
func EncodeCommand(cmd bridge.Command) ([]byte, error) {
	var props []byte
	if len(cmd.Props) > 0 {
		var err error
		if props, err = json.Marshal(cmd.Props); err != nil {
			return nil, fmt.Errorf("protocol: encode props of %q: %w", cmd.Key, err)
		}
	}

	e := NewEncoder()
	for _, s := range []string{
		string(cmd.Op), cmd.Key, cmd.Tag, cmd.Text, cmd.OldText, cmd.Parent, cmd.Before,
	} {
		e.WriteString(s)
	}
	e.WriteStringMap(cmd.Attrs)
	e.WriteBoolMap(cmd.Class)
	e.WriteStringMap(cmd.Style)
	e.WriteLenBytes(props)
	return e.Bytes(), nil
}

// DecodeCommand decodes a command payload. JSON numbers in props decode as
// float64.
func DecodeCommand(data []byte) (bridge.Command, error) {
	var cmd bridge.Command
	d := NewDecoder(data)

	var op string
	for _, dst := range []*string{
		&op, &cmd.Key, &cmd.Tag, &cmd.Text, &cmd.OldText, &cmd.Parent, &cmd.Before,
	} {
		s, err := d.ReadString()
		if err != nil {
			return bridge.Command{}, malformed("command", err)
		}
		*dst = s
	}
	cmd.Op = bridge.Op(op)

	var err error
	if cmd.Attrs, err = d.ReadStringMap(); err != nil {
		return bridge.Command{}, malformed("command attrs", err)
	}
	if cmd.Class, err = d.ReadBoolMap(); err != nil {
		return bridge.Command{}, malformed("command class", err)
	}
	if cmd.Style, err = d.ReadStringMap(); err != nil {
		return bridge.Command{}, malformed("command style", err)
	}
	props, err := d.ReadLenBytes()
	if err != nil {
		return bridge.Command{}, malformed("command props", err)
	}
	if len(props) > 0 {
		if err := json.Unmarshal(props, &cmd.Props); err != nil {
			return bridge.Command{}, malformed("command props", err)
		}
	}
	if err := d.Finish(); err != nil {
		return bridge.Command{}, malformed("command", err)
	}
	return cmd, nil
}

// Query asks the renderer for an element by id attribute.
type Query struct {
	Seq uint64
	ID  string
}

// EncodeQuery encodes a Query payload.
func EncodeQuery(q *Query) []byte {
	e := NewEncoder()
	e.WriteUvarint(q.Seq)
	e.WriteString(q.ID)
	return e.Bytes()
}

// DecodeQuery decodes a Query payload.
func DecodeQuery(data []byte) (*Query, error) {
	d := NewDecoder(data)
	q := &Query{}
	var err error
	if q.Seq, err = d.ReadUvarint(); err != nil {
		return nil, malformed("query", err)
	}
	if q.ID, err = d.ReadString(); err != nil {
		return nil, malformed("query", err)
	}
	if err := d.Finish(); err != nil {
		return nil, malformed("query", err)
	}
	return q, nil
}

// QueryResult answers the Query with the same Seq.
type QueryResult struct {
	Seq   uint64
	Found bool
	Tag   string
	Err   string // Renderer-side failure, empty on success
}

// EncodeQueryResult encodes a QueryResult payload.
func EncodeQueryResult(r *QueryResult) []byte {
	e := NewEncoder()
	e.WriteUvarint(r.Seq)
	e.WriteBool(r.Found)
	e.WriteString(r.Tag)
	e.WriteString(r.Err)
	return e.Bytes()
}

// DecodeQueryResult decodes a QueryResult payload.
func DecodeQueryResult(data []byte) (*QueryResult, error) {
	d := NewDecoder(data)
	r := &QueryResult{}
	var err error
	if r.Seq, err = d.ReadUvarint(); err != nil {
		return nil, malformed("query result", err)
	}
	if r.Found, err = d.ReadBool(); err != nil {
		return nil, malformed("query result", err)
	}
	if r.Tag, err = d.ReadString(); err != nil {
		return nil, malformed("query result", err)
	}
	if r.Err, err = d.ReadString(); err != nil {
		return nil, malformed("query result", err)
	}
	if err := d.Finish(); err != nil {
		return nil, malformed("query result", err)
	}
	return r, nil
}

// Event is a user event on an element.
type Event struct {
	Key    string
	Type   string
	Detail map[string]any
}

// VDOM converts e to the event handed to listeners.
func (e *Event) VDOM() vdom.Event {
	return vdom.Event{Type: e.Type, Key: e.Key, Detail: e.Detail}
}

// EncodeEvent encodes an Event payload.
func EncodeEvent(ev *Event) ([]byte, error) {
	var detail []byte
	if len(ev.Detail) > 0 {
		var err error
		if detail, err = json.Marshal(ev.Detail); err != nil {
			return nil, fmt.Errorf("protocol: encode event detail: %w", err)
		}
	}
	e := NewEncoder()
	e.WriteString(ev.Key)
	e.WriteString(ev.Type)
	e.WriteLenBytes(detail)
	return e.Bytes(), nil
}

// DecodeEvent decodes an Event payload.
func DecodeEvent(data []byte) (*Event, error) {
	d := NewDecoder(data)
	ev := &Event{}
	var err error
	if ev.Key, err = d.ReadString(); err != nil {
		return nil, malformed("event", err)
	}
	if ev.Type, err = d.ReadString(); err != nil {
		return nil, malformed("event", err)
	}
	detail, err := d.ReadLenBytes()
	if err != nil {
		return nil, malformed("event", err)
	}
	if len(detail) > 0 {
		if err := json.Unmarshal(detail, &ev.Detail); err != nil {
			return nil, malformed("event detail", err)
		}
	}
	if err := d.Finish(); err != nil {
		return nil, malformed("event", err)
	}
	return ev, nil
}

// EncodeTitle encodes a Title payload.
func EncodeTitle(title string) []byte {
	e := NewEncoder()
	e.WriteString(title)
	return e.Bytes()
}

// DecodeTitle decodes a Title payload.
func DecodeTitle(data []byte) (string, error) {
	d := NewDecoder(data)
	title, err := d.ReadString()
	if err != nil {
		return "", malformed("title", err)
	}
	if err := d.Finish(); err != nil {
		return "", malformed("title", err)
	}
	return title, nil
}
