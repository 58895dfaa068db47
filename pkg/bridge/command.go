package bridge

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/vango-dev/vbridge/pkg/vdom"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RootKey names the host's document root container.
const RootKey = "root"

// Op is a bridge command kind.
type Op string

const (
	OpCreate  Op = "create"
	OpInsert  Op = "insert"
	OpUpdate  Op = "update"
	OpRemove  Op = "remove"
	OpDestroy Op = "destroy"
	OpText    Op = "text" // text-node content update
	OpQuery   Op = "query"
)

// Command is the payload sent to the host for one element.
type Command struct {
	Op      Op                `json:"op"`
	Key     string            `json:"key"`
	Tag     string            `json:"tag,omitempty"`
	Props   map[string]any    `json:"props,omitempty"`
	Attrs   map[string]string `json:"attrs,omitempty"`
	Class   map[string]bool   `json:"class,omitempty"`
	Style   map[string]string `json:"style,omitempty"`
	Text    string            `json:"text,omitempty"`
	OldText string            `json:"oldText,omitempty"`
	Parent  string            `json:"parent,omitempty"`
	Before  string            `json:"before,omitempty"`
}

// Placement is where the host inserts an element. An empty Before appends.
type Placement struct {
	Parent string
	Before string
}

// MarshalCommand encodes cmd as JSON.
func MarshalCommand(cmd Command) ([]byte, error) {
	return json.Marshal(cmd)
}

// UnmarshalCommand decodes a JSON command.
func UnmarshalCommand(data []byte) (Command, error) {
	var cmd Command
	err := json.Unmarshal(data, &cmd)
	return cmd, err
}

// CommandFor builds the create or update payload for v. Selector shorthand
// contributes the id attribute and classes.
func CommandFor(op Op, v *vdom.VNode) Command {
	cmd := Command{
		Op:   op,
		Key:  v.HandleID(),
		Tag:  v.Tag(),
		Text: v.Text,
	}
	if v.IsText() {
		return cmd
	}

	sel := vdom.ParseSelector(v.Sel)
	d := v.Data
	if d == nil {
		d = &vdom.Data{}
	}

	if len(d.Attrs) > 0 || sel.ID != "" {
		cmd.Attrs = make(map[string]string, len(d.Attrs)+1)
		if sel.ID != "" {
			cmd.Attrs["id"] = sel.ID
		}
		for k, a := range d.Attrs {
			cmd.Attrs[k] = a
		}
	}
	if len(d.Class) > 0 || len(sel.Classes) > 0 {
		cmd.Class = make(map[string]bool, len(d.Class)+len(sel.Classes))
		for _, c := range sel.Classes {
			cmd.Class[c] = true
		}
		for c, on := range d.Class {
			cmd.Class[c] = on
		}
	}
	if len(d.Style) > 0 {
		cmd.Style = make(map[string]string, len(d.Style))
		for k, s := range d.Style {
			cmd.Style[k] = s
		}
	}
	if len(d.Props) > 0 {
		cmd.Props = make(map[string]any, len(d.Props))
		for k, p := range d.Props {
			cmd.Props[k] = p
		}
	}
	return cmd
}
