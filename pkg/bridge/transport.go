package bridge

import (
	"fmt"
	"log/slog"

	"github.com/vango-dev/vbridge/internal/errors"
)

// Sentinel errors.
var (
	ErrBridge     = errors.New("B301")
	ErrOutOfOrder = errors.New("B302")
	ErrUnknownKey = errors.New("B303")
	ErrQuery      = errors.New("B304")
)

// stage is the last command a key received.
type stage uint8

const (
	stageNone stage = iota
	stageCreated
	stageInserted
	stageUpdated
	stageRemoved
)

func (s stage) String() string {
	switch s {
	case stageCreated:
		return "create"
	case stageInserted:
		return "insert"
	case stageUpdated:
		return "update"
	case stageRemoved:
		return "remove"
	default:
		return "none"
	}
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithLogger sets the transport logger.
func WithLogger(l *slog.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = l
	}
}

// WithObserver reports every command to o.
func WithObserver(o Observer) TransportOption {
	return func(t *Transport) {
		t.observer = o
	}
}

// Transport issues commands to a Host. It is not safe for concurrent use;
// a session drives it from one goroutine.
type Transport struct {
	host     Host
	logger   *slog.Logger
	observer Observer
	stages   map[string]stage
}

// NewTransport wraps host.
func NewTransport(host Host, opts ...TransportOption) *Transport {
	t := &Transport{
		host:   host,
		logger: slog.Default(),
		stages: map[string]stage{RootKey: stageInserted},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("component", "bridge")
	return t
}

// Host returns the wrapped host.
func (t *Transport) Host() Host {
	return t.host
}

// Adopt marks key as a live element the host created on its own, such as
// one found by Query.
func (t *Transport) Adopt(key string) {
	if t.stages[key] == stageNone {
		t.stages[key] = stageInserted
	}
}

// Known reports whether key has reached the host and not been destroyed.
func (t *Transport) Known(key string) bool {
	return t.stages[key] != stageNone
}

// Live reports whether key has been created and not yet removed.
func (t *Transport) Live(key string) bool {
	s := t.stages[key]
	return s >= stageCreated && s < stageRemoved
}

// Create sends a create command.
func (t *Transport) Create(cmd Command) error {
	cmd.Op = OpCreate
	if err := t.check(cmd.Key, OpCreate, stageCreated); err != nil {
		return err
	}
	return t.advance(cmd.Key, stageCreated, t.call(OpCreate, cmd.Key, func() error {
		return t.host.CreateElement(cmd.Key, cmd)
	}))
}

// Insert places a created element, or moves a live one.
func (t *Transport) Insert(key string, at Placement) error {
	if at.Parent == "" {
		at.Parent = RootKey
	}
	if err := t.check(key, OpInsert, stageInserted); err != nil {
		return err
	}
	return t.advance(key, stageInserted, t.call(OpInsert, key, func() error {
		return t.host.InsertElement(key, at)
	}))
}

// Update sends an element update.
func (t *Transport) Update(cmd Command) error {
	cmd.Op = OpUpdate
	if err := t.check(cmd.Key, OpUpdate, stageUpdated); err != nil {
		return err
	}
	return t.advance(cmd.Key, stageUpdated, t.call(OpUpdate, cmd.Key, func() error {
		return t.host.UpdateElement(cmd.Key, cmd)
	}))
}

// UpdateText replaces a text node's content.
func (t *Transport) UpdateText(key, text string) error {
	if err := t.check(key, OpText, stageUpdated); err != nil {
		return err
	}
	return t.advance(key, stageUpdated, t.call(OpText, key, func() error {
		return t.host.UpdateTextContent(key, text)
	}))
}

// Remove detaches an element. done runs when the host has finished.
func (t *Transport) Remove(key string, done func()) error {
	if err := t.check(key, OpRemove, stageRemoved); err != nil {
		return err
	}
	return t.advance(key, stageRemoved, t.call(OpRemove, key, func() error {
		return t.host.RemoveElement(key, done)
	}))
}

// Destroy releases an element. The key may be created again afterwards.
func (t *Transport) Destroy(key string) error {
	s := t.stages[key]
	if s < stageCreated {
		return t.reject(key, OpDestroy, s)
	}
	err := t.call(OpDestroy, key, func() error {
		return t.host.DestroyElement(key)
	})
	if err == nil {
		delete(t.stages, key)
	}
	return err
}

// Query asks the host for an element by id attribute.
func (t *Transport) Query(id string) (tag string, found bool, err error) {
	err = t.call(OpQuery, id, func() error {
		var qerr error
		tag, found, qerr = t.host.QueryElementByExternalID(id)
		return qerr
	})
	if err != nil {
		return "", false, errors.New("B304").WithDetailf("id %q", id).Wrap(err)
	}
	return tag, found, nil
}

// SetTitle forwards the document title to hosts that support it.
func (t *Transport) SetTitle(title string) error {
	th, ok := t.host.(TitleHost)
	if !ok {
		return nil
	}
	return t.call("title", "", func() error {
		return th.SetTitle(title)
	})
}

// Title reads the host title. ok is false when the host has no title support.
func (t *Transport) Title() (title string, ok bool, err error) {
	th, ok := t.host.(TitleHost)
	if !ok {
		return "", false, nil
	}
	err = t.call("title", "", func() error {
		var terr error
		title, terr = th.Title()
		return terr
	})
	return title, true, err
}

// check reports whether op may follow the last stage of key.
func (t *Transport) check(key string, op Op, next stage) error {
	cur := t.stages[key]
	ok := false
	switch next {
	case stageCreated:
		ok = cur == stageNone
	case stageInserted:
		// Moves re-insert a live element.
		ok = cur >= stageCreated && cur <= stageUpdated
	case stageUpdated:
		ok = cur >= stageInserted && cur <= stageUpdated
	case stageRemoved:
		ok = cur >= stageCreated && cur < stageRemoved
	}
	if !ok {
		return t.reject(key, op, cur)
	}
	return nil
}

// advance records next for key once the host has accepted the command.
// A rejected command leaves the key where it was.
func (t *Transport) advance(key string, next stage, err error) error {
	if err == nil && next > t.stages[key] {
		t.stages[key] = next
	}
	return err
}

func (t *Transport) reject(key string, op Op, cur stage) error {
	err := errors.New("B302").WithDetailf("%s %q after %s", op, key, cur)
	t.logger.Error("command out of order", "key", key, "op", op, "last", cur.String())
	t.observe(op, err)
	return err
}

// call runs fn, turning host errors and panics into ErrBridge failures.
func (t *Transport) call(op Op, key string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("host panic: %v", r)
		}
		if err != nil {
			err = errors.New("B301").WithDetailf("%s %q", op, key).Wrap(err)
			t.logger.Error("bridge command failed", "key", key, "op", op, "err", err)
		}
		t.observe(op, err)
	}()
	return fn()
}

func (t *Transport) observe(op Op, err error) {
	if t.observer != nil {
		t.observer.ObserveCommand(op, err)
	}
}
