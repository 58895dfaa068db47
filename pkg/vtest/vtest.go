package vtest

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/vango-dev/vbridge/pkg/bridge"
)

// Host is a recording bridge.Host. It is safe for concurrent use.
type Host struct {
	mu       sync.Mutex
	commands []bridge.Command
	known    map[string]string // id attribute → tag
	fail     map[string]error
	once     map[string]bool
	panics   map[string]bool
	hold     bool
	pending  []func()
	title    string
}

// NewHost creates an empty recording host with title support.
func NewHost() *Host {
	return &Host{
		known:  make(map[string]string),
		fail:   make(map[string]error),
		once:   make(map[string]bool),
		panics: make(map[string]bool),
	}
}

// WithElement registers an element the host already renders.
func (h *Host) WithElement(id, tag string) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.known[id] = tag
	return h
}

// FailOn makes op on key return an error. An empty key matches any key.
func (h *Host) FailOn(op bridge.Op, key string) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fail[string(op)+":"+key] = fmt.Errorf("host rejected %s %s", op, key)
	return h
}

// FailOnce makes the next op on key return an error. Later calls succeed.
func (h *Host) FailOnce(op bridge.Op, key string) *Host {
	h.FailOn(op, key)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.once[string(op)+":"+key] = true
	return h
}

// PanicOn makes op on key panic. An empty key matches any key.
func (h *Host) PanicOn(op bridge.Op, key string) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.panics[string(op)+":"+key] = true
	return h
}

// HoldRemoves keeps remove completions until Release is called.
func (h *Host) HoldRemoves() *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hold = true
	return h
}

// Release completes every held remove.
func (h *Host) Release() {
	h.mu.Lock()
	pending := h.pending
	h.pending = nil
	h.mu.Unlock()
	for _, done := range pending {
		done()
	}
}

// Commands returns a copy of the recorded commands.
func (h *Host) Commands() []bridge.Command {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]bridge.Command, len(h.commands))
	copy(out, h.commands)
	return out
}

// Ops returns the recorded commands as "op:key" strings.
func (h *Host) Ops() []string {
	cmds := h.Commands()
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = string(c.Op) + ":" + c.Key
	}
	return out
}

// Last returns the most recent command for key and op.
func (h *Host) Last(op bridge.Op, key string) (bridge.Command, bool) {
	cmds := h.Commands()
	for i := len(cmds) - 1; i >= 0; i-- {
		if cmds[i].Op == op && cmds[i].Key == key {
			return cmds[i], true
		}
	}
	return bridge.Command{}, false
}

// Reset forgets recorded commands.
func (h *Host) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = nil
}

// WithoutTitle hides the title capability of h.
func WithoutTitle(h *Host) bridge.Host {
	return plainHost{h}
}

type plainHost struct{ bridge.Host }

func (h *Host) record(cmd bridge.Command) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, k := range []string{string(cmd.Op) + ":" + cmd.Key, string(cmd.Op) + ":"} {
		if h.panics[k] {
			panic("vtest: forced panic on " + k)
		}
		if err, ok := h.fail[k]; ok {
			if h.once[k] {
				delete(h.fail, k)
				delete(h.once, k)
			}
			return err
		}
	}
	h.commands = append(h.commands, cmd)
	return nil
}

func (h *Host) CreateElement(key string, cmd bridge.Command) error {
	cmd.Op, cmd.Key = bridge.OpCreate, key
	return h.record(cmd)
}

func (h *Host) UpdateElement(key string, cmd bridge.Command) error {
	cmd.Op, cmd.Key = bridge.OpUpdate, key
	return h.record(cmd)
}

func (h *Host) InsertElement(key string, at bridge.Placement) error {
	return h.record(bridge.Command{Op: bridge.OpInsert, Key: key, Parent: at.Parent, Before: at.Before})
}

func (h *Host) RemoveElement(key string, done func()) error {
	if err := h.record(bridge.Command{Op: bridge.OpRemove, Key: key}); err != nil {
		return err
	}
	h.mu.Lock()
	if h.hold {
		h.pending = append(h.pending, done)
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()
	done()
	return nil
}

func (h *Host) DestroyElement(key string) error {
	return h.record(bridge.Command{Op: bridge.OpDestroy, Key: key})
}

func (h *Host) UpdateTextContent(key, text string) error {
	return h.record(bridge.Command{Op: bridge.OpText, Key: key, Text: text})
}

func (h *Host) QueryElementByExternalID(id string) (string, bool, error) {
	if err := h.record(bridge.Command{Op: bridge.OpQuery, Key: id}); err != nil {
		return "", false, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	tag, ok := h.known[id]
	return tag, ok, nil
}

// TitleHost support.

func (h *Host) SetTitle(title string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.title = title
	return nil
}

func (h *Host) Title() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.title, nil
}

// ExpectCommands fails the test unless the recorded "op:key" sequence
// equals want.
func ExpectCommands(t testing.TB, h *Host, want ...string) {
	t.Helper()
	got := h.Ops()
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("commands = %v, want %v", got, want)
	}
}

// CountOps returns how many recorded commands have op for key.
func CountOps(h *Host, op bridge.Op, key string) int {
	n := 0
	for _, c := range h.Commands() {
		if c.Op == op && c.Key == key {
			n++
		}
	}
	return n
}
