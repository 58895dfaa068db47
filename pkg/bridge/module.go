package bridge

import (
	"strings"

	"github.com/google/uuid"

	"github.com/vango-dev/vbridge/pkg/hook"
	"github.com/vango-dev/vbridge/pkg/vdom"
)

// Module is the primary hook module. It must run before any presentation
// module, which hook.New guarantees.
type Module struct {
	t      *Transport
	newKey func() string
}

// ModuleOption configures a Module.
type ModuleOption func(*Module)

// WithKeyFunc sets the generator used for nodes without a key.
func WithKeyFunc(fn func() string) ModuleOption {
	return func(m *Module) {
		m.newKey = fn
	}
}

// NewModule creates the bridge module for t.
func NewModule(t *Transport, opts ...ModuleOption) *Module {
	m := &Module{
		t:      t,
		newKey: func() string { return "node_" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (*Module) Name() string { return "bridge" }

// Primary marks the module as the owner of host identity.
func (*Module) Primary() {}

// Transport returns the module's transport.
func (m *Module) Transport() *Transport { return m.t }

// Create gives v a handle and creates it on the host. The handle reuses the
// node key unless another element already holds it; keys are only unique
// among siblings. v keeps no handle when the host rejects it.
func (m *Module) Create(v *vdom.VNode) error {
	assigned := v.Handle == nil
	if assigned {
		v.Handle = &vdom.Handle{ID: m.hostKey(v.Key), Tag: v.Tag()}
	}
	err := m.t.Create(CommandFor(OpCreate, v))
	if err != nil && assigned {
		v.Handle = nil
	}
	return err
}

func (m *Module) hostKey(key string) string {
	if key == "" || key == RootKey || strings.HasPrefix(key, ExternalPrefix) || m.t.Known(key) {
		return m.newKey()
	}
	return key
}

func (m *Module) Update(old, v *vdom.VNode) error {
	if v.IsText() {
		return m.t.UpdateText(v.HandleID(), v.Text)
	}
	cmd := CommandFor(OpUpdate, v)
	cmd.OldText = old.Text
	return m.t.Update(cmd)
}

func (m *Module) Insert(v *vdom.VNode, at hook.Placement) error {
	p := Placement{Parent: at.Parent.HandleID(), Before: at.Before.HandleID()}
	return m.t.Insert(v.HandleID(), p)
}

func (m *Module) Remove(v *vdom.VNode, done func()) error {
	return m.t.Remove(v.HandleID(), done)
}

func (m *Module) Destroy(v *vdom.VNode) error {
	return m.t.Destroy(v.HandleID())
}
