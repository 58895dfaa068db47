// Package hook runs diff operations through an ordered list of capability
// modules.
//
// A module implements any subset of CreateHook, UpdateHook, InsertHook,
// RemoveHook and DestroyHook. For each hook the pipeline calls every
// implementing module in list order; modules without the capability are
// skipped. A module that also implements Primary (the bridge module) always
// runs first so later modules can rely on the host element existing.
package hook

import (
	"sync"
	"sync/atomic"

	"github.com/vango-dev/vbridge/internal/errors"
	"github.com/vango-dev/vbridge/pkg/vdom"
)

// ErrHook wraps a module failure.
var ErrHook = errors.New("B305")

// Module is a named pipeline participant.
type Module interface {
	Name() string
}

// Primary marks the module that owns host element identity.
type Primary interface {
	Module
	Primary()
}

// Placement is where an inserted node lands. A nil Parent is the document
// root; a nil Before appends.
type Placement struct {
	Parent *vdom.VNode
	Before *vdom.VNode
}

// CreateHook runs when a node is created, parents before children.
type CreateHook interface {
	Create(v *vdom.VNode) error
}

// UpdateHook runs when a matched node's own data or text changed.
type UpdateHook interface {
	Update(old, v *vdom.VNode) error
}

// InsertHook runs when a node is placed in the live tree or moved.
type InsertHook interface {
	Insert(v *vdom.VNode, at Placement) error
}

// RemoveHook runs before a subtree is destroyed. done must be called once
// the module is finished with the node; extra calls are ignored.
type RemoveHook interface {
	Remove(v *vdom.VNode, done func()) error
}

// DestroyHook runs for every node of a removed subtree.
type DestroyHook interface {
	Destroy(v *vdom.VNode) error
}

// Pipeline dispatches hooks to its modules in order.
type Pipeline struct {
	modules []Module
}

// New creates a pipeline. Primary modules are moved to the front, otherwise
// the given order is kept.
func New(modules ...Module) *Pipeline {
	ordered := make([]Module, 0, len(modules))
	for _, m := range modules {
		if _, ok := m.(Primary); ok {
			ordered = append(ordered, m)
		}
	}
	for _, m := range modules {
		if _, ok := m.(Primary); !ok {
			ordered = append(ordered, m)
		}
	}
	return &Pipeline{modules: ordered}
}

// Modules returns the modules in dispatch order.
func (p *Pipeline) Modules() []Module {
	out := make([]Module, len(p.modules))
	copy(out, p.modules)
	return out
}

// Create runs every CreateHook.
func (p *Pipeline) Create(v *vdom.VNode) error {
	for _, m := range p.modules {
		if h, ok := m.(CreateHook); ok {
			if err := h.Create(v); err != nil {
				return hookError(m, "create", v, err)
			}
		}
	}
	return nil
}

// Update runs every UpdateHook.
func (p *Pipeline) Update(old, v *vdom.VNode) error {
	for _, m := range p.modules {
		if h, ok := m.(UpdateHook); ok {
			if err := h.Update(old, v); err != nil {
				return hookError(m, "update", v, err)
			}
		}
	}
	return nil
}

// Insert runs every InsertHook.
func (p *Pipeline) Insert(v *vdom.VNode, at Placement) error {
	for _, m := range p.modules {
		if h, ok := m.(InsertHook); ok {
			if err := h.Insert(v, at); err != nil {
				return hookError(m, "insert", v, err)
			}
		}
	}
	return nil
}

// Remove runs every RemoveHook and calls done once all of them, and the
// pipeline itself, have signalled completion. done is not called when a
// module returns an error.
func (p *Pipeline) Remove(v *vdom.VNode, done func()) error {
	var hooks []Module
	for _, m := range p.modules {
		if _, ok := m.(RemoveHook); ok {
			hooks = append(hooks, m)
		}
	}

	// One listener per module plus one for the pipeline.
	pending := int32(len(hooks) + 1)
	release := func() {
		if atomic.AddInt32(&pending, -1) == 0 && done != nil {
			done()
		}
	}

	for _, m := range hooks {
		if err := m.(RemoveHook).Remove(v, once(release)); err != nil {
			return hookError(m, "remove", v, err)
		}
	}
	release()
	return nil
}

// Destroy runs every DestroyHook.
func (p *Pipeline) Destroy(v *vdom.VNode) error {
	for _, m := range p.modules {
		if h, ok := m.(DestroyHook); ok {
			if err := h.Destroy(v); err != nil {
				return hookError(m, "destroy", v, err)
			}
		}
	}
	return nil
}

func once(fn func()) func() {
	var o sync.Once
	return func() { o.Do(fn) }
}

func hookError(m Module, hook string, v *vdom.VNode, err error) error {
	return errors.New("B305").
		WithDetailf("%s: %s %s", m.Name(), hook, describe(v)).
		Wrap(err)
}

func describe(v *vdom.VNode) string {
	if v == nil {
		return "<nil>"
	}
	if id := v.HandleID(); id != "" {
		return id
	}
	if v.Sel == "" {
		return "#text"
	}
	return v.Sel
}
