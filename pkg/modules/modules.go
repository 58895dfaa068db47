// Package modules holds the presentation modules that run after the bridge
// module in a hook pipeline. Each one mirrors a single concern of VNode data
// onto the node's vdom.Handle.
package modules

import (
	"github.com/vango-dev/vbridge/internal/errors"
	"github.com/vango-dev/vbridge/pkg/hook"
	"github.com/vango-dev/vbridge/pkg/vdom"
)

// ErrNoHandle is returned when a module sees a node the bridge has not
// created.
var ErrNoHandle = errors.New("B207")

// Defaults returns Class, Style, Props and Listeners in that order.
func Defaults() []hook.Module {
	return []hook.Module{&Class{}, &Style{}, &Props{}, &Listeners{}}
}

func handleOf(module string, v *vdom.VNode) (*vdom.Handle, error) {
	if v == nil || v.Handle == nil {
		sel := "<nil>"
		if v != nil {
			sel = v.Sel
		}
		return nil, errors.New("B207").WithDetailf("%s module: %q", module, sel)
	}
	return v.Handle, nil
}

func dataOf(v *vdom.VNode) *vdom.Data {
	if v == nil || v.Data == nil {
		return &vdom.Data{}
	}
	return v.Data
}

// Class mirrors class toggles, including selector shorthand classes.
type Class struct{}

func (*Class) Name() string { return "class" }

func (m *Class) Create(v *vdom.VNode) error { return m.apply(v) }

func (m *Class) Update(_, v *vdom.VNode) error { return m.apply(v) }

func (m *Class) apply(v *vdom.VNode) error {
	h, err := handleOf("class", v)
	if err != nil {
		return err
	}
	if v.IsText() {
		return nil
	}
	classes := make(map[string]bool)
	for _, c := range vdom.ParseSelector(v.Sel).Classes {
		classes[c] = true
	}
	for c, on := range dataOf(v).Class {
		if on {
			classes[c] = true
		} else {
			delete(classes, c)
		}
	}
	h.Class = classes
	return nil
}

// Style mirrors inline styles. When OnExit is set it is called during
// remove and the node is destroyed only after it calls done.
type Style struct {
	OnExit func(v *vdom.VNode, done func())
}

func (*Style) Name() string { return "style" }

func (m *Style) Create(v *vdom.VNode) error { return m.apply(v) }

func (m *Style) Update(_, v *vdom.VNode) error { return m.apply(v) }

func (m *Style) Remove(v *vdom.VNode, done func()) error {
	if m.OnExit == nil || v.IsText() {
		done()
		return nil
	}
	m.OnExit(v, done)
	return nil
}

func (m *Style) apply(v *vdom.VNode) error {
	h, err := handleOf("style", v)
	if err != nil {
		return err
	}
	if v.IsText() {
		return nil
	}
	style := make(map[string]string, len(dataOf(v).Style))
	for k, s := range dataOf(v).Style {
		style[k] = s
	}
	h.Style = style
	return nil
}

// Props mirrors DOM properties.
type Props struct{}

func (*Props) Name() string { return "props" }

func (m *Props) Create(v *vdom.VNode) error { return m.apply(v) }

func (m *Props) Update(_, v *vdom.VNode) error { return m.apply(v) }

func (m *Props) apply(v *vdom.VNode) error {
	h, err := handleOf("props", v)
	if err != nil {
		return err
	}
	props := make(map[string]any, len(dataOf(v).Props))
	for k, p := range dataOf(v).Props {
		props[k] = p
	}
	h.Props = props
	return nil
}

// Listeners mirrors event listeners and drops them on destroy.
type Listeners struct{}

func (*Listeners) Name() string { return "listeners" }

func (m *Listeners) Create(v *vdom.VNode) error { return m.apply(v) }

func (m *Listeners) Update(_, v *vdom.VNode) error { return m.apply(v) }

func (m *Listeners) Destroy(v *vdom.VNode) error {
	if v.Handle != nil {
		v.Handle.Listeners = nil
	}
	return nil
}

func (m *Listeners) apply(v *vdom.VNode) error {
	h, err := handleOf("listeners", v)
	if err != nil {
		return err
	}
	on := make(map[string]*vdom.Listener, len(dataOf(v).On))
	for k, l := range dataOf(v).On {
		on[k] = l
	}
	h.Listeners = on
	return nil
}

// Dispatch calls the listener registered on h for e.Type. It reports whether
// one was found.
func Dispatch(h *vdom.Handle, e vdom.Event) bool {
	if h == nil {
		return false
	}
	l, ok := h.Listeners[e.Type]
	if !ok || l == nil {
		return false
	}
	l.Call(e)
	return true
}
