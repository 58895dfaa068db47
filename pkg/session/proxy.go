package session

import (
	"sort"
	"strings"

	"github.com/vango-dev/vbridge/internal/errors"
	"github.com/vango-dev/vbridge/pkg/vdom"
)

// State is the lifecycle state of a Proxy.
type State int

const (
	// Unbound proxies have never been rendered.
	Unbound State = iota
	// Bound proxies are part of the committed tree.
	Bound
	// Disposed proxies were removed and reject every mutation.
	Disposed
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Bound:
		return "bound"
	case Disposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// child is either a proxy or a static node parsed from markup.
type child struct {
	p    *Proxy
	node *vdom.VNode
}

// Proxy is the script-facing handle of one element.
//
// A proxy keeps everything last applied to it, so each mutation renders a
// complete replacement VNode. Mutations return nil when they are queued
// behind a pass in flight.
type Proxy struct {
	s      *Session
	key    string
	tag    string
	state  State
	data   *vdom.Data
	text   string
	markup string
	items  []child
	parent *Proxy
}

func newProxy(s *Session, key, tag string) *Proxy {
	return &Proxy{s: s, key: key, tag: tag, data: &vdom.Data{Key: key}}
}

// Key returns the element identity shared with the host.
func (p *Proxy) Key() string { return p.key }

// Tag returns the lower-case tag name.
func (p *Proxy) Tag() string { return p.tag }

// State returns the lifecycle state.
func (p *Proxy) State() State { return p.state }

// Parent returns the parent proxy, or nil.
func (p *Proxy) Parent() *Proxy { return p.parent }

// Children returns the child proxies. Nodes created from markup are not
// proxies and are skipped.
func (p *Proxy) Children() []*Proxy {
	var out []*Proxy
	for _, c := range p.items {
		if c.p != nil {
			out = append(out, c.p)
		}
	}
	return out
}

// ID returns the id attribute.
func (p *Proxy) ID() string {
	return p.data.Attrs["id"]
}

// Attribute returns the value of an attribute.
func (p *Proxy) Attribute(name string) (string, bool) {
	v, ok := p.data.Attrs[strings.ToLower(name)]
	return v, ok
}

// Prop returns the value of a property.
func (p *Proxy) Prop(name string) (any, bool) {
	v, ok := p.data.Props[name]
	return v, ok
}

// HasClass reports whether the class is set.
func (p *Proxy) HasClass(name string) bool {
	return p.data.Class[name]
}

// Classes returns the set classes in sorted order.
func (p *Proxy) Classes() []string {
	var out []string
	for c, on := range p.data.Class {
		if on {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// Style returns an inline style property.
func (p *Proxy) Style(prop string) string {
	return p.data.Style[prop]
}

// Markup returns the markup last set with SetMarkup, or "" once the
// children changed in another way.
func (p *Proxy) Markup() string { return p.markup }

// Text returns the text content of the element and its descendants.
func (p *Proxy) Text() string {
	if len(p.items) == 0 {
		return p.text
	}
	var b strings.Builder
	for _, c := range p.items {
		if c.p != nil {
			b.WriteString(c.p.Text())
			continue
		}
		vdom.Walk(c.node, func(n *vdom.VNode) bool {
			b.WriteString(n.Text)
			return true
		})
	}
	return b.String()
}

// Node returns the committed VNode, or nil if the proxy is not rendered.
func (p *Proxy) Node() *vdom.VNode {
	if p.state != Bound {
		return nil
	}
	n, _ := p.s.store.Lookup(p.key)
	return n
}

// SetText replaces the children with text.
func (p *Proxy) SetText(text string) error {
	return p.mutate(func() error {
		p.s.touch(p)
		p.detachAll()
		p.text = text
		return nil
	})
}

// SetMarkup replaces the children with parsed markup.
func (p *Proxy) SetMarkup(markup string) error {
	return p.mutate(func() error {
		nodes, err := vdom.ParseMarkup(markup, p.s.policy)
		if err != nil {
			return err
		}
		p.s.touch(p)
		p.detachAll()
		for _, n := range nodes {
			p.items = append(p.items, child{node: n})
		}
		p.markup = markup
		return nil
	})
}

// SetAttribute sets an attribute. "class" and "style" replace the class set
// and the inline style.
func (p *Proxy) SetAttribute(name, value string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return errors.New("B101").WithDetail("empty attribute name")
	}
	return p.mutate(func() error {
		p.s.touch(p)
		switch name {
		case "class":
			p.data.Class = make(map[string]bool)
			for _, c := range strings.Fields(value) {
				p.data.Class[c] = true
			}
		case "style":
			p.data.Style = vdom.ParseStyle(value)
		default:
			if p.data.Attrs == nil {
				p.data.Attrs = make(map[string]string)
			}
			p.data.Attrs[name] = value
		}
		return nil
	})
}

// RemoveAttribute deletes an attribute.
func (p *Proxy) RemoveAttribute(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	return p.mutate(func() error {
		p.s.touch(p)
		switch name {
		case "class":
			p.data.Class = nil
		case "style":
			p.data.Style = nil
		default:
			delete(p.data.Attrs, name)
		}
		return nil
	})
}

// SetProp sets a DOM property such as value or checked.
func (p *Proxy) SetProp(name string, value any) error {
	return p.mutate(func() error {
		p.s.touch(p)
		if p.data.Props == nil {
			p.data.Props = make(map[string]any)
		}
		p.data.Props[name] = value
		return nil
	})
}

// SetClass toggles a class.
func (p *Proxy) SetClass(name string, on bool) error {
	return p.mutate(func() error {
		p.s.touch(p)
		if !on {
			delete(p.data.Class, name)
			return nil
		}
		if p.data.Class == nil {
			p.data.Class = make(map[string]bool)
		}
		p.data.Class[name] = true
		return nil
	})
}

// SetStyle sets an inline style property. An empty value removes it.
func (p *Proxy) SetStyle(prop, value string) error {
	return p.mutate(func() error {
		p.s.touch(p)
		if value == "" {
			delete(p.data.Style, prop)
			return nil
		}
		if p.data.Style == nil {
			p.data.Style = make(map[string]string)
		}
		p.data.Style[prop] = value
		return nil
	})
}

// AddListener registers fn for an event type, replacing any previous one.
func (p *Proxy) AddListener(typ string, fn func(vdom.Event)) error {
	return p.mutate(func() error {
		p.s.touch(p)
		if p.data.On == nil {
			p.data.On = make(map[string]*vdom.Listener)
		}
		p.data.On[typ] = vdom.NewListener(fn)
		return nil
	})
}

// RemoveListener drops the listener for an event type.
func (p *Proxy) RemoveListener(typ string) error {
	return p.mutate(func() error {
		p.s.touch(p)
		delete(p.data.On, typ)
		return nil
	})
}

// AppendChild adds c as the last child.
func (p *Proxy) AppendChild(c *Proxy) error {
	return p.InsertBefore(c, nil)
}

// InsertBefore adds c before ref. A nil ref appends.
func (p *Proxy) InsertBefore(c, ref *Proxy) error {
	if err := p.canAdopt(c); err != nil {
		return err
	}
	return p.mutate(func() error {
		if err := p.canAdopt(c); err != nil {
			return err
		}
		if ref != nil && ref.parent != p {
			return errors.New("B204").WithDetailf("%q is not a child of %q", ref.key, p.key)
		}
		if ref == c {
			return nil
		}
		p.s.touch(p, c, c.parent)
		if c.parent != nil {
			c.parent.detach(c)
		}
		if len(p.items) == 0 && p.text != "" {
			p.items = append(p.items, child{node: vdom.Text(p.text)})
			p.text = ""
		}
		at := len(p.items)
		if ref != nil {
			at = p.indexOf(ref)
		}
		p.items = append(p.items, child{})
		copy(p.items[at+1:], p.items[at:])
		p.items[at] = child{p: c}
		p.markup = ""
		c.parent = p
		return nil
	})
}

// RemoveChild detaches c. A rendered child is removed from the host and
// disposed.
func (p *Proxy) RemoveChild(c *Proxy) error {
	return p.mutate(func() error {
		if c == nil || c.parent != p {
			key := ""
			if c != nil {
				key = c.key
			}
			return errors.New("B204").WithDetailf("%q is not a child of %q", key, p.key)
		}
		p.s.touch(p, c)
		p.detach(c)
		return nil
	})
}

// canAdopt checks that c may become a child of p.
func (p *Proxy) canAdopt(c *Proxy) error {
	if c == nil {
		return errors.New("B101").WithDetail("nil child")
	}
	if c.state == Disposed {
		return errors.New("B201").WithDetailf("element %q", c.key)
	}
	if c.state == Bound && c.parent != p {
		return errors.New("B202").WithDetailf("%q is rendered under %q", c.key, c.parentKey())
	}
	for q := p; q != nil; q = q.parent {
		if q == c {
			return errors.New("B101").WithDetailf("%q cannot contain itself", c.key)
		}
	}
	return nil
}

func (p *Proxy) parentKey() string {
	if p.parent == nil {
		return ""
	}
	return p.parent.key
}

func (p *Proxy) indexOf(c *Proxy) int {
	for i, it := range p.items {
		if it.p == c {
			return i
		}
	}
	return -1
}

func (p *Proxy) detach(c *Proxy) {
	if i := p.indexOf(c); i >= 0 {
		p.items = append(p.items[:i:i], p.items[i+1:]...)
	}
	c.parent = nil
	p.markup = ""
}

func (p *Proxy) detachAll() {
	for _, c := range p.items {
		if c.p != nil {
			p.s.touch(c.p)
			c.p.parent = nil
		}
	}
	p.items = nil
	p.text = ""
	p.markup = ""
}

func (p *Proxy) usable() error {
	if p.state == Disposed {
		return errors.New("B201").WithDetailf("element %q", p.key)
	}
	return nil
}

// mutate runs fn and a reconciliation pass inside the session queue.
func (p *Proxy) mutate(fn func() error) error {
	if err := p.usable(); err != nil {
		return err
	}
	return p.s.do(func() error {
		if err := p.usable(); err != nil {
			return err
		}
		if err := fn(); err != nil {
			return err
		}
		return p.s.reconcile(p)
	})
}

// render builds the full VNode of p.
func (p *Proxy) render() *vdom.VNode {
	v := &vdom.VNode{Sel: p.tag, Key: p.key, Data: p.data.Clone()}
	v.Data.Key = p.key
	if len(p.items) == 0 {
		v.Text = p.text
		return v
	}
	v.Children = make([]*vdom.VNode, 0, len(p.items))
	for _, c := range p.items {
		if c.p != nil {
			v.Children = append(v.Children, c.p.render())
		} else {
			v.Children = append(v.Children, c.node)
		}
	}
	return v
}

// memento is a saved proxy model, restored when a pass fails.
type memento struct {
	p      *Proxy
	data   *vdom.Data
	text   string
	markup string
	items  []child
	parent *Proxy
}

func (p *Proxy) save() memento {
	items := make([]child, len(p.items))
	copy(items, p.items)
	return memento{p: p, data: p.data.Clone(), text: p.text, markup: p.markup, items: items, parent: p.parent}
}

func (m memento) restore() {
	m.p.data = m.data
	m.p.text = m.text
	m.p.markup = m.markup
	m.p.items = m.items
	m.p.parent = m.parent
}
