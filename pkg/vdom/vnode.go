package vdom

// Event is a host event delivered to an element listener.
type Event struct {
	Type   string         // "click", "input", etc.
	Key    string         // Target element key
	Detail map[string]any // Event payload from the host
}

// Listener wraps an event callback. Listeners are compared by pointer, so
// replacing a callback always produces a new Listener.
type Listener struct {
	Fn func(Event)
}

// NewListener wraps fn.
func NewListener(fn func(Event)) *Listener {
	return &Listener{Fn: fn}
}

// Call invokes the callback if there is one.
func (l *Listener) Call(e Event) {
	if l != nil && l.Fn != nil {
		l.Fn(e)
	}
}

// Data holds everything a module can contribute to a node.
type Data struct {
	Key   string               // Reconciliation key
	Props map[string]any       // DOM properties (value, checked, ...)
	Attrs map[string]string    // HTML attributes
	Class map[string]bool      // Class toggles
	Style map[string]string    // Inline style properties
	On    map[string]*Listener // Event listeners by type
}

// Clone returns a shallow copy of d with fresh maps.
func (d *Data) Clone() *Data {
	if d == nil {
		return &Data{}
	}
	c := &Data{Key: d.Key}
	if d.Props != nil {
		c.Props = make(map[string]any, len(d.Props))
		for k, v := range d.Props {
			c.Props[k] = v
		}
	}
	if d.Attrs != nil {
		c.Attrs = make(map[string]string, len(d.Attrs))
		for k, v := range d.Attrs {
			c.Attrs[k] = v
		}
	}
	if d.Class != nil {
		c.Class = make(map[string]bool, len(d.Class))
		for k, v := range d.Class {
			c.Class[k] = v
		}
	}
	if d.Style != nil {
		c.Style = make(map[string]string, len(d.Style))
		for k, v := range d.Style {
			c.Style[k] = v
		}
	}
	if d.On != nil {
		c.On = make(map[string]*Listener, len(d.On))
		for k, v := range d.On {
			c.On[k] = v
		}
	}
	return c
}

// Handle is the session-side stand-in for a host element. The bridge module
// assigns it on create; presentation modules mirror their state onto it.
type Handle struct {
	ID  string // Host element key
	Tag string // Element tag, empty for text nodes

	Class     map[string]bool
	Style     map[string]string
	Props     map[string]any
	Listeners map[string]*Listener
}

// VNode is the virtual tree node.
type VNode struct {
	Sel      string   // Tag with optional #id/.class shorthand, empty for text
	Key      string   // Reconciliation key, unique among siblings
	Data     *Data    // Props, attrs, class, style, listeners
	Children []*VNode // Child nodes, exclusive with Text
	Text     string   // Leaf text content
	Handle   *Handle  // Host element, nil until created
}

// IsText reports whether v is a text node.
func (v *VNode) IsText() bool {
	return v != nil && v.Sel == ""
}

// Tag returns the element tag name, or "" for text nodes.
func (v *VNode) Tag() string {
	if v == nil || v.Sel == "" {
		return ""
	}
	return ParseSelector(v.Sel).Tag
}

// ID returns the element id from attrs, falling back to the selector.
func (v *VNode) ID() string {
	if v == nil || v.Sel == "" {
		return ""
	}
	if v.Data != nil {
		if id, ok := v.Data.Attrs["id"]; ok {
			return id
		}
	}
	return ParseSelector(v.Sel).ID
}

// HandleID returns the host key of v, or "" when it has not been created.
func (v *VNode) HandleID() string {
	if v == nil || v.Handle == nil {
		return ""
	}
	return v.Handle.ID
}

// Walk calls fn for v and every descendant in pre-order.
// Returning false from fn skips the node's children.
func Walk(v *VNode, fn func(*VNode) bool) {
	if v == nil {
		return
	}
	if !fn(v) {
		return
	}
	for _, c := range v.Children {
		Walk(c, fn)
	}
}

// ClearHandles drops the handle of v and every descendant.
func ClearHandles(v *VNode) {
	Walk(v, func(n *VNode) bool {
		n.Handle = nil
		return true
	})
}
