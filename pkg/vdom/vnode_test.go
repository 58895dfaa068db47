package vdom

import "testing"

func TestVNodeAccessors(t *testing.T) {
	tests := []struct {
		name    string
		node    *VNode
		wantTag string
		wantID  string
		isText  bool
	}{
		{"nil node", nil, "", "", false},
		{"text node", Text("hello"), "", "", true},
		{"plain element", &VNode{Sel: "div"}, "div", "", false},
		{"selector id", &VNode{Sel: "p#intro.lead"}, "p", "intro", false},
		{
			name:    "attr id wins",
			node:    &VNode{Sel: "p#intro", Data: &Data{Attrs: map[string]string{"id": "main"}}},
			wantTag: "p",
			wantID:  "main",
		},
		{"class only", &VNode{Sel: ".card"}, "div", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.node.Tag(); got != tt.wantTag {
				t.Errorf("Tag() = %q, want %q", got, tt.wantTag)
			}
			if got := tt.node.ID(); got != tt.wantID {
				t.Errorf("ID() = %q, want %q", got, tt.wantID)
			}
			if got := tt.node.IsText(); got != tt.isText {
				t.Errorf("IsText() = %v, want %v", got, tt.isText)
			}
		})
	}
}

func TestWalkAndClearHandles(t *testing.T) {
	root := MustH("ul", []*VNode{
		MustH("li", "a"),
		MustH("li", []*VNode{MustH("b", "x")}),
	})
	var sels []string
	Walk(root, func(n *VNode) bool {
		n.Handle = &Handle{ID: n.Sel}
		sels = append(sels, n.Sel)
		return true
	})
	if len(sels) != 4 {
		t.Fatalf("Walk visited %d nodes, want 4: %v", len(sels), sels)
	}

	ClearHandles(root)
	Walk(root, func(n *VNode) bool {
		if n.Handle != nil {
			t.Errorf("%s still has a handle", n.Sel)
		}
		return true
	})

	// Returning false prunes the subtree.
	count := 0
	Walk(root, func(n *VNode) bool {
		count++
		return n.Sel == "ul"
	})
	if count != 3 {
		t.Errorf("pruned Walk visited %d nodes, want 3", count)
	}
}

func TestDataClone(t *testing.T) {
	l := NewListener(func(Event) {})
	d := &Data{
		Key:   "k",
		Attrs: map[string]string{"id": "x"},
		Class: map[string]bool{"a": true},
		On:    map[string]*Listener{"click": l},
	}
	c := d.Clone()
	c.Attrs["id"] = "y"
	c.Class["b"] = true

	if d.Attrs["id"] != "x" {
		t.Error("Clone shares the Attrs map")
	}
	if len(d.Class) != 1 {
		t.Error("Clone shares the Class map")
	}
	if c.On["click"] != l {
		t.Error("Clone should keep listener identity")
	}
	if (*Data)(nil).Clone() == nil {
		t.Error("nil Clone should return empty Data")
	}
}

func TestListenerCall(t *testing.T) {
	var got string
	l := NewListener(func(e Event) { got = e.Type })
	l.Call(Event{Type: "click"})
	if got != "click" {
		t.Errorf("listener saw %q, want click", got)
	}

	var nilListener *Listener
	nilListener.Call(Event{Type: "click"}) // must not panic
}

func TestOpKindString(t *testing.T) {
	tests := []struct {
		kind OpKind
		want string
	}{
		{OpCreate, "Create"},
		{OpMove, "Move"},
		{OpUpdate, "Update"},
		{OpRemove, "Remove"},
		{OpKind(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("OpKind.String() = %v, want %v", got, tt.want)
		}
	}
}
