package session

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/vbridge/pkg/bridge"
	"github.com/vango-dev/vbridge/pkg/vdom"
)

func keyed(tag, key string, children ...*vdom.VNode) *vdom.VNode {
	v := vdom.MustH(tag, &vdom.Data{Key: key}, children)
	return v
}

func withID(v *vdom.VNode, id string) *vdom.VNode {
	v.Data.Attrs = map[string]string{"id": id}
	return v
}

func TestStoreStartsWithRoot(t *testing.T) {
	s := NewStore()
	if s.Root().Key != bridge.RootKey || s.Root().HandleID() != bridge.RootKey {
		t.Errorf("root = %+v, want key and handle %q", s.Root(), bridge.RootKey)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStoreCommitIndexesSubtree(t *testing.T) {
	s := NewStore()
	root := keyed("body", bridge.RootKey,
		keyed("ul", "ul", withID(keyed("li", "a"), "first"), keyed("li", "b")),
	)
	if removed := s.Commit(bridge.RootKey, root); len(removed) != 0 {
		t.Errorf("removed = %v, want none", removed)
	}

	if diff := cmp.Diff([]string{"a", "b", bridge.RootKey, "ul"}, s.Keys()); diff != "" {
		t.Errorf("keys (-want +got):\n%s", diff)
	}
	if got := s.ParentKey("a"); got != "ul" {
		t.Errorf("ParentKey(a) = %q, want ul", got)
	}
	if key, ok := s.KeyForID("first"); !ok || key != "a" {
		t.Errorf("KeyForID(first) = %q, %v; want a", key, ok)
	}
}

func TestStoreCommitPathCopies(t *testing.T) {
	s := NewStore()
	s.Commit(bridge.RootKey, keyed("body", bridge.RootKey,
		keyed("ul", "ul", keyed("li", "a"), keyed("li", "b")),
		keyed("p", "p"),
	))
	oldRoot := s.Root()
	oldUL, _ := s.Lookup("ul")
	oldP, _ := s.Lookup("p")

	removed := s.Commit("ul", keyed("ul", "ul", keyed("li", "a")))
	if diff := cmp.Diff([]string{"b"}, removed); diff != "" {
		t.Errorf("removed (-want +got):\n%s", diff)
	}

	if s.Root() == oldRoot {
		t.Error("root was not path-copied")
	}
	if len(oldUL.Children) != 2 {
		t.Error("committed node was mutated")
	}
	newUL, _ := s.Lookup("ul")
	if s.Root().Children[0] != newUL {
		t.Error("root does not point at the new subtree")
	}
	if p, _ := s.Lookup("p"); p != oldP || s.Root().Children[1] != oldP {
		t.Error("sibling subtree was copied")
	}
	if _, ok := s.Lookup("b"); ok {
		t.Error("b still in table")
	}
}

func TestStoreIDIndexFollowsChanges(t *testing.T) {
	s := NewStore()
	s.Commit(bridge.RootKey, keyed("body", bridge.RootKey, withID(keyed("p", "p"), "old")))
	s.Commit("p", withID(keyed("p", "p"), "new"))

	if _, ok := s.KeyForID("old"); ok {
		t.Error("stale id still indexed")
	}
	if key, ok := s.KeyForID("new"); !ok || key != "p" {
		t.Errorf("KeyForID(new) = %q, %v; want p", key, ok)
	}

	s.Commit(bridge.RootKey, keyed("body", bridge.RootKey))
	if _, ok := s.KeyForID("new"); ok {
		t.Error("id of removed node still indexed")
	}
}

func TestStoreAdopt(t *testing.T) {
	s := NewStore()
	s.Adopt(withID(keyed("div", "app"), "app"))
	if key, ok := s.KeyForID("app"); !ok || key != "app" {
		t.Errorf("KeyForID(app) = %q, %v; want app", key, ok)
	}

	s.Commit("app", withID(keyed("div", "app", keyed("span", "s")), "app"))
	if got := s.ParentKey("s"); got != "app" {
		t.Errorf("ParentKey(s) = %q, want app", got)
	}
	if len(s.Root().Children) != 0 {
		t.Error("adopted subtree leaked into the root")
	}
}

func TestStoreKeyForHandle(t *testing.T) {
	s := NewStore()
	a := keyed("li", "a")
	a.Handle = &vdom.Handle{ID: "a", Tag: "li"}
	dup := keyed("li", "a2")
	dup.Handle = &vdom.Handle{ID: "gen_1", Tag: "li"}
	body := keyed("body", bridge.RootKey, keyed("ul", "ul", a, dup))
	body.Handle = s.Root().Handle
	s.Commit(bridge.RootKey, body)

	tests := []struct {
		handle string
		want   string
		ok     bool
	}{
		{"a", "a", true},
		{"gen_1", "a2", true},
		{bridge.RootKey, bridge.RootKey, true},
		{"a2", "", false},
		{"missing", "", false},
	}
	for _, tt := range tests {
		got, ok := s.KeyForHandle(tt.handle)
		if got != tt.want || ok != tt.ok {
			t.Errorf("KeyForHandle(%q) = %q, %v; want %q, %v", tt.handle, got, ok, tt.want, tt.ok)
		}
	}

	s.Commit("ul", keyed("ul", "ul", a))
	if _, ok := s.KeyForHandle("gen_1"); ok {
		t.Error("handle of removed node still indexed")
	}
}
