package session

import (
	"sort"

	"github.com/vango-dev/vbridge/pkg/bridge"
	"github.com/vango-dev/vbridge/pkg/vdom"
)

// entry is one row of the key table.
type entry struct {
	node   *vdom.VNode
	parent string // key of the nearest keyed ancestor, "" for roots
}

// Store holds the committed tree of a session.
//
// Committed VNodes are never mutated. Commit replaces the subtree of one
// key and path-copies its ancestors up to the root, so a node handed out
// by Lookup keeps describing the state it was committed with.
type Store struct {
	root    *vdom.VNode
	entries map[string]entry
	ids     map[string]string // id attribute → key
	handles map[string]string // host key → key, where they differ
}

// NewStore creates a store whose root is the host's document body.
func NewStore() *Store {
	root := &vdom.VNode{
		Sel:    "body",
		Key:    bridge.RootKey,
		Data:   &vdom.Data{Key: bridge.RootKey},
		Handle: &vdom.Handle{ID: bridge.RootKey, Tag: "body"},
	}
	return &Store{
		root:    root,
		entries: map[string]entry{bridge.RootKey: {node: root}},
		ids:     make(map[string]string),
		handles: make(map[string]string),
	}
}

// Root returns the committed root VNode.
func (s *Store) Root() *vdom.VNode {
	return s.root
}

// Lookup returns the committed node for key.
func (s *Store) Lookup(key string) (*vdom.VNode, bool) {
	e, ok := s.entries[key]
	return e.node, ok
}

// ParentKey returns the key of the committed parent of key.
func (s *Store) ParentKey(key string) string {
	return s.entries[key].parent
}

// KeyForID returns the key of the committed element whose id attribute is id.
func (s *Store) KeyForID(id string) (string, bool) {
	key, ok := s.ids[id]
	if !ok {
		return "", false
	}
	e, ok := s.entries[key]
	if !ok || e.node.ID() != id {
		return "", false
	}
	return key, true
}

// KeyForHandle returns the key of the committed node whose host element
// is h. Host keys equal node keys unless the bridge had to generate one.
func (s *Store) KeyForHandle(h string) (string, bool) {
	if e, ok := s.entries[h]; ok && e.node.HandleID() == h {
		return h, true
	}
	key, ok := s.handles[h]
	if !ok {
		return "", false
	}
	if e, ok := s.entries[key]; !ok || e.node.HandleID() != h {
		return "", false
	}
	return key, true
}

// Len returns the number of keys in the table, root included.
func (s *Store) Len() int {
	return len(s.entries)
}

// Keys returns every key in the table, sorted.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Adopt records a node the host already renders outside the committed tree.
func (s *Store) Adopt(v *vdom.VNode) {
	s.index(v, "", nil)
}

// Commit replaces the committed subtree of key with next and returns the
// keys that are no longer in the table, sorted.
func (s *Store) Commit(key string, next *vdom.VNode) []string {
	old, ok := s.entries[key]
	gone := make(map[string]bool)
	if ok {
		vdom.Walk(old.node, func(n *vdom.VNode) bool {
			if n.Key != "" {
				gone[n.Key] = true
			}
			return true
		})
	}

	s.index(next, old.parent, gone)
	s.replace(old.parent, old.node, next)

	removed := make([]string, 0, len(gone))
	for k := range gone {
		removed = append(removed, k)
	}
	sort.Strings(removed)
	for _, k := range removed {
		s.forget(k)
	}
	return removed
}

func (s *Store) index(v *vdom.VNode, parent string, gone map[string]bool) {
	if v.Key != "" {
		id := v.ID()
		if prev, ok := s.entries[v.Key]; ok {
			if oid := prev.node.ID(); oid != "" && oid != id && s.ids[oid] == v.Key {
				delete(s.ids, oid)
			}
		}
		s.entries[v.Key] = entry{node: v, parent: parent}
		if id != "" {
			s.ids[id] = v.Key
		}
		if h := v.HandleID(); h != "" && h != v.Key {
			s.handles[h] = v.Key
		}
		delete(gone, v.Key)
		parent = v.Key
	}
	for _, c := range v.Children {
		s.index(c, parent, gone)
	}
}

// replace swaps old for next in the children of parent and path-copies
// every ancestor.
func (s *Store) replace(parent string, old, next *vdom.VNode) {
	if old == s.root {
		s.root = next
	}
	for parent != "" {
		pe, ok := s.entries[parent]
		if !ok {
			return
		}
		cp := *pe.node
		cp.Children = make([]*vdom.VNode, len(pe.node.Children))
		copy(cp.Children, pe.node.Children)
		for i, c := range cp.Children {
			if c == old {
				cp.Children[i] = next
				break
			}
		}
		s.entries[parent] = entry{node: &cp, parent: pe.parent}
		if pe.node == s.root {
			s.root = &cp
		}
		old, parent = pe.node, pe.parent
		next = &cp
	}
}

func (s *Store) forget(key string) {
	e, ok := s.entries[key]
	if !ok {
		return
	}
	if id := e.node.ID(); id != "" && s.ids[id] == key {
		delete(s.ids, id)
	}
	if h := e.node.HandleID(); s.handles[h] == key {
		delete(s.handles, h)
	}
	delete(s.entries, key)
}
