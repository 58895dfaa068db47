package vdom

import (
	"reflect"
)

// Diff compares two trees and returns the ops needed to turn prev into next.
// Matched nodes in next receive the Handle of their counterpart in prev.
func Diff(prev, next *VNode) []Op {
	var ops []Op
	switch {
	case prev == nil && next == nil:
	case prev == nil:
		ops = append(ops, Op{Kind: OpCreate, Node: next})
	case next == nil:
		ops = append(ops, Op{Kind: OpRemove, Old: prev})
	case sameVNode(prev, next):
		patchVNode(prev, next, &ops)
	default:
		ops = append(ops,
			Op{Kind: OpCreate, Node: next, Before: prev},
			Op{Kind: OpRemove, Old: prev},
		)
	}
	return ops
}

// DiffChildren reconciles two children lists of parent.
func DiffChildren(parent *VNode, prevCh, nextCh []*VNode) []Op {
	var ops []Op
	diffChildren(parent, prevCh, nextCh, &ops)
	return ops
}

// patchVNode compares two matched nodes.
func patchVNode(prev, next *VNode, ops *[]Op) {
	next.Handle = prev.Handle
	if prev == next {
		return
	}

	changed := prev.Text != next.Text || !dataEqual(prev.Data, next.Data)
	update := Op{Kind: OpUpdate, Old: prev, Node: next}

	switch {
	case len(prev.Children) > 0 && len(next.Children) > 0:
		if changed {
			*ops = append(*ops, update)
		}
		diffChildren(next, prev.Children, next.Children, ops)

	case len(next.Children) > 0:
		// Old text (if any) is cleared by the update before children arrive.
		if changed {
			*ops = append(*ops, update)
		}
		addVNodes(next, next.Children, nil, ops)

	case len(prev.Children) > 0:
		removeVNodes(prev.Children, ops)
		if changed {
			*ops = append(*ops, update)
		}

	default:
		if changed {
			*ops = append(*ops, update)
		}
	}
}

// diffChildren is the four-pointer keyed reconciliation.
func diffChildren(parent *VNode, prevCh, nextCh []*VNode, ops *[]Op) {
	// Consumed entries are set to nil, so work on a copy.
	old := make([]*VNode, len(prevCh))
	copy(old, prevCh)

	oldStart, oldEnd := 0, len(old)-1
	newStart, newEnd := 0, len(nextCh)-1

	var keyIndex map[string]int

	for oldStart <= oldEnd && newStart <= newEnd {
		switch {
		case old[oldStart] == nil:
			oldStart++

		case old[oldEnd] == nil:
			oldEnd--

		case sameVNode(old[oldStart], nextCh[newStart]):
			patchVNode(old[oldStart], nextCh[newStart], ops)
			oldStart++
			newStart++

		case sameVNode(old[oldEnd], nextCh[newEnd]):
			patchVNode(old[oldEnd], nextCh[newEnd], ops)
			oldEnd--
			newEnd--

		case isKeyed(old[oldStart]) && sameVNode(old[oldStart], nextCh[newEnd]):
			// Moved right: goes after everything already placed at the end.
			patchVNode(old[oldStart], nextCh[newEnd], ops)
			*ops = append(*ops, Op{
				Kind:   OpMove,
				Node:   nextCh[newEnd],
				Parent: parent,
				Before: at(nextCh, newEnd+1),
			})
			oldStart++
			newEnd--

		case isKeyed(old[oldEnd]) && sameVNode(old[oldEnd], nextCh[newStart]):
			// Moved left.
			patchVNode(old[oldEnd], nextCh[newStart], ops)
			*ops = append(*ops, Op{
				Kind:   OpMove,
				Node:   nextCh[newStart],
				Parent: parent,
				Before: old[oldStart],
			})
			oldEnd--
			newStart++

		default:
			if keyIndex == nil {
				keyIndex = buildKeyIndex(old, oldStart, oldEnd)
			}
			next := nextCh[newStart]
			before := old[oldStart]

			if idx, ok := keyIndex[next.Key]; ok && isKeyed(next) &&
				idx >= oldStart && idx <= oldEnd && old[idx] != nil &&
				old[idx].Sel == next.Sel {
				patchVNode(old[idx], next, ops)
				old[idx] = nil
				*ops = append(*ops, Op{
					Kind:   OpMove,
					Node:   next,
					Parent: parent,
					Before: before,
				})
			} else {
				*ops = append(*ops, Op{
					Kind:   OpCreate,
					Node:   next,
					Parent: parent,
					Before: before,
				})
			}
			newStart++
		}
	}

	if oldStart > oldEnd {
		if newStart <= newEnd {
			addVNodes(parent, nextCh[newStart:newEnd+1], at(nextCh, newEnd+1), ops)
		}
		return
	}
	if newStart > newEnd {
		removeVNodes(old[oldStart:oldEnd+1], ops)
	}
}

func addVNodes(parent *VNode, nodes []*VNode, before *VNode, ops *[]Op) {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		*ops = append(*ops, Op{Kind: OpCreate, Node: n, Parent: parent, Before: before})
	}
}

func removeVNodes(nodes []*VNode, ops *[]Op) {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		*ops = append(*ops, Op{Kind: OpRemove, Old: n})
	}
}

// buildKeyIndex maps keys in old[start:end+1] to their index.
// The first occurrence of a duplicate key wins.
func buildKeyIndex(old []*VNode, start, end int) map[string]int {
	m := make(map[string]int, end-start+1)
	for i := start; i <= end; i++ {
		n := old[i]
		if !isKeyed(n) {
			continue
		}
		if _, dup := m[n.Key]; !dup {
			m[n.Key] = i
		}
	}
	return m
}

func at(nodes []*VNode, i int) *VNode {
	if i < 0 || i >= len(nodes) {
		return nil
	}
	return nodes[i]
}

func isKeyed(v *VNode) bool {
	return v != nil && v.Key != ""
}

// sameVNode reports whether two nodes represent the same host element.
// Text and element nodes never match each other.
func sameVNode(a, b *VNode) bool {
	return a.Key == b.Key && a.Sel == b.Sel
}

// dataEqual compares node data. Listeners compare by event set and identity.
func dataEqual(a, b *Data) bool {
	if a == nil {
		a = &Data{}
	}
	if b == nil {
		b = &Data{}
	}
	if len(a.Props) != len(b.Props) || len(a.Attrs) != len(b.Attrs) ||
		len(a.Class) != len(b.Class) || len(a.Style) != len(b.Style) ||
		len(a.On) != len(b.On) {
		return false
	}
	for k, av := range a.Props {
		bv, ok := b.Props[k]
		if !ok || !propsEqual(av, bv) {
			return false
		}
	}
	for k, av := range a.Attrs {
		if bv, ok := b.Attrs[k]; !ok || av != bv {
			return false
		}
	}
	for k, av := range a.Class {
		if bv, ok := b.Class[k]; !ok || av != bv {
			return false
		}
	}
	for k, av := range a.Style {
		if bv, ok := b.Style[k]; !ok || av != bv {
			return false
		}
	}
	for k, av := range a.On {
		if bv, ok := b.On[k]; !ok || av != bv {
			return false
		}
	}
	return true
}

// propsEqual compares two prop values.
func propsEqual(a, b any) bool {
	// Fast path for common types
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return reflect.DeepEqual(a, b)
}
