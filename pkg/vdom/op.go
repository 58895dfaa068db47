package vdom

import "fmt"

// OpKind is the type of a diff operation.
type OpKind uint8

const (
	OpCreate OpKind = iota + 1 // Build Node's subtree and insert it
	OpMove                     // Re-insert Node at a new position
	OpUpdate                   // Node's own data or text changed
	OpRemove                   // Remove Old's subtree
)

// String returns the string representation of the OpKind.
func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "Create"
	case OpMove:
		return "Move"
	case OpUpdate:
		return "Update"
	case OpRemove:
		return "Remove"
	default:
		return "Unknown"
	}
}

// Op is a single structural change produced by Diff.
type Op struct {
	Kind   OpKind
	Node   *VNode // New node (Create, Move, Update)
	Old    *VNode // Previous node (Update, Remove)
	Parent *VNode // Parent for Create/Move, nil for the document root
	Before *VNode // Sibling to insert before, nil to append
}

// Key returns the key of the node the op applies to.
func (o Op) Key() string {
	if o.Node != nil {
		return o.Node.Key
	}
	if o.Old != nil {
		return o.Old.Key
	}
	return ""
}

func (o Op) String() string {
	sel := ""
	switch {
	case o.Node != nil:
		sel = o.Node.Sel
	case o.Old != nil:
		sel = o.Old.Sel
	}
	if sel == "" {
		sel = "#text"
	}
	if k := o.Key(); k != "" {
		return fmt.Sprintf("%s(%s[%s])", o.Kind, sel, k)
	}
	return fmt.Sprintf("%s(%s)", o.Kind, sel)
}

// CountOps tallies ops by kind.
func CountOps(ops []Op) map[OpKind]int {
	counts := make(map[OpKind]int, 4)
	for _, op := range ops {
		counts[op.Kind]++
	}
	return counts
}
