package vdom

import (
	"fmt"

	"github.com/vango-dev/vbridge/internal/errors"
)

// ErrInvalidVNode is returned by H for malformed arguments.
var ErrInvalidVNode = errors.New("B101")

// H builds a VNode from a selector, optional data and up to two content
// arguments.
//
// Accepted arguments:
//   - Data or *Data, only as the first argument
//   - string: text content
//   - []*VNode: children (nil entries are skipped)
//   - *VNode: a single child
//   - nil: ignored
//
// When both children and text are supplied the children win and the text
// is ignored.
func H(sel string, args ...any) (*VNode, error) {
	v := &VNode{Sel: sel}

	var (
		content  int
		hasText  bool
		text     string
		children []*VNode
		hasKids  bool
	)

	for i, arg := range args {
		switch a := arg.(type) {
		case nil:
			continue
		case *Data:
			if i != 0 {
				return nil, invalid("data must be the first argument, got it at position %d", i)
			}
			if a != nil {
				v.Data = a
			}
			continue
		case Data:
			if i != 0 {
				return nil, invalid("data must be the first argument, got it at position %d", i)
			}
			d := a
			v.Data = &d
			continue
		}

		content++
		if content > 2 {
			return nil, invalid("at most two content arguments, got %d", content)
		}

		switch a := arg.(type) {
		case string:
			if hasText {
				return nil, invalid("text given twice")
			}
			hasText = true
			text = a
		case []*VNode:
			hasKids = true
			for _, c := range a {
				if c != nil {
					children = append(children, c)
				}
			}
		case *VNode:
			hasKids = true
			if a != nil {
				children = append(children, a)
			}
		default:
			return nil, invalid("unsupported argument type %T", arg)
		}
	}

	if sel == "" && hasKids {
		return nil, invalid("text nodes cannot have children")
	}

	if hasKids {
		v.Children = children
	} else if hasText {
		v.Text = text
	}
	if v.Data != nil {
		v.Key = v.Data.Key
	}
	return v, nil
}

// MustH is like H but panics on malformed arguments.
func MustH(sel string, args ...any) *VNode {
	v, err := H(sel, args...)
	if err != nil {
		panic(err)
	}
	return v
}

// Text creates a text node.
func Text(s string) *VNode {
	return &VNode{Text: s}
}

func invalid(format string, args ...any) error {
	return errors.New("B101").WithDetail(fmt.Sprintf(format, args...))
}
