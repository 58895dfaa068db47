package vdom

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vango-dev/vbridge/internal/errors"
)

// ErrInvalidMarkup is returned when markup cannot be parsed.
var ErrInvalidMarkup = errors.New("B102")

// SanitizePolicy returns the bluemonday policy registered under name:
// "ugc", "strict", or "none"/"" for no sanitizing (nil).
func SanitizePolicy(name string) *bluemonday.Policy {
	switch strings.ToLower(name) {
	case "ugc":
		return bluemonday.UGCPolicy()
	case "strict":
		return bluemonday.StrictPolicy()
	default:
		return nil
	}
}

// ParseMarkup converts an HTML fragment into unkeyed child nodes. When
// policy is non-nil the markup is sanitized first.
func ParseMarkup(markup string, policy *bluemonday.Policy) ([]*VNode, error) {
	if policy != nil {
		markup = policy.Sanitize(markup)
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return nil, errors.New("B102").Wrap(err)
	}

	out := make([]*VNode, 0, len(nodes))
	for _, n := range nodes {
		if v := fromHTML(n); v != nil {
			out = append(out, v)
		}
	}
	return out, nil
}

// fromHTML converts a parsed html.Node. Comments and doctypes are dropped.
func fromHTML(n *html.Node) *VNode {
	switch n.Type {
	case html.TextNode:
		return Text(n.Data)
	case html.ElementNode:
	default:
		return nil
	}

	v := &VNode{Sel: n.Data}
	if len(n.Attr) > 0 {
		d := &Data{}
		for _, a := range n.Attr {
			switch a.Key {
			case "class":
				for _, c := range strings.Fields(a.Val) {
					if d.Class == nil {
						d.Class = make(map[string]bool)
					}
					d.Class[c] = true
				}
			case "style":
				d.Style = ParseStyle(a.Val)
			default:
				if d.Attrs == nil {
					d.Attrs = make(map[string]string)
				}
				d.Attrs[a.Key] = a.Val
			}
		}
		v.Data = d
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if child := fromHTML(c); child != nil {
			v.Children = append(v.Children, child)
		}
	}
	return v
}

// ParseStyle parses an inline style attribute ("color: red; margin: 0").
func ParseStyle(s string) map[string]string {
	var style map[string]string
	for _, decl := range strings.Split(s, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name == "" {
			continue
		}
		if style == nil {
			style = make(map[string]string)
		}
		style[name] = value
	}
	return style
}
