package vdom

import "strings"

// Selector is a parsed Sel string.
type Selector struct {
	Tag     string
	ID      string
	Classes []string
}

// ParseSelector splits "tag#id.a.b" into its parts. The shorthand parts may
// appear in any order; a missing tag defaults to "div". The empty selector
// parses to the zero Selector.
func ParseSelector(sel string) Selector {
	var s Selector
	if sel == "" {
		return s
	}

	i := strings.IndexAny(sel, "#.")
	if i < 0 {
		s.Tag = sel
		return s
	}
	s.Tag = sel[:i]
	if s.Tag == "" {
		s.Tag = "div"
	}

	rest := sel[i:]
	for rest != "" {
		marker := rest[0]
		rest = rest[1:]
		end := strings.IndexAny(rest, "#.")
		if end < 0 {
			end = len(rest)
		}
		part := rest[:end]
		rest = rest[end:]
		if part == "" {
			continue
		}
		if marker == '#' {
			if s.ID == "" {
				s.ID = part
			}
		} else {
			s.Classes = append(s.Classes, part)
		}
	}
	return s
}

// String rebuilds the selector.
func (s Selector) String() string {
	var b strings.Builder
	b.WriteString(s.Tag)
	if s.ID != "" {
		b.WriteByte('#')
		b.WriteString(s.ID)
	}
	for _, c := range s.Classes {
		b.WriteByte('.')
		b.WriteString(c)
	}
	return b.String()
}
