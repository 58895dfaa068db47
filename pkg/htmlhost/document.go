// Package htmlhost is a bridge.Host that keeps a retained HTML document.
//
// Every command lands in an x/net/html tree which can be rendered back to
// markup at any time. It is the host behind `vbridge run` and a convenient
// oracle in tests: what Render returns is what a browser renderer would
// show.
package htmlhost

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vango-dev/vbridge/pkg/bridge"
)

const blankPage = "<!DOCTYPE html><html><head><title></title></head><body></body></html>"

// Option configures a Document.
type Option func(*Document)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Document) {
		d.logger = l
	}
}

// Document is a retained HTML document. It is safe for concurrent use.
type Document struct {
	mu     sync.Mutex
	logger *slog.Logger
	root   *html.Node
	head   *html.Node
	body   *html.Node
	nodes  map[string]*html.Node
	leaf   map[*html.Node]*html.Node // element → its leaf text node
	owned  map[*html.Node][]string   // attributes set by commands
}

var (
	_ bridge.Host      = (*Document)(nil)
	_ bridge.TitleHost = (*Document)(nil)
)

// New returns an empty document.
func New(opts ...Option) *Document {
	d, err := Parse(strings.NewReader(blankPage), opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// Parse reads a page to render into. The page's body becomes the root
// element; elements with an id attribute can be found through
// QueryElementByExternalID.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmlhost: parse page: %w", err)
	}
	d := &Document{
		logger: slog.Default(),
		root:   root,
		nodes:  make(map[string]*html.Node),
		leaf:   make(map[*html.Node]*html.Node),
		owned:  make(map[*html.Node][]string),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "htmlhost")

	doc := goquery.NewDocumentFromNode(root)
	d.head = doc.Find("head").Get(0)
	d.body = doc.Find("body").Get(0)
	d.nodes[bridge.RootKey] = d.body
	return d, nil
}

func (d *Document) node(key string) (*html.Node, error) {
	n, ok := d.nodes[key]
	if !ok {
		return nil, fmt.Errorf("htmlhost: no element %q", key)
	}
	return n, nil
}

func (d *Document) CreateElement(key string, cmd bridge.Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.nodes[key]; ok {
		return fmt.Errorf("htmlhost: element %q already exists", key)
	}

	var n *html.Node
	if cmd.Tag == "" {
		n = &html.Node{Type: html.TextNode, Data: cmd.Text}
	} else {
		n = &html.Node{
			Type:     html.ElementNode,
			Data:     cmd.Tag,
			DataAtom: atom.Lookup([]byte(cmd.Tag)),
		}
		d.apply(n, cmd)
	}
	d.nodes[key] = n
	return nil
}

func (d *Document) UpdateElement(key string, cmd bridge.Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.node(key)
	if err != nil {
		return err
	}
	if n.Type == html.TextNode {
		n.Data = cmd.Text
		return nil
	}
	d.apply(n, cmd)
	return nil
}

// apply replaces the attributes and leaf text of n with the state in cmd.
// Attributes that came with the page and were never set by a command are
// kept.
func (d *Document) apply(n *html.Node, cmd bridge.Command) {
	set := attributes(cmd)
	drop := make(map[string]bool, len(set)+len(d.owned[n]))
	for _, name := range d.owned[n] {
		drop[name] = true
	}
	names := make([]string, 0, len(set))
	for _, a := range set {
		drop[a.Key] = true
		names = append(names, a.Key)
	}
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if !drop[a.Key] {
			kept = append(kept, a)
		}
	}
	n.Attr = append(kept, set...)
	d.owned[n] = names

	leaf := d.leaf[n]
	switch {
	case cmd.Text == "" && leaf != nil:
		if leaf.Parent == n {
			n.RemoveChild(leaf)
		}
		delete(d.leaf, n)
	case cmd.Text != "" && leaf != nil:
		leaf.Data = cmd.Text
	case cmd.Text != "":
		leaf = &html.Node{Type: html.TextNode, Data: cmd.Text}
		n.InsertBefore(leaf, n.FirstChild)
		d.leaf[n] = leaf
	}
}

// attributes flattens a command into sorted attributes. Class and style
// maps become single attributes; props are reflected when no attribute of
// the same name exists.
func attributes(cmd bridge.Command) []html.Attribute {
	var attrs []html.Attribute
	for _, name := range sortedKeys(cmd.Attrs) {
		attrs = append(attrs, html.Attribute{Key: name, Val: cmd.Attrs[name]})
	}

	var classes []string
	for _, c := range sortedKeys(cmd.Class) {
		if cmd.Class[c] {
			classes = append(classes, c)
		}
	}
	if len(classes) > 0 {
		attrs = append(attrs, html.Attribute{Key: "class", Val: strings.Join(classes, " ")})
	}

	if len(cmd.Style) > 0 {
		decls := make([]string, 0, len(cmd.Style))
		for _, prop := range sortedKeys(cmd.Style) {
			decls = append(decls, prop+": "+cmd.Style[prop])
		}
		attrs = append(attrs, html.Attribute{Key: "style", Val: strings.Join(decls, "; ")})
	}

	for _, name := range sortedKeys(cmd.Props) {
		if _, ok := cmd.Attrs[name]; ok {
			continue
		}
		switch v := cmd.Props[name].(type) {
		case nil:
		case bool:
			if v {
				attrs = append(attrs, html.Attribute{Key: name})
			}
		default:
			attrs = append(attrs, html.Attribute{Key: name, Val: fmt.Sprint(v)})
		}
	}
	return attrs
}

func (d *Document) InsertElement(key string, at bridge.Placement) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.node(key)
	if err != nil {
		return err
	}
	parent, err := d.node(at.Parent)
	if err != nil {
		return err
	}
	var before *html.Node
	if at.Before != "" {
		if before, err = d.node(at.Before); err != nil {
			return err
		}
		if before.Parent != parent {
			return fmt.Errorf("htmlhost: %q is not a child of %q", at.Before, at.Parent)
		}
	}
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	parent.InsertBefore(n, before)
	return nil
}

// RemoveElement detaches the element and completes at once.
func (d *Document) RemoveElement(key string, done func()) error {
	d.mu.Lock()
	n, err := d.node(key)
	if err == nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	d.mu.Unlock()
	if err != nil {
		return err
	}
	done()
	return nil
}

func (d *Document) DestroyElement(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.node(key)
	if err != nil {
		return err
	}
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	delete(d.nodes, key)
	delete(d.leaf, n)
	delete(d.owned, n)
	return nil
}

func (d *Document) UpdateTextContent(key, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.node(key)
	if err != nil {
		return err
	}
	if n.Type != html.TextNode {
		return fmt.Errorf("htmlhost: %q is not a text node", key)
	}
	n.Data = text
	return nil
}

// QueryElementByExternalID finds an element of the page by id attribute.
// A found element is registered under bridge.ExternalKey(id) so later
// commands can address it.
func (d *Document) QueryElementByExternalID(id string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := goquery.NewDocumentFromNode(d.root).Find(fmt.Sprintf("[id=%q]", id)).First()
	if sel.Length() == 0 {
		return "", false, nil
	}
	key := bridge.ExternalKey(id)
	d.nodes[key] = sel.Get(0)
	d.logger.Debug("element found", "id", id, "key", key, "tag", goquery.NodeName(sel))
	return goquery.NodeName(sel), true, nil
}

func (d *Document) SetTitle(title string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.titleNode()
	for c := t.FirstChild; c != nil; c = t.FirstChild {
		t.RemoveChild(c)
	}
	t.AppendChild(&html.Node{Type: html.TextNode, Data: title})
	return nil
}

func (d *Document) Title() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return goquery.NewDocumentFromNode(d.titleNode()).Text(), nil
}

func (d *Document) titleNode() *html.Node {
	if t := goquery.NewDocumentFromNode(d.head).Find("title").Get(0); t != nil {
		return t
	}
	t := &html.Node{Type: html.ElementNode, Data: "title", DataAtom: atom.Title}
	d.head.AppendChild(t)
	return t
}

// Len returns the number of addressable elements, the body included.
func (d *Document) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.nodes)
}

// Find returns the elements matching a CSS selector.
func (d *Document) Find(selector string) *goquery.Selection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return goquery.NewDocumentFromNode(d.root).Find(selector)
}

// Render writes the whole document as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

// BodyHTML returns the inner HTML of the body.
func (d *Document) BodyHTML() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buf bytes.Buffer
	for c := d.body.FirstChild; c != nil; c = c.NextSibling {
		html.Render(&buf, c)
	}
	return buf.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
