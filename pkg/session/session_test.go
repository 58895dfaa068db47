package session_test

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/vbridge/pkg/bridge"
	"github.com/vango-dev/vbridge/pkg/session"
	"github.com/vango-dev/vbridge/pkg/vdom"
	"github.com/vango-dev/vbridge/pkg/vtest"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type passes struct {
	counts []map[vdom.OpKind]int
}

func (p *passes) ObservePass(counts map[vdom.OpKind]int, _ time.Duration, _ error) {
	p.counts = append(p.counts, counts)
}

func (p *passes) last() map[vdom.OpKind]int {
	if len(p.counts) == 0 {
		return nil
	}
	return p.counts[len(p.counts)-1]
}

func newSession(t *testing.T, host bridge.Host, opts ...session.Option) (*session.Session, *passes) {
	t.Helper()
	obs := &passes{}
	opts = append([]session.Option{session.WithLogger(discard), session.WithPassObserver(obs)}, opts...)
	s := session.New(host, opts...)
	t.Cleanup(func() { s.Close() })
	return s, obs
}

func mustCreate(t *testing.T, s *session.Session, tag string) *session.Proxy {
	t.Helper()
	p, err := s.CreateElement(tag)
	if err != nil {
		t.Fatalf("CreateElement(%q): %v", tag, err)
	}
	return p
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func childKeys(v *vdom.VNode) []string {
	var keys []string
	for _, c := range v.Children {
		keys = append(keys, c.Key)
	}
	return keys
}

func TestCreateElementIsUnbound(t *testing.T) {
	h := vtest.NewHost()
	s, _ := newSession(t, h)

	p := mustCreate(t, s, "DIV")
	if p.Tag() != "div" {
		t.Errorf("Tag() = %q, want div", p.Tag())
	}
	if !strings.HasPrefix(p.Key(), session.DefaultKeyPrefix) {
		t.Errorf("Key() = %q, want prefix %q", p.Key(), session.DefaultKeyPrefix)
	}
	if p.State() != session.Unbound {
		t.Errorf("State() = %v, want unbound", p.State())
	}
	if len(h.Commands()) != 0 {
		t.Errorf("commands = %v, want none", h.Ops())
	}

	for _, tag := range []string{"", "div#x", "a.b"} {
		if _, err := s.CreateElement(tag); !stderrors.Is(err, vdom.ErrInvalidVNode) {
			t.Errorf("CreateElement(%q) error = %v, want ErrInvalidVNode", tag, err)
		}
	}
}

func TestTextCreateThenUpdate(t *testing.T) {
	h := vtest.NewHost()
	s, obs := newSession(t, h)

	a := mustCreate(t, s, "a")
	must(t, a.SetText("hi"))

	if diff := cmp.Diff(map[vdom.OpKind]int{vdom.OpCreate: 1}, obs.last()); diff != "" {
		t.Errorf("first pass ops (-want +got):\n%s", diff)
	}
	vtest.ExpectCommands(t, h, "create:"+a.Key(), "insert:"+a.Key())
	create, _ := h.Last(bridge.OpCreate, a.Key())
	if create.Tag != "a" || create.Text != "hi" {
		t.Errorf("create = %+v, want tag a text hi", create)
	}
	if a.State() != session.Bound || a.Parent() != s.Body() {
		t.Errorf("state = %v parent = %v, want bound under body", a.State(), a.Parent())
	}

	h.Reset()
	must(t, a.SetText("bye"))
	if diff := cmp.Diff(map[vdom.OpKind]int{vdom.OpUpdate: 1}, obs.last()); diff != "" {
		t.Errorf("second pass ops (-want +got):\n%s", diff)
	}
	vtest.ExpectCommands(t, h, "update:"+a.Key())
	update, _ := h.Last(bridge.OpUpdate, a.Key())
	if update.OldText != "hi" || update.Text != "bye" {
		t.Errorf("update oldText/text = %q/%q, want hi/bye", update.OldText, update.Text)
	}
	if got := a.Node().Text; got != "bye" {
		t.Errorf("committed text = %q, want bye", got)
	}
}

func TestSubtreeCreatedByParentPass(t *testing.T) {
	h := vtest.NewHost()
	s, obs := newSession(t, h)

	div := mustCreate(t, s, "div")
	a := mustCreate(t, s, "a")
	must(t, div.AppendChild(a))
	must(t, s.Body().AppendChild(div))

	if diff := cmp.Diff(map[vdom.OpKind]int{vdom.OpCreate: 1}, obs.counts[0]); diff != "" {
		t.Errorf("ops (-want +got):\n%s", diff)
	}
	vtest.ExpectCommands(t, h,
		"create:"+div.Key(), "create:"+a.Key(), "insert:"+a.Key(), "insert:"+div.Key())
	if a.State() != session.Bound {
		t.Errorf("child state = %v, want bound", a.State())
	}
}

func TestListOps(t *testing.T) {
	h := vtest.NewHost()
	s, obs := newSession(t, h)

	ul := mustCreate(t, s, "ul")
	must(t, s.Body().AppendChild(ul))
	var items []*session.Proxy
	for _, text := range []string{"a", "b", "c"} {
		li := mustCreate(t, s, "li")
		must(t, ul.AppendChild(li))
		must(t, li.SetText(text))
		items = append(items, li)
	}
	a, b, c := items[0], items[1], items[2]

	// [a,b,c] → [c,a,b]
	h.Reset()
	must(t, ul.InsertBefore(c, a))
	if diff := cmp.Diff(map[vdom.OpKind]int{vdom.OpMove: 1}, obs.last()); diff != "" {
		t.Errorf("reorder ops (-want +got):\n%s", diff)
	}
	vtest.ExpectCommands(t, h, "insert:"+c.Key())
	ins, _ := h.Last(bridge.OpInsert, c.Key())
	if ins.Parent != ul.Key() || ins.Before != a.Key() {
		t.Errorf("move placement = %q/%q, want %q/%q", ins.Parent, ins.Before, ul.Key(), a.Key())
	}

	// [c,a,b] → [c,a]
	h.Reset()
	must(t, ul.RemoveChild(b))
	vtest.ExpectCommands(t, h, "remove:"+b.Key(), "destroy:"+b.Key())
	if diff := cmp.Diff([]string{c.Key(), a.Key()}, childKeys(ul.Node())); diff != "" {
		t.Errorf("committed children (-want +got):\n%s", diff)
	}
	if _, ok := s.Store().Lookup(b.Key()); ok {
		t.Error("removed key still in key table")
	}
	if b.State() != session.Disposed {
		t.Errorf("removed state = %v, want disposed", b.State())
	}
	if err := b.SetText("x"); !stderrors.Is(err, session.ErrDisposed) {
		t.Errorf("mutating removed proxy: error = %v, want ErrDisposed", err)
	}
}

func TestRemoveOnlyTouchesThatKey(t *testing.T) {
	h := vtest.NewHost()
	s, _ := newSession(t, h)

	ul := mustCreate(t, s, "ul")
	x, y, z := mustCreate(t, s, "li"), mustCreate(t, s, "li"), mustCreate(t, s, "li")
	for _, li := range []*session.Proxy{x, y, z} {
		must(t, ul.AppendChild(li))
	}

	h.Reset()
	must(t, ul.RemoveChild(y))
	vtest.ExpectCommands(t, h, "remove:"+y.Key(), "destroy:"+y.Key())
	for _, li := range []*session.Proxy{x, z} {
		if li.State() != session.Bound {
			t.Errorf("sibling %s state = %v, want bound", li.Key(), li.State())
		}
	}
	if diff := cmp.Diff([]string{x.Key(), z.Key()}, childKeys(ul.Node())); diff != "" {
		t.Errorf("committed children (-want +got):\n%s", diff)
	}
}

func TestReparentRejected(t *testing.T) {
	h := vtest.NewHost()
	s, _ := newSession(t, h)

	ul := mustCreate(t, s, "ul")
	must(t, s.Body().AppendChild(ul))
	li := mustCreate(t, s, "li")
	must(t, li.SetText("rendered under body"))

	h.Reset()
	if err := ul.AppendChild(li); !stderrors.Is(err, session.ErrReparent) {
		t.Fatalf("error = %v, want ErrReparent", err)
	}
	if len(h.Commands()) != 0 {
		t.Errorf("commands = %v, want none", h.Ops())
	}
	loose := mustCreate(t, s, "div")
	if err := loose.AppendChild(loose); !stderrors.Is(err, vdom.ErrInvalidVNode) {
		t.Errorf("self append error = %v, want ErrInvalidVNode", err)
	}
}

func TestNotChild(t *testing.T) {
	h := vtest.NewHost()
	s, _ := newSession(t, h)
	ul := mustCreate(t, s, "ul")
	other := mustCreate(t, s, "li")
	li := mustCreate(t, s, "li")

	if err := ul.RemoveChild(other); !stderrors.Is(err, session.ErrNotChild) {
		t.Errorf("RemoveChild error = %v, want ErrNotChild", err)
	}
	if err := ul.InsertBefore(li, other); !stderrors.Is(err, session.ErrNotChild) {
		t.Errorf("InsertBefore error = %v, want ErrNotChild", err)
	}
}

func TestQueuedMutationsCommitLastValue(t *testing.T) {
	h := vtest.NewHost()
	s, _ := newSession(t, h)

	button := mustCreate(t, s, "button")
	span := mustCreate(t, s, "span")
	must(t, s.Body().AppendChild(span))

	const n = 5
	must(t, button.AddListener("click", func(vdom.Event) {
		for i := 1; i <= n; i++ {
			if err := span.SetText(fmt.Sprint(i)); err != nil {
				t.Errorf("queued SetText returned %v, want nil", err)
			}
		}
	}))

	h.Reset()
	must(t, s.DispatchEvent(button.Key(), vdom.Event{Type: "click"}))

	if got := span.Node().Text; got != fmt.Sprint(n) {
		t.Errorf("committed text = %q, want %d", got, n)
	}
	if got := vtest.CountOps(h, bridge.OpUpdate, span.Key()); got != n {
		t.Errorf("updates = %d, want %d", got, n)
	}
}

func TestReentrantMutationsKeepIssueOrder(t *testing.T) {
	h := vtest.NewHost()
	s, _ := newSession(t, h)

	a := mustCreate(t, s, "p")
	b := mustCreate(t, s, "p")
	must(t, s.Body().AppendChild(a))
	must(t, s.Body().AppendChild(b))
	must(t, a.AddListener("click", func(ev vdom.Event) {
		if ev.Key != a.Key() {
			t.Errorf("event key = %q, want %q", ev.Key, a.Key())
		}
		b.SetText("second")
		a.SetText("first")
	}))

	h.Reset()
	must(t, s.DispatchEvent(a.Key(), vdom.Event{Type: "click"}))
	vtest.ExpectCommands(t, h, "update:"+b.Key(), "update:"+a.Key())
}

func TestQueuedFailureGoesToHandler(t *testing.T) {
	h := vtest.NewHost()
	var got []error
	s, _ := newSession(t, h, session.WithErrorHandler(func(err error) { got = append(got, err) }))

	a := mustCreate(t, s, "p")
	must(t, s.Body().AppendChild(a))
	must(t, a.AddListener("click", func(vdom.Event) {
		h.FailOn(bridge.OpUpdate, a.Key())
		if err := a.SetText("boom"); err != nil {
			t.Errorf("queued SetText returned %v", err)
		}
	}))

	if err := s.DispatchEvent(a.Key(), vdom.Event{Type: "click"}); err != nil {
		t.Fatalf("DispatchEvent: %v", err)
	}
	if len(got) != 1 || !stderrors.Is(got[0], bridge.ErrBridge) {
		t.Errorf("handler errors = %v, want one ErrBridge", got)
	}
}

func TestDispatchErrors(t *testing.T) {
	h := vtest.NewHost()
	s, _ := newSession(t, h)
	p := mustCreate(t, s, "p")
	must(t, p.SetText("x"))

	if err := s.DispatchEvent("nope", vdom.Event{Type: "click"}); !stderrors.Is(err, session.ErrNotFound) {
		t.Errorf("unknown key error = %v, want ErrNotFound", err)
	}
	if err := s.DispatchEvent(p.Key(), vdom.Event{Type: "click"}); !stderrors.Is(err, session.ErrNoListener) {
		t.Errorf("no listener error = %v, want ErrNoListener", err)
	}
}

func TestFailedPassIsNotCommitted(t *testing.T) {
	h := vtest.NewHost().FailOn(bridge.OpCreate, "")
	s, _ := newSession(t, h)

	p := mustCreate(t, s, "p")
	if err := p.SetText("x"); !stderrors.Is(err, bridge.ErrBridge) {
		t.Fatalf("error = %v, want ErrBridge", err)
	}
	if _, ok := s.Store().Lookup(p.Key()); ok {
		t.Error("failed create committed to key table")
	}
	if p.State() != session.Unbound || p.Parent() != nil || p.Text() != "" {
		t.Errorf("proxy = %v/%v/%q, want unbound, detached, empty", p.State(), p.Parent(), p.Text())
	}
	if len(s.Body().Children()) != 0 {
		t.Error("failed proxy left under body")
	}
}

func TestGetElementByIDFromKeyTable(t *testing.T) {
	h := vtest.NewHost()
	s, _ := newSession(t, h)

	p := mustCreate(t, s, "h1")
	must(t, p.SetAttribute("id", "title"))

	got, err := s.GetElementByID("title")
	if err != nil {
		t.Fatal(err)
	}
	if got != p {
		t.Error("GetElementByID returned a different proxy")
	}
	if n := vtest.CountOps(h, bridge.OpQuery, "title"); n != 0 {
		t.Errorf("host queried %d times, want 0", n)
	}

	must(t, p.SetAttribute("id", "heading"))
	if _, err := s.GetElementByID("title"); !stderrors.Is(err, session.ErrNotFound) {
		t.Errorf("stale id error = %v, want ErrNotFound", err)
	}
}

func TestGetElementByIDAdoptsHostElement(t *testing.T) {
	h := vtest.NewHost().WithElement("app", "DIV")
	s, _ := newSession(t, h)

	app, err := s.GetElementByID("app")
	if err != nil {
		t.Fatal(err)
	}
	if app.Key() != bridge.ExternalKey("app") || app.Tag() != "div" || app.State() != session.Bound {
		t.Errorf("adopted = %s/%s/%v, want #app/div/bound", app.Key(), app.Tag(), app.State())
	}
	if app.ID() != "app" {
		t.Errorf("ID() = %q, want app", app.ID())
	}

	again, err := s.GetElementByID("app")
	if err != nil || again != app {
		t.Errorf("second lookup = %v, %v; want same proxy", again, err)
	}
	if n := vtest.CountOps(h, bridge.OpQuery, "app"); n != 1 {
		t.Errorf("host queried %d times, want 1", n)
	}

	h.Reset()
	span := mustCreate(t, s, "span")
	must(t, app.AppendChild(span))
	vtest.ExpectCommands(t, h, "create:"+span.Key(), "insert:"+span.Key())
	ins, _ := h.Last(bridge.OpInsert, span.Key())
	if ins.Parent != app.Key() {
		t.Errorf("insert parent = %q, want %q", ins.Parent, app.Key())
	}

	h.Reset()
	must(t, app.SetText("hello"))
	update, _ := h.Last(bridge.OpUpdate, app.Key())
	if update.Text != "hello" {
		t.Errorf("update text = %q, want hello", update.Text)
	}

	if _, err := s.GetElementByID("missing"); !stderrors.Is(err, session.ErrNotFound) {
		t.Errorf("missing id error = %v, want ErrNotFound", err)
	}
}

func TestGetElementByIDQueryFailure(t *testing.T) {
	h := vtest.NewHost().FailOn(bridge.OpQuery, "")
	s, _ := newSession(t, h)
	if _, err := s.GetElementByID("x"); !stderrors.Is(err, bridge.ErrQuery) {
		t.Errorf("error = %v, want ErrQuery", err)
	}
}

func TestMarkup(t *testing.T) {
	h := vtest.NewHost()
	s, _ := newSession(t, h, session.WithSanitizer(vdom.SanitizePolicy("ugc")))

	div := mustCreate(t, s, "div")
	must(t, div.SetMarkup(`<b>hi</b> there<script>alert(1)</script>`))

	if got := div.Text(); got != "hi there" {
		t.Errorf("Text() = %q, want %q", got, "hi there")
	}
	if n := len(div.Node().Children); n != 2 {
		t.Errorf("committed children = %d, want 2", n)
	}
	if div.Markup() == "" {
		t.Error("Markup() lost the last markup")
	}

	h.Reset()
	must(t, div.SetText("plain"))
	if vtest.CountOps(h, bridge.OpRemove, "") != 0 {
		t.Error("remove recorded with empty key")
	}
	if got := len(div.Node().Children); got != 0 {
		t.Errorf("children after SetText = %d, want 0", got)
	}
	if div.Markup() != "" {
		t.Errorf("Markup() = %q after SetText, want empty", div.Markup())
	}
}

func TestTextBecomesChildOnAppend(t *testing.T) {
	h := vtest.NewHost()
	s, _ := newSession(t, h)

	p := mustCreate(t, s, "p")
	must(t, p.SetText("hello "))
	b := mustCreate(t, s, "b")
	must(t, p.AppendChild(b))
	must(t, b.SetText("world"))

	if got := p.Text(); got != "hello world" {
		t.Errorf("Text() = %q, want %q", got, "hello world")
	}
	node := p.Node()
	if len(node.Children) != 2 || !node.Children[0].IsText() || node.Text != "" {
		t.Errorf("committed node = %+v, want text child then element", node)
	}
}

func TestAttributesAndData(t *testing.T) {
	h := vtest.NewHost()
	s, _ := newSession(t, h)

	in := mustCreate(t, s, "input")
	must(t, in.SetAttribute("Type", "text"))
	must(t, in.SetAttribute("class", "big  red"))
	must(t, in.SetAttribute("style", "color: red; width: 10px"))
	must(t, in.SetProp("value", "x"))
	must(t, in.SetClass("red", false))
	must(t, in.SetStyle("width", ""))

	cmd, _ := h.Last(bridge.OpUpdate, in.Key())
	want := bridge.Command{
		Op:    bridge.OpUpdate,
		Key:   in.Key(),
		Tag:   "input",
		Props: map[string]any{"value": "x"},
		Attrs: map[string]string{"type": "text"},
		Class: map[string]bool{"big": true},
		Style: map[string]string{"color": "red"},
	}
	if diff := cmp.Diff(want, cmd); diff != "" {
		t.Errorf("last update (-want +got):\n%s", diff)
	}

	must(t, in.RemoveAttribute("type"))
	if _, ok := in.Attribute("type"); ok {
		t.Error("attribute survived RemoveAttribute")
	}
	if err := in.SetAttribute(" ", "x"); !stderrors.Is(err, vdom.ErrInvalidVNode) {
		t.Errorf("empty name error = %v, want ErrInvalidVNode", err)
	}
}

func TestListenerReplacement(t *testing.T) {
	h := vtest.NewHost()
	s, _ := newSession(t, h)

	var calls []string
	btn := mustCreate(t, s, "button")
	must(t, btn.AddListener("click", func(vdom.Event) { calls = append(calls, "one") }))
	must(t, btn.AddListener("click", func(vdom.Event) { calls = append(calls, "two") }))
	must(t, s.DispatchEvent(btn.Key(), vdom.Event{Type: "click"}))
	must(t, btn.RemoveListener("click"))
	if err := s.DispatchEvent(btn.Key(), vdom.Event{Type: "click"}); !stderrors.Is(err, session.ErrNoListener) {
		t.Errorf("after RemoveListener error = %v, want ErrNoListener", err)
	}
	if diff := cmp.Diff([]string{"two"}, calls); diff != "" {
		t.Errorf("calls (-want +got):\n%s", diff)
	}
}

func TestSetTimeoutRunsInline(t *testing.T) {
	s, _ := newSession(t, vtest.NewHost())

	ran := 0
	id := s.SetTimeout(func() { ran++ }, time.Second)
	if ran != 1 {
		t.Errorf("callback ran %d times before return, want 1", ran)
	}
	if id2 := s.SetTimeout(nil, 0); id2 != id+1 {
		t.Errorf("second id = %d, want %d", id2, id+1)
	}
	s.ClearTimeout(id)
	if ran != 1 {
		t.Errorf("callback ran %d times, want 1", ran)
	}
}

func TestTimerMutationsInsideListenerAreQueued(t *testing.T) {
	h := vtest.NewHost()
	s, _ := newSession(t, h)

	p := mustCreate(t, s, "p")
	must(t, s.Body().AppendChild(p))
	must(t, p.AddListener("click", func(vdom.Event) {
		s.SetTimeout(func() { p.SetText("later") }, 0)
		if p.Node().Text != "" {
			t.Error("timer mutation applied during the listener")
		}
	}))
	must(t, s.DispatchEvent(p.Key(), vdom.Event{Type: "click"}))
	if got := p.Node().Text; got != "later" {
		t.Errorf("text = %q, want later", got)
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name string
		host bridge.Host
	}{
		{"title host", vtest.NewHost()},
		{"plain host", vtest.WithoutTitle(vtest.NewHost())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newSession(t, tt.host)
			must(t, s.SetTitle("Inbox"))
			got, err := s.Title()
			if err != nil || got != "Inbox" {
				t.Errorf("Title() = %q, %v; want Inbox", got, err)
			}
		})
	}
}

func TestClose(t *testing.T) {
	h := vtest.NewHost()
	s, _ := newSession(t, h)
	p := mustCreate(t, s, "p")
	must(t, p.SetText("x"))

	must(t, s.Close())
	must(t, s.Close())
	if p.State() != session.Disposed {
		t.Errorf("state = %v, want disposed", p.State())
	}
	if err := p.SetText("y"); !stderrors.Is(err, session.ErrDisposed) {
		t.Errorf("SetText after close = %v, want ErrDisposed", err)
	}
	if _, err := s.CreateElement("div"); !stderrors.Is(err, session.ErrClosed) {
		t.Errorf("CreateElement after close = %v, want ErrClosed", err)
	}
	if _, err := s.GetElementByID("x"); !stderrors.Is(err, session.ErrClosed) {
		t.Errorf("GetElementByID after close = %v, want ErrClosed", err)
	}
	if err := s.DispatchEvent(p.Key(), vdom.Event{Type: "click"}); !stderrors.Is(err, session.ErrClosed) {
		t.Errorf("DispatchEvent after close = %v, want ErrClosed", err)
	}
}

func TestHeldRemoveDisposesImmediately(t *testing.T) {
	h := vtest.NewHost().HoldRemoves()
	s, _ := newSession(t, h)
	ul := mustCreate(t, s, "ul")
	li := mustCreate(t, s, "li")
	must(t, ul.AppendChild(li))

	h.Reset()
	must(t, ul.RemoveChild(li))
	vtest.ExpectCommands(t, h, "remove:"+li.Key())
	if li.State() != session.Disposed {
		t.Errorf("state = %v, want disposed once committed", li.State())
	}
	h.Release()
	vtest.ExpectCommands(t, h, "remove:"+li.Key(), "destroy:"+li.Key())
}

func TestGetElementByIDRootIsNotBody(t *testing.T) {
	h := vtest.NewHost().WithElement("root", "div")
	s, _ := newSession(t, h)

	p, err := s.GetElementByID("root")
	if err != nil {
		t.Fatal(err)
	}
	if p == s.Body() || p.Key() == bridge.RootKey {
		t.Fatalf("GetElementByID(root) = %s, want the page element", p.Key())
	}
	if n := vtest.CountOps(h, bridge.OpQuery, "root"); n != 1 {
		t.Errorf("host queried %d times, want 1", n)
	}

	h.Reset()
	must(t, p.SetText("hello"))
	vtest.ExpectCommands(t, h, "update:"+p.Key())
	if n := vtest.CountOps(h, bridge.OpUpdate, bridge.RootKey); n != 0 {
		t.Errorf("body updated %d times, want 0", n)
	}
}

func TestMutationRetriesAfterHostFailure(t *testing.T) {
	h := vtest.NewHost().FailOnce(bridge.OpInsert, "")
	s, _ := newSession(t, h)

	p := mustCreate(t, s, "p")
	if err := p.SetText("x"); !stderrors.Is(err, bridge.ErrBridge) {
		t.Fatalf("first SetText error = %v, want ErrBridge", err)
	}
	vtest.ExpectCommands(t, h, "create:"+p.Key(), "destroy:"+p.Key())
	if p.State() != session.Unbound {
		t.Fatalf("state after failure = %v, want unbound", p.State())
	}

	h.Reset()
	must(t, p.SetText("y"))
	vtest.ExpectCommands(t, h, "create:"+p.Key(), "insert:"+p.Key())
	if p.State() != session.Bound || p.Node().Text != "y" {
		t.Errorf("proxy = %v/%q, want bound/y", p.State(), p.Node().Text)
	}
	if !s.Transport().Live(p.Key()) {
		t.Error("transport does not track the retried element")
	}
}
