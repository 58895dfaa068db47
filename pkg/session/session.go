package session

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/vango-dev/vbridge/internal/errors"
	"github.com/vango-dev/vbridge/pkg/bridge"
	"github.com/vango-dev/vbridge/pkg/hook"
	"github.com/vango-dev/vbridge/pkg/modules"
	"github.com/vango-dev/vbridge/pkg/reconcile"
	"github.com/vango-dev/vbridge/pkg/vdom"
)

// DefaultKeyPrefix prefixes generated element keys.
const DefaultKeyPrefix = "elem_"

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithErrorHandler receives failures of queued mutations and deferred
// destroys. They are logged either way.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Session) {
		s.onError = fn
	}
}

// WithKeyPrefix sets the prefix of generated element keys.
func WithKeyPrefix(prefix string) Option {
	return func(s *Session) {
		s.keyPrefix = prefix
	}
}

// WithSanitizer filters markup passed to SetMarkup. Nil keeps markup as is.
func WithSanitizer(p *bluemonday.Policy) Option {
	return func(s *Session) {
		s.policy = p
	}
}

// WithModules replaces the presentation modules (default: modules.Defaults).
// The bridge module is always added in front.
func WithModules(mods ...hook.Module) Option {
	return func(s *Session) {
		s.modules = mods
	}
}

// WithBridgeObserver reports every bridge command to o.
func WithBridgeObserver(o bridge.Observer) Option {
	return func(s *Session) {
		s.bridgeObserver = o
	}
}

// WithPassObserver reports every reconciliation pass to o.
func WithPassObserver(o reconcile.Observer) Option {
	return func(s *Session) {
		s.passObserver = o
	}
}

// WithContext sets the context used for pass spans.
func WithContext(ctx context.Context) Option {
	return func(s *Session) {
		s.ctx = ctx
	}
}

// Session is one document rendered by a host.
type Session struct {
	ctx            context.Context
	logger         *slog.Logger
	onError        func(error)
	keyPrefix      string
	policy         *bluemonday.Policy
	modules        []hook.Module
	bridgeObserver bridge.Observer
	passObserver   reconcile.Observer

	store     *Store
	transport *bridge.Transport
	rec       *reconcile.Reconciler
	root      *Proxy
	proxies   map[string]*Proxy

	busy   bool
	closed bool
	queue  []func() error
	saved  []memento
	timers int
	title  string

	disposeHooks []func(*Proxy)
}

// New creates a session rendering into host.
func New(host bridge.Host, opts ...Option) *Session {
	s := &Session{
		ctx:       context.Background(),
		logger:    slog.Default(),
		keyPrefix: DefaultKeyPrefix,
		modules:   modules.Defaults(),
		store:     NewStore(),
		proxies:   make(map[string]*Proxy),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session")

	topts := []bridge.TransportOption{bridge.WithLogger(s.logger)}
	if s.bridgeObserver != nil {
		topts = append(topts, bridge.WithObserver(s.bridgeObserver))
	}
	s.transport = bridge.NewTransport(host, topts...)

	mods := make([]hook.Module, 0, len(s.modules)+1)
	mods = append(mods, bridge.NewModule(s.transport, bridge.WithKeyFunc(s.newKey)))
	mods = append(mods, s.modules...)

	ropts := []reconcile.Option{
		reconcile.WithLogger(s.logger),
		reconcile.OnDestroy(s.released),
		reconcile.OnDeferredError(s.report),
	}
	if s.passObserver != nil {
		ropts = append(ropts, reconcile.WithObserver(s.passObserver))
	}
	s.rec = reconcile.New(hook.New(mods...), ropts...)

	s.root = newProxy(s, bridge.RootKey, "body")
	s.root.state = Bound
	s.proxies[bridge.RootKey] = s.root
	return s
}

// Store returns the committed tree.
func (s *Session) Store() *Store { return s.store }

// Transport returns the bridge transport.
func (s *Session) Transport() *bridge.Transport { return s.transport }

// Body returns the proxy of the document root.
func (s *Session) Body() *Proxy { return s.root }

// Closed reports whether Close was called.
func (s *Session) Closed() bool { return s.closed }

// Lookup returns the rendered proxy for key.
func (s *Session) Lookup(key string) (*Proxy, bool) {
	p, ok := s.proxies[key]
	return p, ok
}

// CreateElement returns a new Unbound proxy. Nothing reaches the host
// until the proxy is mutated or appended to a rendered parent.
func (s *Session) CreateElement(tag string) (*Proxy, error) {
	if s.closed {
		return nil, errors.New("B203")
	}
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" || strings.ContainsAny(tag, "#. \t\n") {
		return nil, errors.New("B101").WithDetailf("invalid tag %q", tag)
	}
	return newProxy(s, s.newKey(), tag), nil
}

// GetElementByID finds an element by id attribute. The key table is asked
// first, then the host. An element only the host knows is adopted as a
// Bound proxy keyed by bridge.ExternalKey(id).
func (s *Session) GetElementByID(id string) (*Proxy, error) {
	if s.closed {
		return nil, errors.New("B203")
	}
	if key, ok := s.store.KeyForID(id); ok {
		if p, ok := s.proxies[key]; ok {
			return p, nil
		}
	}

	tag, found, err := s.transport.Query(id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New("B206").WithDetailf("id %q", id)
	}
	tag = strings.ToLower(tag)
	if tag == "" {
		tag = "div"
	}

	key := bridge.ExternalKey(id)
	if old, ok := s.proxies[key]; ok {
		// The element was adopted before and has since changed its id.
		s.dispose(old.key)
	}
	p := newProxy(s, key, tag)
	p.data.Attrs = map[string]string{"id": id}
	p.state = Bound
	s.store.Adopt(&vdom.VNode{
		Sel:    tag,
		Key:    key,
		Data:   p.data.Clone(),
		Handle: &vdom.Handle{ID: key, Tag: tag},
	})
	s.transport.Adopt(key)
	s.proxies[key] = p
	s.logger.Debug("adopted host element", "id", id, "key", key, "tag", tag)
	return p, nil
}

// DispatchEvent calls the listener registered on key for ev.Type inside the
// session turn. key is an element key or the host key of an element.
// Mutations made by the listener run after it returns.
func (s *Session) DispatchEvent(key string, ev vdom.Event) error {
	return s.do(func() error {
		node, ok := s.store.Lookup(key)
		if !ok {
			if k, found := s.store.KeyForHandle(key); found {
				node, ok = s.store.Lookup(k)
			}
		}
		if !ok {
			return errors.New("B206").WithDetailf("key %q", key)
		}
		if ev.Key == "" {
			ev.Key = key
		}
		if modules.Dispatch(node.Handle, ev) {
			return nil
		}
		if node.Data != nil {
			if l := node.Data.On[ev.Type]; l != nil {
				l.Call(ev)
				return nil
			}
		}
		return errors.New("B205").WithDetailf("%s on %q", ev.Type, key)
	})
}

// SetTitle sets the document title. Hosts without title support keep the
// title in the session only.
func (s *Session) SetTitle(title string) error {
	if s.closed {
		return errors.New("B203")
	}
	s.title = title
	return s.transport.SetTitle(title)
}

// Title returns the document title.
func (s *Session) Title() (string, error) {
	if s.closed {
		return "", errors.New("B203")
	}
	title, ok, err := s.transport.Title()
	if err != nil {
		return "", err
	}
	if !ok {
		return s.title, nil
	}
	return title, nil
}

// SetTimeout runs fn immediately, exactly once, and returns a timer id.
// The delay is ignored.
func (s *Session) SetTimeout(fn func(), delay time.Duration) int {
	s.timers++
	id := s.timers
	s.logger.Debug("timer fired inline", "id", id, "delay", delay)
	if fn != nil {
		fn()
	}
	return id
}

// ClearTimeout is a no-op: timers have already fired.
func (s *Session) ClearTimeout(id int) {}

// OnDispose registers fn to run for every proxy that becomes Disposed.
func (s *Session) OnDispose(fn func(*Proxy)) {
	s.disposeHooks = append(s.disposeHooks, fn)
}

// Close disposes every proxy. Later calls fail with ErrClosed.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.queue = nil
	for key, p := range s.proxies {
		p.state = Disposed
		delete(s.proxies, key)
		s.disposed(p)
	}
	s.root.state = Disposed
	s.logger.Debug("session closed", "elements", s.store.Len())
	return nil
}

// do runs job now, or queues it while another job is running. Queued jobs
// report failures to the error handler.
func (s *Session) do(job func() error) error {
	if s.closed {
		return errors.New("B203")
	}
	if s.busy {
		s.queue = append(s.queue, job)
		return nil
	}
	s.busy = true
	defer func() { s.busy = false }()

	err := s.run(job)
	for len(s.queue) > 0 && !s.closed {
		next := s.queue[0]
		s.queue = s.queue[1:]
		if qerr := s.run(next); qerr != nil {
			s.report(qerr)
		}
	}
	s.queue = nil
	return err
}

func (s *Session) run(job func() error) error {
	s.saved = s.saved[:0]
	err := job()
	if err != nil {
		for i := len(s.saved) - 1; i >= 0; i-- {
			s.saved[i].restore()
		}
	}
	s.saved = s.saved[:0]
	return err
}

// touch saves proxies before a job changes them.
func (s *Session) touch(ps ...*Proxy) {
	for _, p := range ps {
		if p != nil {
			s.saved = append(s.saved, p.save())
		}
	}
}

// reconcile renders the scope of p and commits it.
func (s *Session) reconcile(p *Proxy) error {
	scope, err := s.scopeOf(p)
	if err != nil {
		return err
	}
	prev, _ := s.store.Lookup(scope.key)
	next := scope.render()
	ops := vdom.Diff(prev, next)

	if err := s.rec.Apply(s.ctx, scope.key, ops); err != nil {
		return err
	}
	for _, key := range s.store.Commit(scope.key, next) {
		s.dispose(key)
	}
	s.bind(scope)
	return nil
}

// scopeOf returns the nearest Bound ancestor-or-self of p. A detached
// Unbound subtree is appended to the root first.
func (s *Session) scopeOf(p *Proxy) (*Proxy, error) {
	q := p
	for q.state != Bound {
		if q.state == Disposed {
			return nil, errors.New("B201").WithDetailf("element %q", q.key)
		}
		if q.parent == nil {
			s.touch(s.root, q)
			s.root.items = append(s.root.items, child{p: q})
			s.root.markup = ""
			q.parent = s.root
		}
		q = q.parent
	}
	return q, nil
}

// bind marks every rendered proxy under p as Bound.
func (s *Session) bind(p *Proxy) {
	for _, c := range p.items {
		if c.p == nil {
			continue
		}
		if c.p.state == Unbound {
			c.p.state = Bound
			s.proxies[c.p.key] = c.p
		}
		s.bind(c.p)
	}
}

func (s *Session) dispose(key string) {
	if p, ok := s.proxies[key]; ok && key != bridge.RootKey {
		p.state = Disposed
		delete(s.proxies, key)
		s.disposed(p)
	}
}

func (s *Session) disposed(p *Proxy) {
	for _, fn := range s.disposeHooks {
		fn(p)
	}
}

// released runs for every destroyed node.
func (s *Session) released(v *vdom.VNode) {
	if v.Key != "" {
		s.dispose(v.Key)
	}
}

func (s *Session) report(err error) {
	s.logger.Error("mutation failed", "err", err)
	if s.onError != nil {
		s.onError(err)
	}
}

func (s *Session) newKey() string {
	return s.keyPrefix + uuid.NewString()
}
