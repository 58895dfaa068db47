// Package script runs untrusted JavaScript against a session.
//
// Scripts see a small DOM: document.createElement, getElementById, body and
// title, and element objects backed by session proxies. They never touch
// the host directly; every mutation goes through the session's ordered
// reconciliation.
package script

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/vango-dev/vbridge/internal/errors"
	"github.com/vango-dev/vbridge/pkg/session"
)

// DefaultTimeout bounds a single Run.
const DefaultTimeout = 5 * time.Second

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger console output goes to.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithTimeout bounds each Run. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(r *Runtime) {
		r.timeout = d
	}
}

// Runtime is a goja VM bound to one session. Like the session, it must be
// used from a single goroutine.
type Runtime struct {
	vm      *goja.Runtime
	s       *session.Session
	logger  *slog.Logger
	timeout time.Duration

	objects map[*session.Proxy]*goja.Object
	proxies map[*goja.Object]*session.Proxy
	thrown  error
}

// New creates a runtime with document, console and timer globals.
func New(s *session.Session, opts ...Option) *Runtime {
	r := &Runtime{
		vm:      goja.New(),
		s:       s,
		logger:  slog.Default(),
		timeout: DefaultTimeout,
		objects: make(map[*session.Proxy]*goja.Object),
		proxies: make(map[*goja.Object]*session.Proxy),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "script")
	s.OnDispose(r.forget)
	r.vm.SetMaxCallStackSize(1024)
	r.setupGlobals()
	return r
}

// Elements returns the number of element objects the runtime holds.
func (r *Runtime) Elements() int { return len(r.objects) }

// forget drops the script object of a disposed proxy.
func (r *Runtime) forget(p *session.Proxy) {
	if obj, ok := r.objects[p]; ok {
		delete(r.proxies, obj)
		delete(r.objects, p)
	}
}

// Session returns the session scripts mutate.
func (r *Runtime) Session() *session.Session { return r.s }

// Run executes src. Uncaught exceptions, interrupts and timeouts return a
// B501 error.
func (r *Runtime) Run(ctx context.Context, name, src string) error {
	stop := make(chan struct{})
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		var expired <-chan time.Time
		if r.timeout > 0 {
			timer := time.NewTimer(r.timeout)
			defer timer.Stop()
			expired = timer.C
		}
		select {
		case <-expired:
			r.vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			r.vm.Interrupt("context cancelled")
		case <-stop:
		}
	}()

	r.thrown = nil
	_, err := r.vm.RunScript(name, src)
	close(stop)
	<-watched
	r.vm.ClearInterrupt()
	if err != nil {
		return r.scriptError(name, err)
	}
	return nil
}

// scriptError converts a goja failure. A Go error thrown into the script
// and left uncaught stays reachable through errors.Is.
func (r *Runtime) scriptError(name string, err error) error {
	var interrupted *goja.InterruptedError
	if stderrors.As(err, &interrupted) {
		return errors.New("B501").WithDetailf("%s: interrupted: %v", name, interrupted.Value())
	}
	e := errors.New("B501").WithDetailf("%s: %s", name, err.Error())
	if r.thrown != nil && strings.Contains(err.Error(), r.thrown.Error()) {
		e = e.Wrap(r.thrown)
	}
	return e
}

// throw raises err as a JavaScript exception.
func (r *Runtime) throw(err error) {
	r.thrown = err
	panic(r.vm.NewGoError(err))
}

func (r *Runtime) setupGlobals() {
	r.vm.Set("require", goja.Undefined())
	r.vm.Set("process", goja.Undefined())

	console := r.vm.NewObject()
	console.Set("log", r.consoleFunc(slog.LevelInfo))
	console.Set("info", r.consoleFunc(slog.LevelInfo))
	console.Set("debug", r.consoleFunc(slog.LevelDebug))
	console.Set("warn", r.consoleFunc(slog.LevelWarn))
	console.Set("error", r.consoleFunc(slog.LevelError))
	r.vm.Set("console", console)

	r.vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(r.vm.NewTypeError("setTimeout: callback is not a function"))
		}
		delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
		args := call.Arguments
		if len(args) > 2 {
			args = args[2:]
		} else {
			args = nil
		}
		id := r.s.SetTimeout(func() {
			if _, err := fn(goja.Undefined(), args...); err != nil {
				r.logger.Error("timer callback failed", "err", err)
			}
		}, delay)
		return r.vm.ToValue(id)
	})
	r.vm.Set("clearTimeout", func(call goja.FunctionCall) goja.Value {
		r.s.ClearTimeout(int(call.Argument(0).ToInteger()))
		return goja.Undefined()
	})

	r.vm.Set("document", r.document())
}

func (r *Runtime) consoleFunc(level slog.Level) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		r.logger.Log(context.Background(), level, strings.Join(parts, " "), "source", "console")
		return goja.Undefined()
	}
}

// Value returns a global of the VM, or nil when it is undefined.
func (r *Runtime) Value(name string) any {
	v := r.vm.Get(name)
	if v == nil || goja.IsUndefined(v) {
		return nil
	}
	return v.Export()
}

func (r *Runtime) typeError(format string, args ...any) {
	panic(r.vm.NewTypeError(fmt.Sprintf(format, args...)))
}
