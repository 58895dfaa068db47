// Package reconcile applies diff operations to a host through a hook
// pipeline.
//
// Apply walks the ops in order. A Create builds the whole subtree first
// (create hooks parent-first, each child inserted into its parent as soon
// as it exists) and then inserts the subtree root at its final position.
// A Move re-runs the insert hook. A Remove runs the remove hooks and defers
// the destroy hooks for the removed subtree until every remove listener
// has completed.
//
// When a pass fails, every subtree it created is destroyed again so the
// same keys can be created by a later pass.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/vbridge/pkg/hook"
	"github.com/vango-dev/vbridge/pkg/vdom"
)

const defaultTracerName = "vbridge"

// Observer is notified after every pass.
type Observer interface {
	ObservePass(counts map[vdom.OpKind]int, elapsed time.Duration, err error)
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// WithObserver reports every pass to o.
func WithObserver(o Observer) Option {
	return func(r *Reconciler) {
		r.observer = o
	}
}

// WithTracerName sets the OpenTelemetry tracer name (default: "vbridge").
func WithTracerName(name string) Option {
	return func(r *Reconciler) {
		r.tracer = otel.Tracer(name)
	}
}

// OnDestroy registers fn to run for every node of a removed subtree after
// its destroy hooks, parents first.
func OnDestroy(fn func(*vdom.VNode)) Option {
	return func(r *Reconciler) {
		r.onDestroy = fn
	}
}

// OnDeferredError registers fn for failures in destroy hooks that run after
// Apply has returned.
func OnDeferredError(fn func(error)) Option {
	return func(r *Reconciler) {
		r.onDeferredError = fn
	}
}

// Reconciler dispatches ops through a pipeline.
type Reconciler struct {
	pipeline        *hook.Pipeline
	logger          *slog.Logger
	observer        Observer
	tracer          trace.Tracer
	onDestroy       func(*vdom.VNode)
	onDeferredError func(error)

	applying   bool
	destroyErr error
	created    []*vdom.VNode
}

// New creates a reconciler for p.
func New(p *hook.Pipeline, opts ...Option) *Reconciler {
	r := &Reconciler{
		pipeline: p,
		logger:   slog.Default(),
		tracer:   otel.Tracer(defaultTracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "reconcile")
	return r
}

// Apply runs ops in order and stops at the first failure. Subtrees created
// by the failed pass are destroyed; other steps already applied stay.
func (r *Reconciler) Apply(ctx context.Context, key string, ops []vdom.Op) (err error) {
	counts := vdom.CountOps(ops)
	start := time.Now()

	_, span := r.tracer.Start(ctx, "vbridge.reconcile",
		trace.WithAttributes(
			attribute.String("vbridge.key", key),
			attribute.Int("vbridge.ops", len(ops)),
			attribute.Int("vbridge.creates", counts[vdom.OpCreate]),
			attribute.Int("vbridge.moves", counts[vdom.OpMove]),
			attribute.Int("vbridge.updates", counts[vdom.OpUpdate]),
			attribute.Int("vbridge.removes", counts[vdom.OpRemove]),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		if r.observer != nil {
			r.observer.ObservePass(counts, time.Since(start), err)
		}
	}()

	r.applying = true
	r.created = r.created[:0]
	defer func() {
		r.applying = false
		r.created = r.created[:0]
	}()

	for i, op := range ops {
		err = r.apply(op)
		if err == nil && r.destroyErr != nil {
			err, r.destroyErr = r.destroyErr, nil
		}
		if err != nil {
			r.logger.Error("reconcile pass failed",
				"key", key, "step", i, "op", op.String(), "err", err)
			r.discardCreated()
			return err
		}
	}
	r.logger.Debug("reconcile pass",
		"key", key,
		"creates", counts[vdom.OpCreate],
		"moves", counts[vdom.OpMove],
		"updates", counts[vdom.OpUpdate],
		"removes", counts[vdom.OpRemove])
	return nil
}

func (r *Reconciler) apply(op vdom.Op) error {
	switch op.Kind {
	case vdom.OpCreate:
		r.created = append(r.created, op.Node)
		if err := r.create(op.Node); err != nil {
			return err
		}
		return r.pipeline.Insert(op.Node, hook.Placement{Parent: op.Parent, Before: op.Before})
	case vdom.OpMove:
		return r.pipeline.Insert(op.Node, hook.Placement{Parent: op.Parent, Before: op.Before})
	case vdom.OpUpdate:
		return r.pipeline.Update(op.Old, op.Node)
	case vdom.OpRemove:
		old := op.Old
		return r.pipeline.Remove(old, func() { r.destroy(old) })
	}
	return nil
}

// create builds v's subtree. Children are inserted into v right away; v
// itself is inserted by the caller.
func (r *Reconciler) create(v *vdom.VNode) error {
	if err := r.pipeline.Create(v); err != nil {
		return err
	}
	for _, c := range v.Children {
		if err := r.create(c); err != nil {
			return err
		}
		if err := r.pipeline.Insert(c, hook.Placement{Parent: v}); err != nil {
			return err
		}
	}
	return nil
}

// destroy runs destroy hooks for the removed subtree and releases handles.
func (r *Reconciler) destroy(v *vdom.VNode) {
	var err error
	vdom.Walk(v, func(n *vdom.VNode) bool {
		if n.Handle == nil {
			return false
		}
		if derr := r.pipeline.Destroy(n); derr != nil && err == nil {
			err = derr
		}
		if r.onDestroy != nil {
			r.onDestroy(n)
		}
		return true
	})
	vdom.ClearHandles(v)

	if err != nil {
		r.logger.Error("destroy failed", "key", v.Key, "err", err)
		if r.applying {
			r.destroyErr = err
		} else if r.onDeferredError != nil {
			r.onDeferredError(err)
		}
	}
}

// discardCreated destroys the subtrees created by a failed pass, newest
// first. Their nodes are not reported to OnDestroy: they were never
// committed.
func (r *Reconciler) discardCreated() {
	for i := len(r.created) - 1; i >= 0; i-- {
		v := r.created[i]
		vdom.Walk(v, func(n *vdom.VNode) bool {
			if n.Handle == nil {
				return false
			}
			if err := r.pipeline.Destroy(n); err != nil {
				r.logger.Warn("discard failed", "key", n.HandleID(), "err", err)
			}
			return true
		})
		vdom.ClearHandles(v)
	}
	r.created = r.created[:0]
}
