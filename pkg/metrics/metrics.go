// Package metrics exports reconciliation and bridge activity to Prometheus.
//
// A Collector implements both reconcile.Observer and bridge.Observer, so one
// instance is passed to every session:
//
//	m := metrics.New(metrics.WithNamespace("vbridge"))
//	s := session.New(host,
//	    session.WithPassObserver(m),
//	    session.WithBridgeObserver(m),
//	)
//
// Metrics collected:
//   - vbridge_passes_total: passes by result
//   - vbridge_pass_duration_seconds: pass duration
//   - vbridge_ops_total: diff operations by kind
//   - vbridge_bridge_commands_total: host commands by op and status
//   - vbridge_live_elements: elements created and not yet destroyed
//   - vbridge_sessions_active: open sessions
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/vbridge/pkg/bridge"
	"github.com/vango-dev/vbridge/pkg/reconcile"
	"github.com/vango-dev/vbridge/pkg/vdom"
)

// Config configures a Collector.
type Config struct {
	// Namespace is the metrics namespace (default: "vbridge").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for pass duration.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures a Collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the pass duration buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "vbridge",
		// Passes are usually sub-millisecond.
		Buckets:  []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		Registry: prometheus.DefaultRegisterer,
	}
}

// Collector records session activity.
type Collector struct {
	passes       *prometheus.CounterVec
	passDuration prometheus.Histogram
	ops          *prometheus.CounterVec
	commands     *prometheus.CounterVec
	liveElements prometheus.Gauge
	sessions     prometheus.Gauge
}

var (
	_ reconcile.Observer = (*Collector)(nil)
	_ bridge.Observer    = (*Collector)(nil)
)

// New registers the metrics and returns a Collector. Registering twice with
// the same registry panics.
func New(opts ...Option) *Collector {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Collector{
		passes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "passes_total",
			Help:        "Total number of reconciliation passes",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		passDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pass_duration_seconds",
			Help:        "Reconciliation pass duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		ops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "ops_total",
			Help:        "Total number of diff operations applied",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "bridge_commands_total",
			Help:        "Total number of host commands by op and status",
			ConstLabels: config.ConstLabels,
		}, []string{"op", "status"}),

		liveElements: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "live_elements",
			Help:        "Host elements created and not yet destroyed",
			ConstLabels: config.ConstLabels,
		}),

		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "sessions_active",
			Help:        "Number of open sessions",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// ObservePass records one reconciliation pass.
func (c *Collector) ObservePass(counts map[vdom.OpKind]int, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.passes.WithLabelValues(result).Inc()
	c.passDuration.Observe(elapsed.Seconds())
	for kind, n := range counts {
		if n > 0 {
			c.ops.WithLabelValues(strings.ToLower(kind.String())).Add(float64(n))
		}
	}
}

// ObserveCommand records one host command.
func (c *Collector) ObserveCommand(op bridge.Op, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.commands.WithLabelValues(string(op), status).Inc()
	if err != nil {
		return
	}
	switch op {
	case bridge.OpCreate:
		c.liveElements.Inc()
	case bridge.OpDestroy:
		c.liveElements.Dec()
	}
}

// SessionOpened records a new session.
func (c *Collector) SessionOpened() { c.sessions.Inc() }

// SessionClosed records a finished session.
func (c *Collector) SessionClosed() { c.sessions.Dec() }
