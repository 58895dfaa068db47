package main

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vango-dev/vbridge/internal/config"
	"github.com/vango-dev/vbridge/internal/errors"
	"github.com/vango-dev/vbridge/pkg/metrics"
	"github.com/vango-dev/vbridge/pkg/remote"
	"github.com/vango-dev/vbridge/pkg/script"
	"github.com/vango-dev/vbridge/pkg/session"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(g *globals) *cobra.Command {
	var (
		addr       string
		scriptPath string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Drive remote renderers over a websocket",
		Long: `Start an HTTP server for remote renderers.

Each renderer that connects to /renderer gets its own session. When
--script is set the script runs first; after that, events from the
renderer are dispatched to the listeners the script registered.

Endpoints:
  /renderer   websocket for renderers
  /healthz    liveness probe
  /metrics    Prometheus metrics

Examples:
  vbridge serve --script app.js
  vbridge serve --addr :9090 --script app.js`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Serve.Addr = addr
			}

			sv, err := newServer(cfg, logger, scriptPath, timeout, prometheus.NewRegistry())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return sv.listen(ctx)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from vbridge.json)")
	cmd.Flags().StringVar(&scriptPath, "script", "", "Script to run for every renderer")
	cmd.Flags().DurationVar(&timeout, "timeout", script.DefaultTimeout, "Script execution limit")

	return cmd
}

// server serves renderers, one session per connection.
type server struct {
	cfg        *config.Config
	logger     *slog.Logger
	registry   *prometheus.Registry
	metrics    *metrics.Collector
	script     string
	scriptName string
	timeout    time.Duration
}

func newServer(cfg *config.Config, logger *slog.Logger, scriptPath string, timeout time.Duration, reg *prometheus.Registry) (*server, error) {
	sv := &server{
		cfg:      cfg,
		logger:   logger.With("component", "server"),
		registry: reg,
		timeout:  timeout,
	}
	if scriptPath != "" {
		src, err := os.ReadFile(scriptPath)
		if err != nil {
			return nil, errors.New("B501").WithDetailf("read %s", scriptPath).Wrap(err)
		}
		sv.script, sv.scriptName = string(src), filepath.Base(scriptPath)
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sv.metrics = metrics.New(metrics.WithRegistry(reg), metrics.WithNamespace(cfg.Metrics.Namespace))
	return sv, nil
}

func (sv *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "ok\n")
	})
	r.Handle("/metrics", promhttp.HandlerFor(sv.registry, promhttp.HandlerOpts{}))

	renderers := remote.NewHandler(sv.serveRenderer, nil,
		remote.WithLogger(sv.logger),
		remote.WithQueryTimeout(sv.cfg.QueryTimeout()),
	)
	renderers.Logger = sv.logger
	r.Handle("/renderer", renderers)
	return r
}

// listen serves until ctx is cancelled, then shuts down gracefully.
// Renderer sessions see the cancellation through their request context.
func (sv *server) listen(ctx context.Context) error {
	srv := &http.Server{
		Addr:              sv.cfg.Serve.Addr,
		Handler:           sv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	sv.logger.Info("listening", "addr", sv.cfg.Serve.Addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	sv.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (sv *server) serveRenderer(r *http.Request, h *remote.Host) {
	ctx := r.Context()
	logger := sv.logger.With("renderer", h.Renderer(), "request_id", middleware.GetReqID(ctx))
	sv.metrics.SessionOpened()
	defer sv.metrics.SessionClosed()

	s := session.New(h,
		session.WithContext(ctx),
		session.WithLogger(logger),
		session.WithKeyPrefix(sv.cfg.Session.KeyPrefix),
		session.WithSanitizer(sanitizer(sv.cfg)),
		session.WithPassObserver(sv.metrics),
		session.WithBridgeObserver(sv.metrics),
	)
	defer s.Close()

	if sv.script != "" {
		rt := script.New(s, script.WithLogger(logger), script.WithTimeout(sv.timeout))
		if err := rt.Run(ctx, sv.scriptName, sv.script); err != nil {
			logger.Error("script failed", "err", err)
			return
		}
	}

	err := remote.Pump(ctx, s, h)
	if err != nil && !stderrors.Is(err, context.Canceled) {
		logger.Warn("session ended", "err", err)
		return
	}
	logger.Info("session ended")
}
