package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	clierrors "github.com/vango-dev/objbridge/internal/errors"
	"github.com/vango-dev/objbridge/pkg/bridge"
	"github.com/vango-dev/objbridge/pkg/transport"
)

func serveCmd(a *app) *cobra.Command {
	var (
		label string
		tick  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a demo object graph over WebSocket",
		Long: `Serve a shared Counter object to every WebSocket client.

Each connection gets its own bridge. The counter exposes the value and
label properties, the increment, reset, rename and echo methods, and
the changed and reset events.

Endpoints:
  /ws        bridge endpoint (server.path)
  /metrics   Prometheus metrics (server.metrics_path)
  /healthz   liveness probe

Examples:
  objbridge serve
  objbridge serve --addr :9000 --tick 1s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, cmd.OutOrStdout(), NewCounter(label), tick)
		},
	}

	cmd.Flags().StringP("addr", "a", "", "Address to listen on (default from server.address)")
	cmd.Flags().StringVar(&label, "label", "demo", "Initial counter label")
	cmd.Flags().DurationVar(&tick, "tick", 0, "Increment the counter at this interval (0 disables)")

	return cmd
}

func (a *app) serve(ctx context.Context, out io.Writer, counter *Counter, tick time.Duration) error {
	ln, err := net.Listen("tcp", a.cfg.Server.Address)
	if err != nil {
		return clierrors.New("B012").Wrap(err)
	}

	srv := &http.Server{
		Handler:           a.newRouter(counter, prometheus.NewRegistry()),
		ReadHeaderTimeout: 10 * time.Second,
		// Hijacked WebSocket connections are not closed by Shutdown; their
		// request contexts end with ctx instead.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	success(out, "Serving %s on ws://%s%s", counter.label, ln.Addr(), a.cfg.Server.Path)
	if a.cfg.Server.MetricsPath != "" {
		info(out, "metrics at http://%s%s", ln.Addr(), a.cfg.Server.MetricsPath)
	}

	var wg conc.WaitGroup
	serveErr := make(chan error, 1)
	wg.Go(func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	})
	if tick > 0 {
		wg.Go(func() { runTicker(ctx, counter, tick) })
	}

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		err = clierrors.New("B012").Wrap(err)
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout())
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil && err == nil {
		err = serr
	}
	wg.Wait()
	return err
}

// newRouter mounts the bridge endpoint, metrics and health check.
func (a *app) newRouter(counter *Counter, registry *prometheus.Registry) http.Handler {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := bridge.NewMetrics(bridge.WithRegistry(registry))
	logger := a.logger

	handler := &transport.Handler{
		Upgrader: websocket.Upgrader{
			CheckOrigin: checkOrigin(a.cfg.Server.AllowedOrigins),
		},
		Config:  a.wsConfig(),
		Options: a.bridgeOptions(bridge.WithMetrics(metrics)),
		OnConnect: func(r *http.Request, b *bridge.Bridge) error {
			logger.Info("client connected", "remote", r.RemoteAddr, "bridge_id", b.ID())
			return b.SendRoot(counter)
		},
		OnDisconnect: func(r *http.Request, b *bridge.Bridge) {
			logger.Info("client disconnected", "remote", r.RemoteAddr, "bridge_id", b.ID(), "reason", b.Err())
		},
	}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	r.Get(a.cfg.Server.Path, handler.ServeHTTP)
	if a.cfg.Server.MetricsPath != "" {
		r.Handle(a.cfg.Server.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	}
	return r
}

// checkOrigin accepts requests without an Origin header, same-host origins
// and the listed origins. "*" accepts everything.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		return slices.ContainsFunc(allowed, func(o string) bool {
			return strings.EqualFold(strings.TrimSuffix(o, "/"), origin)
		})
	}
}

func runTicker(ctx context.Context, counter *Counter, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			counter.Increment(1)
		}
	}
}

