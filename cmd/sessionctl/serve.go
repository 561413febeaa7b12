package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/pribylovaa/go-session-client/internal/clients"
	gwhttp "github.com/pribylovaa/go-session-client/internal/http"
	"github.com/pribylovaa/go-session-client/internal/navigation"
)

const shutdownTimeout = 10 * time.Second

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run a local gateway that forwards requests with the stored session",
		Long: `Run a local HTTP gateway on http.host:http.port.

/session/* manages the session, every other path is forwarded to
api.base_url with the stored access token. The gateway never returns tokens.
/livez, /healthz and /metrics serve liveness, readiness and Prometheus metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cl, err := a.open(cmd, navigation.NewRouter("", nil))
			if err != nil {
				return err
			}

			defer func() {
				if cerr := cl.Close(); cerr != nil {
					a.log.Warn("store_close_failed", slog.String("err", cerr.Error()))
				}
			}()

			a.log.Info("clients_initialized", slog.String("store", a.cfg.Store.Driver))

			httpAddr := a.cfg.HTTP.Addr()
			ln, err := net.Listen("tcp", httpAddr)
			if err != nil {
				a.log.Error("http_listen_failed", slog.String("addr", httpAddr), slog.String("err", err.Error()))
				return err
			}

			return a.serve(ctx, ln, cl)
		},
	}
}

// serve обслуживает ln до отмены ctx или ошибки сервера.
func (a *app) serve(ctx context.Context, ln net.Listener, cl *clients.Clients) error {
	log := a.log

	apiHandler := gwhttp.NewRouter(cl.Account, gwhttp.Options{
		Logger:  log,
		Timeout: a.cfg.Timeouts.Service,
	})

	var ready int32 // 0 — not ready; 1 — ready

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if atomic.LoadInt32(&ready) == 1 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}

		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	mux.Handle("/metrics", metricsHandler(a.opts.gatherer))

	mux.Handle("/", apiHandler)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("http_listen_start", slog.String("addr", ln.Addr().String()))

	serveErrCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	atomic.StoreInt32(&ready, 1)
	log.Info("gateway_ready")

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown_requested")
	case serveErr = <-serveErrCh:
		if serveErr != nil {
			log.Error("http_serve_failed", slog.String("err", serveErr.Error()))
		}
	}

	atomic.StoreInt32(&ready, 0)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_incomplete", slog.String("err", err.Error()))
	} else {
		log.Info("http_stopped")
	}

	log.Info("gateway_stopped")
	return serveErr
}

func metricsHandler(g prometheus.Gatherer) http.Handler {
	if g == nil || g == prometheus.DefaultGatherer {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
