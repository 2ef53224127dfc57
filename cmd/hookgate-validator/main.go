// Command hookgate-validator is a reference external validator. It verifies
// signed gate requests, applies a reserved word policy and answers with
// signed verdicts.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goliatone/go-hookgate/adapters/prometheus"
	"github.com/goliatone/go-hookgate/core"
	"github.com/goliatone/go-hookgate/webhooks/receiver"
	"github.com/joho/godotenv"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hookgate-validator: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(os.Stdout, cfg.LogLevel)

	registry := prom.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observer := core.NewObserver("hookgate_validator", logger, prometheus.NewRecorder(registry))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(cfg, observer, registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("validator listening", "addr", cfg.Addr, "reserved_words", len(cfg.ReservedWords))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("validator server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("validator shutdown failed", "error", err)
	}
}

func newRouter(cfg validatorConfig, observer *core.Observer, registry *prom.Registry) http.Handler {
	rc := &receiver.Receiver{
		Secret:       cfg.Secret,
		Approvers:    approvers(cfg.ReservedWords),
		MaxSkew:      cfg.MaxSkew,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Observer:     observer,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Route("/webhooks", func(r chi.Router) {
		r.Use(observeRequests(observer))
		r.Mount("/", rc.Routes())
	})
	return r
}

// observeRequests records one "request" sample per webhook call, tagged by
// status code.
func observeRequests(observer *core.Observer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startedAt := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			var err error
			if status >= http.StatusBadRequest {
				err = errors.New(http.StatusText(status))
			}
			observer.Observe(r.Context(), startedAt, "request", err, map[string]any{
				"path":        r.URL.Path,
				"status_code": status,
			}, "status_code")
		})
	}
}
