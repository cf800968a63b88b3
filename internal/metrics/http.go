package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/morning-glow/internal/logger"
)

const readHeaderTimeout = 5 * time.Second

// NewRouter exposes /metrics and /healthz.
func NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	return r
}

// Serve runs the metrics listener on address until ctx is canceled.
func Serve(ctx context.Context, address string) error {
	ctx = logger.WithName(ctx, "metrics")

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}

	srv := &http.Server{
		Handler:           NewRouter(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), readHeaderTimeout)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.InfoKV(ctx, "Metrics listening", "listen_address", lis.Addr().String())

	if err = srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}

	<-done

	return nil
}
