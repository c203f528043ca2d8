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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"traitforge/internal/blob"
	"traitforge/internal/grant"
	"traitforge/internal/httpapi"
	"traitforge/internal/listing"
	"traitforge/internal/observability"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve token images, attributes and minting over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			if addr == "" {
				addr = a.cfg.HTTPAddr
			}
			srv, err := a.server(ctx, addr)
			if err != nil {
				return err
			}
			return run(ctx, srv, a.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default TRAITFORGE_HTTP_ADDR)")
	return cmd
}

// server assembles the HTTP surface and its optional tracing and file
// watching.
func (a *app) server(ctx context.Context, addr string) (*http.Server, error) {
	shutdownTracing, err := observability.SetupTracing(ctx, "traitforge", a.cfg.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return shutdownTracing(ctx)
	})

	if root, ok := blob.LocalRoot(a.store); ok && a.cfg.FSWatch {
		w, err := listing.WatchFS(ctx, root, a.cache, a.logger)
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", root, err)
		}
		a.closers = append(a.closers, w.Close)
	}

	var grants httpapi.GrantVerifier
	if a.cfg.GrantSecret != "" {
		v, err := grant.NewVerifier(a.cfg.GrantSecret, nil)
		if err != nil {
			return nil, err
		}
		grants = v
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/tokens/", httpapi.NewHandler(a.gen, grants, a.logger))
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}, nil
}

func run(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
