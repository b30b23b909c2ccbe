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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/aretw0/rootcause/internal/presentation/tui"
	httpAdapter "github.com/aretw0/rootcause/pkg/adapters/http"
	"github.com/aretw0/rootcause/pkg/observability"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP diagnosis server",
		Long:  `Exposes the diagnosis engine, the stored results and Prometheus metrics over HTTP.`,
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "Listen address (overrides http.addr)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		a.cfg.HTTP.Addr = addr
	}

	metrics, err := observability.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	eng, err := a.engine(metrics.Hooks())
	if err != nil {
		return err
	}

	manager, closeStore, err := a.results(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	handler := httpAdapter.NewHandler(eng, manager,
		httpAdapter.WithMetrics(prometheus.DefaultGatherer),
		httpAdapter.WithLogger(a.logger),
	)
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if tui.IsTerminal(cmd.OutOrStdout()) {
		tui.PrintBanner(cmd.OutOrStdout())
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		a.logger.Info("Starting rootcause server", "addr", srv.Addr, "backend", a.cfg.Results.Backend)
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt or terminate signals.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		eng.Close(context.Background())
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		a.logger.Info("Start shutdown", "signal", sig.String())

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Error("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			if err := srv.Close(); err != nil {
				a.logger.Error("Error killing server", "err", err)
			}
		}
		eng.Close(ctx)
		a.logger.Info("rootcause server stopped gracefully")
		return nil
	}
}
