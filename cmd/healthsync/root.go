package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hyperengineering/healthsync/internal/api"
	"github.com/hyperengineering/healthsync/internal/worker"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:          "healthsync",
	Short:        "healthsync - daily health record reconciliation service",
	SilenceUsage: true,
	RunE:         run,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with the background sync and annotation workers",
	RunE:  run,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(trendCmd)
	rootCmd.AddCommand(annotateCmd)
}

func run(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	a, err := loadApp(os.Stdout)
	if err != nil {
		return err
	}
	cfg := a.cfg

	handler := api.NewHandler(a.store, a.cache, a.engine, api.Options{
		APIKey:       cfg.Auth.APIKey,
		Version:      Version,
		ModelName:    a.modelName,
		LookbackDays: cfg.Sync.LookbackDays,
		Location:     cfg.Location(),
	})
	router := api.NewRouter(handler)
	slog.Info("router initialized")

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// Worker lifecycle: the pool is the application-lifetime task group for
	// annotation requests; the coordinator resumes pending work, then syncs
	var wg sync.WaitGroup
	coordinator := worker.NewSyncCoordinator(
		a.engine,
		a.cache,
		time.Duration(cfg.Sync.Interval),
		cfg.Sync.LookbackDays,
		cfg.Location(),
	)
	startWorker(ctx, &wg, "annotation-pool", a.pool.Run)
	startWorker(ctx, &wg, "sync-coordinator", coordinator.Run)

	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called gracefully.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// Wait for workers; in-flight generations see the cancelled context and
	// leave their placeholder for the next start
	wg.Wait()

	a.close()

	slog.Info("shutdown complete")
	return nil
}

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
