package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nchanged/gridwatch/internal/api"
	"github.com/nchanged/gridwatch/internal/app"
	"github.com/nchanged/gridwatch/internal/config"
	"github.com/nchanged/gridwatch/internal/feed"
	"github.com/nchanged/gridwatch/internal/ingest"
	"github.com/nchanged/gridwatch/internal/prom"
	"github.com/nchanged/gridwatch/internal/solar"
	"github.com/nchanged/gridwatch/internal/store"
	"github.com/nchanged/gridwatch/internal/syncer"
	"github.com/nchanged/gridwatch/internal/tui"
)

var (
	flagServer   string
	flagCapacity int
)

func main() {
	cfg := config.Default()

	rootCmd := &cobra.Command{
		Use:   "gridwatch",
		Short: "gridwatch - live solar generation against grid demand",
		Long: `gridwatch polls Prometheus for solar generation, keeps today's combined
output in memory and serves it over HTTP, SSE and websockets next to the
reference grid demand curves.

Run without a subcommand to start the server.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}
	cfg.BindFlags(rootCmd.Flags())

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gridwatch server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}
	cfg.BindFlags(serveCmd.Flags())

	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "Terminal dashboard for a running gridwatch server",
		RunE:  runTUI,
	}
	tuiCmd.Flags().StringVar(&flagServer, "server", fmt.Sprintf("http://localhost:%d", config.DefaultPort), "gridwatch server URL")
	tuiCmd.Flags().IntVar(&flagCapacity, "buffer-capacity", config.DefaultBufferCapacity, "Samples kept in the local combined buffer")

	rootCmd.AddCommand(serveCmd, tuiCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	// 0. Configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data dir: %v", err)
	}
	log.Printf("Using data directory: %s", cfg.DataDir)

	// 1. Initialize Stores
	sqlite, err := store.NewSQLiteStore(filepath.Join(cfg.DataDir, "meta.db"))
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqlite.Close()

	duck, err := store.NewDuckDBStore(filepath.Join(cfg.DataDir, "history.duckdb"))
	if err != nil {
		log.Fatalf("Failed to open DuckDB: %v", err)
	}
	defer duck.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 2. Site inventory from Kubernetes
	if cfg.KubeSites {
		sync, err := syncer.NewSiteSyncer(cfg.KubeConfig, cfg.KubeNamespace, sqlite)
		if err != nil {
			log.Fatalf("Failed to create Syncer: %v", err)
		}
		go sync.Start(ctx)
	}

	// 3. Shared state
	appCtx, err := app.NewContext(cfg.BufferCapacity, time.Now())
	if err != nil {
		log.Fatalf("Failed to create buffer: %v", err)
	}
	broker := feed.NewBroker()

	// 4. Prometheus poller (the hot path)
	client, err := prom.NewClient(cfg.PromURL, cfg.Username, cfg.Password)
	if err != nil {
		return err
	}
	collector := solar.NewCollector(client, cfg.EstimatedKW, cfg.MonitoredKW, sqlite)
	poller := ingest.NewPoller(appCtx, collector, broker, sqlite, duck, cfg.PollInterval)
	go poller.Run(ctx)

	// 5. Persist Worker (The Cold Path)
	done := make(chan struct{})
	go func() {
		defer close(done)
		persist(ctx, poller, duck)
	}()

	// 6. API Server
	apiServer := api.NewServer(appCtx, collector, sqlite, broker, cfg.AllowOrigin)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// live streams end with the server context
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting gridwatch on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	cancel()
	<-done
	return nil
}

// persist drains the poller into DuckDB every minute, and once more on the
// way out.
func persist(ctx context.Context, poller *ingest.Poller, duck *store.DuckDBStore) {
	flush := func(ctx context.Context) {
		n, err := poller.FlushTo(ctx, duck)
		if err != nil {
			log.Printf("Error flushing to DuckDB, kept for retry: %v", err)
			return
		}
		if n > 0 {
			log.Printf("Flushed %d samples to DuckDB", n)
		}
	}

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(final)
			cancel()
			return
		case <-ticker.C:
			flush(ctx)
		}
	}
}

func runTUI(cmd *cobra.Command, args []string) error {
	// Redirect log output to a file so it doesn't interfere with the TUI
	logFile, err := os.CreateTemp("", "gridwatch-tui-*.log")
	if err == nil {
		log.SetOutput(logFile)
		defer logFile.Close()
	}
	return tui.Run(cmd.Context(), flagServer, flagCapacity)
}
