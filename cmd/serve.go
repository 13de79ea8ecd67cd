package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/smart-attendance/internal/config"
	"github.com/kozaktomas/smart-attendance/internal/database"
	"github.com/kozaktomas/smart-attendance/internal/metrics"
	"github.com/kozaktomas/smart-attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the attendance HTTP API.
The API manages schools, classes, students and holidays, runs camera recognition
sessions fed by the browser and serves attendance reports.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to (overrides WEB_HOST)")
}

// initReferenceIndex builds or loads the reference HNSW graph used for duplicate enrollment warnings.
func initReferenceIndex(ctx context.Context, indexer database.ReferenceIndexer, indexPath string) {
	if indexPath != "" {
		fmt.Printf("Loading reference HNSW index from %s...\n", indexPath)
	} else {
		fmt.Printf("Building in-memory HNSW index for reference embeddings...\n")
	}
	if err := indexer.RebuildReferenceIndex(ctx); err != nil {
		fmt.Printf("Warning: Failed to build reference HNSW index: %v\n", err)
		fmt.Printf("Duplicate enrollment warnings are disabled\n")
		return
	}
	fmt.Printf("Reference HNSW index built with %d students\n", indexer.ReferenceIndex().Len())
}

// saveReferenceIndex saves the HNSW graph to disk during shutdown.
func saveReferenceIndex() {
	indexer := database.GetReferenceIndexer()
	if indexer == nil {
		return
	}
	if err := indexer.SaveReferenceIndex(); err != nil {
		fmt.Printf("Warning: failed to save reference HNSW index: %v\n", err)
	}
}

// applyServeFlags lets explicit flags win over the environment.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("port") {
		cfg.Web.Port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Web.Host = mustGetString(cmd, "host")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	applyServeFlags(cmd, cfg)

	ctx := context.Background()

	fmt.Printf("Opening %s database...\n", cfg.Database.Driver)
	store, err := openStore(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore(store)

	initReferenceIndex(ctx, store, cfg.Database.ReferenceIndexPath)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	client := newEmbeddingClient(cfg)
	if err := client.Ping(ctx); err != nil {
		// Sessions retry initialization on activation, so the server still starts.
		fmt.Printf("Warning: embedding server not reachable: %v\n", err)
	}

	server := web.NewServer(cfg, web.Dependencies{
		Store:    store,
		Indexer:  store,
		Provider: client,
		Embedder: client,
		Metrics:  m,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
		saveReferenceIndex()
	}()

	fmt.Printf("Starting attendance API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	<-stopped
	return nil
}
