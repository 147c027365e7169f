package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/fuzzysearch/internal/config"
	"github.com/kozaktomas/fuzzysearch/internal/database"
	"github.com/kozaktomas/fuzzysearch/internal/session"
	"github.com/kozaktomas/fuzzysearch/internal/state"
	"github.com/kozaktomas/fuzzysearch/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the FuzzySearch web API.
The server hashes uploaded images, runs lookups against FuzzySearch and
streams the shared session state to connected clients.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default from WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from WEB_HOST)")
}

// openServeStorage opens the optional cache and local index. Failures only
// disable the local features.
func openServeStorage(ctx context.Context, cfg *config.Config) (*database.Store, *database.LocalIndex) {
	if cfg.Storage.CachePath == "" {
		fmt.Printf("Fingerprint cache disabled (CACHE_PATH not set)\n")
		return nil, nil
	}

	store, err := openCache(ctx, cfg)
	if err != nil {
		fmt.Printf("Warning: %v\n", err)
		fmt.Printf("Continuing without fingerprint cache\n")
		return nil, nil
	}

	if cfg.Storage.IndexPath != "" {
		fmt.Printf("Loading local HNSW index from %s...\n", cfg.Storage.IndexPath)
	} else {
		fmt.Printf("Building in-memory HNSW index for local search...\n")
	}
	idx, err := database.OpenLocalIndex(ctx, store, cfg.Storage.IndexPath)
	if err != nil {
		fmt.Printf("Warning: Failed to build local HNSW index: %v\n", err)
		return store, nil
	}
	fmt.Printf("Local HNSW index ready with %d fingerprints\n", idx.Count())
	return store, idx
}

// resolveServeHostPort applies the --host and --port flags over config.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("port") {
		cfg.Web.Port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Web.Host = mustGetString(cmd, "host")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	resolveServeHostPort(cmd, cfg)

	client, err := newClient(cfg, uint64(cfg.FuzzySearch.Threshold))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, idx := openServeStorage(ctx, cfg)
	if store != nil {
		defer store.Close()
	}

	server := web.NewServer(cfg, web.Deps{
		Session: session.New(client, state.New()),
		Worker:  newWorker(cfg),
		Cache:   store,
		Index:   idx,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		if idx != nil && cfg.Storage.IndexPath != "" {
			if err := idx.Save(cfg.Storage.IndexPath); err != nil {
				fmt.Printf("Warning: failed to save local HNSW index: %v\n", err)
			} else {
				fmt.Println("Local HNSW index saved to disk")
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting FuzzySearch web API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
