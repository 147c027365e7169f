package cmd

import (
	"context"
	"fmt"
	"os"
	"sync"
	"text/tabwriter"

	"github.com/kozaktomas/fuzzysearch/internal/config"
	"github.com/kozaktomas/fuzzysearch/internal/database"
	"github.com/kozaktomas/fuzzysearch/internal/fingerprint"
	"github.com/spf13/cobra"
)

var hashCmd = &cobra.Command{
	Use:   "hash <file|dir>...",
	Short: "Compute perceptual fingerprints of images",
	Long: `Compute the 64-bit perceptual fingerprint of each image.
Directories are walked recursively for image files. Images that fail to
decode are reported individually without aborting the batch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHash,
}

func init() {
	rootCmd.AddCommand(hashCmd)

	hashCmd.Flags().Bool("json", false, "Output as JSON")
	hashCmd.Flags().Int("workers", 0, "Number of parallel hashing workers (default from HASH_WORKERS)")
	hashCmd.Flags().Bool("cache", false, "Store computed fingerprints in the local cache")
}

func runHash(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Load()
	jsonOutput := mustGetBool(cmd, "json")

	workers := mustGetInt(cmd, "workers")
	if workers <= 0 {
		workers = cfg.Hashing.Workers
	}

	paths, err := collectImagePaths(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		if jsonOutput {
			return outputJSON(fingerprint.HashInfoBatch{Files: []fingerprint.HashInfo{}})
		}
		fmt.Println("No images found.")
		return nil
	}

	var cache *cacheWriter
	if mustGetBool(cmd, "cache") {
		store, err := openCache(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		cache = &cacheWriter{ctx: ctx, store: store, paths: paths}
	}

	bar := newHashProgressBar(len(paths), "Computing hashes", jsonOutput)
	results, err := fingerprint.NewWorker(workers).ComputeAll(ctx, len(paths), fileLoader(paths), withProgress(bar, cache.done()))
	if bar != nil {
		fmt.Println()
	}
	if err != nil {
		return fmt.Errorf("hashing interrupted: %w", err)
	}
	if err := cache.Err(); err != nil {
		return err
	}

	batch := fingerprint.HashInfoBatch{Files: make([]fingerprint.HashInfo, len(paths))}
	for i, r := range results {
		batch.Files[i] = fingerprint.NewHashInfo(paths[i], r)
		if r.Err != nil {
			batch.Failed++
		} else {
			batch.Count++
		}
	}

	if jsonOutput {
		return outputJSON(batch)
	}
	printHashBatch(batch)
	return nil
}

// cacheWriter stores each successful fingerprint as soon as its job
// finishes, while the image bytes are still at hand.
type cacheWriter struct {
	ctx   context.Context
	store *database.Store
	paths []string

	mu  sync.Mutex
	err error
}

// done returns the per-job callback, or nil for a nil writer.
func (c *cacheWriter) done() fingerprint.DoneFunc {
	if c == nil {
		return nil
	}
	return func(i int, data []byte, r fingerprint.Result) {
		if r.Err != nil {
			return
		}
		if _, err := c.store.Put(c.ctx, c.paths[i], data, r.Fingerprint); err != nil {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.err == nil {
				c.err = fmt.Errorf("caching %s: %w", c.paths[i], err)
			}
		}
	}
}

// Err returns the first caching failure.
func (c *cacheWriter) Err() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func printHashBatch(batch fingerprint.HashInfoBatch) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tHASH\tHEX")
	for _, f := range batch.Files {
		if f.Error != "" {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", f.Path, f.Fingerprint, f.Hex)
	}
	w.Flush()

	if batch.Failed > 0 {
		fmt.Printf("\nErrors: %d\n", batch.Failed)
		for _, f := range batch.Files {
			if f.Error != "" {
				fmt.Printf("  - %s: %s\n", f.Path, f.Error)
			}
		}
	}
}

// hashFile fingerprints a single file, using the cache when one is given.
func hashFile(ctx context.Context, worker *fingerprint.Worker, store *database.Store, path string) (fingerprint.Fingerprint, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied path is the point
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	if store == nil {
		return worker.Compute(ctx, data)
	}
	entry, _, err := store.GetOrCompute(ctx, path, data, func(b []byte) (fingerprint.Fingerprint, error) {
		return worker.Compute(ctx, b)
	})
	if err != nil {
		return 0, err
	}
	return entry.Fingerprint, nil
}
