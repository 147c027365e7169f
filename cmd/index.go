package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kozaktomas/fuzzysearch/internal/config"
	"github.com/kozaktomas/fuzzysearch/internal/database"
	"github.com/kozaktomas/fuzzysearch/internal/fingerprint"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index <file|dir>...",
	Short: "Add images to the local fingerprint cache",
	Long: `Fingerprint images into the local cache and rebuild the local HNSW index
used by 'fuzzysearch search --local'. Images already cached (by content) are
not hashed again.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().Bool("json", false, "Output as JSON")
}

// errAlreadyCached marks a job whose content is already in the cache.
var errAlreadyCached = errors.New("already cached")

type indexOutput struct {
	Scanned int    `json:"scanned"`
	Added   int    `json:"added"`
	Cached  int    `json:"cached"`
	Failed  int    `json:"failed"`
	Total   int    `json:"total"`
	Index   string `json:"index_path,omitempty"`
}

// indexer stores newly hashed images while the batch runs.
type indexer struct {
	ctx   context.Context
	store *database.Store
	paths []string

	mu  sync.Mutex
	err error
}

// load reads job i and skips it when the cache already holds its content.
func (ix *indexer) load(ctx context.Context, i int) ([]byte, error) {
	data, err := fileLoader(ix.paths)(ctx, i)
	if err != nil {
		return nil, err
	}
	if _, ok, err := ix.store.Get(ctx, database.ContentKey(data)); err != nil {
		return nil, err
	} else if ok {
		return nil, errAlreadyCached
	}
	return data, nil
}

func (ix *indexer) done(i int, data []byte, r fingerprint.Result) {
	if r.Err != nil {
		return
	}
	if _, err := ix.store.Put(ix.ctx, ix.paths[i], data, r.Fingerprint); err != nil {
		ix.mu.Lock()
		defer ix.mu.Unlock()
		if ix.err == nil {
			ix.err = fmt.Errorf("caching %s: %w", ix.paths[i], err)
		}
	}
}

// summarize counts job outcomes and lists failures unless quiet.
func (ix *indexer) summarize(results []fingerprint.Result, quiet bool) indexOutput {
	out := indexOutput{Scanned: len(results)}
	for i, r := range results {
		switch {
		case r.Err == nil:
			out.Added++
		case errors.Is(r.Err, errAlreadyCached):
			out.Cached++
		default:
			out.Failed++
			if !quiet {
				fmt.Printf("  - %s: %v\n", ix.paths[i], r.Err)
			}
		}
	}
	return out
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Load()
	jsonOutput := mustGetBool(cmd, "json")

	store, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	paths, err := collectImagePaths(args)
	if err != nil {
		return err
	}

	ix := &indexer{ctx: ctx, store: store, paths: paths}
	bar := newHashProgressBar(len(paths), "Indexing", jsonOutput)
	results, err := newWorker(cfg).ComputeAll(ctx, len(paths), ix.load, withProgress(bar, ix.done))
	if bar != nil {
		fmt.Println()
	}
	if err != nil {
		return fmt.Errorf("indexing interrupted: %w", err)
	}
	if ix.err != nil {
		return ix.err
	}

	out := ix.summarize(results, jsonOutput)
	out.Index = cfg.Storage.IndexPath

	idx, err := database.OpenLocalIndex(ctx, store, cfg.Storage.IndexPath)
	if err != nil {
		return err
	}
	out.Total = idx.Count()

	if jsonOutput {
		return outputJSON(out)
	}

	fmt.Printf("Scanned %d images: %d added, %d already cached, %d failed\n",
		out.Scanned, out.Added, out.Cached, out.Failed)
	if cfg.Storage.IndexPath != "" {
		fmt.Printf("Local index holds %d fingerprints (saved to %s)\n", out.Total, cfg.Storage.IndexPath)
	} else {
		fmt.Printf("Local cache holds %d fingerprints\n", out.Total)
	}
	return nil
}
