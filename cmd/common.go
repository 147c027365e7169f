package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/kozaktomas/fuzzysearch/internal/config"
	"github.com/kozaktomas/fuzzysearch/internal/database"
	"github.com/kozaktomas/fuzzysearch/internal/fingerprint"
	"github.com/kozaktomas/fuzzysearch/internal/fuzzysearch"
	"github.com/schollz/progressbar/v3"
)

// imageExtensions are the file types picked up when walking a directory.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp"}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// newClient creates a FuzzySearch client from config, honouring --capture.
func newClient(cfg *config.Config, threshold uint64) (*fuzzysearch.Client, error) {
	if cfg.FuzzySearch.APIKey == "" {
		return nil, errors.New("FUZZYSEARCH_API_KEY environment variable is required")
	}

	client, err := fuzzysearch.NewClient(cfg.FuzzySearch.URL, cfg.FuzzySearch.APIKey,
		fuzzysearch.WithThreshold(threshold))
	if err != nil {
		return nil, fmt.Errorf("failed to create FuzzySearch client: %w", err)
	}
	if err := client.SetCaptureDir(captureDir); err != nil {
		return nil, err
	}
	return client, nil
}

// openCache opens the fingerprint cache at the configured path.
func openCache(ctx context.Context, cfg *config.Config) (*database.Store, error) {
	if cfg.Storage.CachePath == "" {
		return nil, errors.New("CACHE_PATH is not set")
	}
	store, err := database.Open(ctx, cfg.Storage.CachePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open fingerprint cache: %w", err)
	}
	return store, nil
}

// newWorker creates a hashing pool sized from config.
func newWorker(cfg *config.Config) *fingerprint.Worker {
	return fingerprint.NewWorker(cfg.Hashing.Workers)
}

func isImageFile(path string) bool {
	return slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(path)))
}

// collectImagePaths expands directories in args into the image files they
// contain. Plain files are kept as given.
func collectImagePaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isImageFile(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", arg, err)
		}
	}
	return paths, nil
}

// fileLoader reads paths[i] when the worker picks up job i.
func fileLoader(paths []string) fingerprint.Loader {
	return func(_ context.Context, i int) ([]byte, error) {
		data, err := os.ReadFile(paths[i]) //nolint:gosec // user-supplied path is the point
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", paths[i], err)
		}
		return data, nil
	}
}

// newHashProgressBar creates a progress bar for hash computation, or nil if JSON output.
func newHashProgressBar(count int, description string, jsonOutput bool) *progressbar.ProgressBar {
	if jsonOutput {
		return nil
	}
	return progressbar.NewOptions(count,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

// withProgress advances bar (which may be nil) after next has handled a job.
func withProgress(bar *progressbar.ProgressBar, next fingerprint.DoneFunc) fingerprint.DoneFunc {
	return func(i int, data []byte, r fingerprint.Result) {
		if next != nil {
			next(i, data, r)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
}
