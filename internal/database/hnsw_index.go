package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"
	"github.com/goccy/go-json"
	"github.com/kozaktomas/fuzzysearch/internal/constants"
	"github.com/kozaktomas/fuzzysearch/internal/fingerprint"
	"github.com/kozaktomas/fuzzysearch/internal/ranking"
)

// IndexMetadata stores metadata for validating a saved index.
type IndexMetadata struct {
	EntryCount int       `json:"entry_count"`
	MaxEntryID int64     `json:"max_entry_id"`
	BuildTime  time.Time `json:"build_time"`
	Version    int       `json:"version"`
}

const indexMetadataVersion = 1

// ErrIndexEmpty is returned when searching an index that has no entries.
var ErrIndexEmpty = errors.New("local index is empty")

// Vector expands a fingerprint into 64 coordinates of 0 or 1, MSB first.
// The squared Euclidean distance between two such vectors equals the
// Hamming distance of the fingerprints.
func Vector(fp fingerprint.Fingerprint) []float32 {
	v := make([]float32, 64)
	u := fp.Uint64()
	for i := range 64 {
		if u&(1<<(63-i)) != 0 {
			v[i] = 1
		}
	}
	return v
}

// LocalIndex is an approximate nearest-neighbour index over cached
// fingerprints, keyed by cache entry ID.
type LocalIndex struct {
	graph     *hnsw.Graph[int64]
	idToEntry map[int64]Entry
	mu        sync.RWMutex
}

// NewLocalIndex creates a new empty index.
func NewLocalIndex() *LocalIndex {
	return &LocalIndex{
		idToEntry: make(map[int64]Entry),
	}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = constants.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(constants.HNSWMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Build replaces the index contents with entries.
func (h *LocalIndex) Build(entries []Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	g := newGraph()
	h.idToEntry = make(map[int64]Entry, len(entries))
	for _, e := range entries {
		g.Add(hnsw.MakeNode(e.ID, Vector(e.Fingerprint)))
		h.idToEntry[e.ID] = e
	}
	h.graph = g
}

// Add inserts or replaces a single entry.
func (h *LocalIndex) Add(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.graph == nil {
		h.graph = newGraph()
	}
	h.graph.Add(hnsw.MakeNode(e.ID, Vector(e.Fingerprint)))
	h.idToEntry[e.ID] = e
}

// Delete removes an entry. Returns false if it was not indexed.
func (h *LocalIndex) Delete(id int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.idToEntry[id]; !ok {
		return false
	}
	delete(h.idToEntry, id)
	if h.graph != nil {
		h.graph.Delete(id)
	}
	return true
}

// Count returns the number of indexed entries.
func (h *LocalIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idToEntry)
}

// Search fetches up to k approximate neighbours of query and ranks them with
// the same ordering and buckets as remote results.
func (h *LocalIndex) Search(query fingerprint.Fingerprint, k int, threshold uint64) (ranking.ResultSet[Entry], error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil || len(h.idToEntry) == 0 {
		return ranking.ResultSet[Entry]{Threshold: threshold}, ErrIndexEmpty
	}
	if k <= 0 {
		k = constants.DefaultLocalSearchLimit
	}

	neighbors := h.graph.Search(Vector(query), k)
	candidates := make([]Entry, 0, len(neighbors))
	for _, n := range neighbors {
		if e, ok := h.idToEntry[n.Key]; ok {
			candidates = append(candidates, e)
		}
	}

	return ranking.Rank(query, candidates, threshold), nil
}

// Save writes the graph to path and its metadata to path+".meta".
func (h *LocalIndex) Save(path string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil || len(h.idToEntry) == 0 {
		// Nothing to persist; drop stale files (best-effort cleanup).
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	defer f.Close()

	if err := h.graph.Export(f); err != nil {
		return fmt.Errorf("failed to export index graph: %w", err)
	}

	meta := IndexMetadata{
		EntryCount: len(h.idToEntry),
		BuildTime:  time.Now(),
		Version:    indexMetadataVersion,
	}
	for id := range h.idToEntry {
		meta.MaxEntryID = max(meta.MaxEntryID, id)
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", data, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// LoadIndexMetadata reads the metadata written by Save.
func LoadIndexMetadata(path string) (IndexMetadata, error) {
	var meta IndexMetadata
	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return meta, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return meta, nil
}

// Load imports the graph saved at path and attaches entries to its keys.
// Keys without an entry are dropped. The returned bool is false when no index
// file exists; the caller should Build from entries instead.
func (h *LocalIndex) Load(path string, entries []Entry) (bool, error) {
	f, err := os.Open(path) //nolint:gosec // path is from trusted config
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to open index file: %w", err)
	}
	defer f.Close()

	g := newGraph()
	if err := g.Import(f); err != nil {
		return false, fmt.Errorf("failed to load index: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.graph = g
	h.idToEntry = make(map[int64]Entry, len(entries))
	for _, e := range entries {
		if _, ok := g.Lookup(e.ID); ok {
			h.idToEntry[e.ID] = e
		}
	}
	return true, nil
}

// IsStale reports whether a saved index no longer matches the cache contents.
func IsStale(meta IndexMetadata, entries []Entry) bool {
	if meta.Version != indexMetadataVersion || meta.EntryCount != len(entries) {
		return true
	}
	var maxID int64
	for _, e := range entries {
		maxID = max(maxID, e.ID)
	}
	return maxID != meta.MaxEntryID
}

// OpenLocalIndex returns an index over every cached entry. A saved index at
// path is reused when its metadata still matches the cache; otherwise the
// index is rebuilt and, when path is set, saved again.
func OpenLocalIndex(ctx context.Context, store *Store, path string) (*LocalIndex, error) {
	entries, err := store.All(ctx)
	if err != nil {
		return nil, err
	}

	idx := NewLocalIndex()
	if path != "" {
		if meta, err := LoadIndexMetadata(path); err == nil && !IsStale(meta, entries) {
			ok, err := idx.Load(path, entries)
			if err == nil && ok {
				return idx, nil
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: rebuilding local index: %v\n", err)
			}
		}
	}

	idx.Build(entries)
	if path != "" {
		if err := idx.Save(path); err != nil {
			return nil, err
		}
	}
	return idx, nil
}
