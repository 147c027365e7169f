// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Match ranking constants
const (
	// DefaultDistanceThreshold is the maximum Hamming distance for a result to
	// land in the "good" bucket
	DefaultDistanceThreshold = 3

	// PerfectMatchDistance is the distance labelled as a perfect match
	PerfectMatchDistance = 0

	// GoodMatchCutoff is the exclusive upper bound for the "good match" label.
	// Kept separate from DefaultDistanceThreshold even though they line up.
	GoodMatchCutoff = 4
)

// Processing constants
const (
	// HashWorkers is the default number of parallel image hashing workers
	HashWorkers = 8

	// MaxImagePixels caps the decoded size of an image (40 megapixels)
	MaxImagePixels = 40_000_000
)

// State streaming constants
const (
	// WatchBuffer is the number of undelivered states queued per state watcher
	WatchBuffer = 16
)

// File upload constants
const (
	// MaxUploadSize is the maximum file upload size in bytes (50MB)
	MaxUploadSize = 50 << 20
)

// Local index constants
const (
	// DefaultLocalSearchLimit is the number of neighbours fetched from the local index
	DefaultLocalSearchLimit = 20

	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	HNSWMaxNeighbors = 16
)
