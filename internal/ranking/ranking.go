// Package ranking turns candidate fingerprints into a distance-ordered,
// threshold-classified result set.
package ranking

import (
	"math"
	"slices"

	"github.com/kozaktomas/fuzzysearch/internal/constants"
	"github.com/kozaktomas/fuzzysearch/internal/fingerprint"
)

// DefaultThreshold is the maximum distance of a "good" bucket entry.
const DefaultThreshold uint64 = constants.DefaultDistanceThreshold

// Unbounded is the distance assigned to candidates without a stored fingerprint.
const Unbounded uint64 = math.MaxUint64

// Candidate is anything that may carry a stored fingerprint.
type Candidate interface {
	StoredFingerprint() (fingerprint.Fingerprint, bool)
}

// Match is a candidate with its computed distance to the query.
type Match[C Candidate] struct {
	Item C
	// Distance is Unbounded when Known is false.
	Distance uint64
	Known    bool
}

// Quality returns the match quality label for the entry.
func (m Match[C]) Quality() Quality {
	return MatchQuality(m.Distance)
}

// ResultSet is the classified, ordered view over one query's candidates.
type ResultSet[C Candidate] struct {
	Count     int
	Threshold uint64
	Good      []Match[C]
	GoodCount int
	Bad       []Match[C]
	BadCount  int
}

// All returns good then bad entries, i.e. the globally sorted order.
func (r ResultSet[C]) All() []Match[C] {
	all := make([]Match[C], 0, r.Count)
	all = append(all, r.Good...)
	return append(all, r.Bad...)
}

// Visible returns the entries a results view shows: the good bucket, plus
// the bad bucket when alternatives are requested or nothing good was found.
func (r ResultSet[C]) Visible(showAlternatives bool) []Match[C] {
	if showAlternatives || r.GoodCount == 0 {
		return r.All()
	}
	return slices.Clone(r.Good)
}

// HasAlternatives reports whether a "show less relevant results" toggle makes sense.
func (r ResultSet[C]) HasAlternatives() bool {
	return r.GoodCount > 0 && r.BadCount > 0
}

// Distance returns the Hamming distance between the query and a candidate.
// The second return value is false when the candidate has no fingerprint,
// in which case the distance is Unbounded.
func Distance[C Candidate](query fingerprint.Fingerprint, c C) (uint64, bool) {
	stored, ok := c.StoredFingerprint()
	if !ok {
		return Unbounded, false
	}
	return fingerprint.HammingDistance(query, stored), true
}

// Rank computes distances, sorts candidates by distance (stable, so equal
// distances keep the remote index's order) and splits them at threshold.
// The input slice is not modified.
func Rank[C Candidate](query fingerprint.Fingerprint, candidates []C, threshold uint64) ResultSet[C] {
	matches := make([]Match[C], len(candidates))
	for i, c := range candidates {
		d, ok := Distance(query, c)
		matches[i] = Match[C]{Item: c, Distance: d, Known: ok}
	}

	slices.SortStableFunc(matches, func(a, b Match[C]) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return 0
		}
	})

	// Sorted ascending, so the good bucket is a prefix.
	split := len(matches)
	for i, m := range matches {
		if m.Distance > threshold {
			split = i
			break
		}
	}

	good := matches[:split:split]
	bad := matches[split:]

	return ResultSet[C]{
		Count:     len(matches),
		Threshold: threshold,
		Good:      good,
		GoodCount: len(good),
		Bad:       bad,
		BadCount:  len(bad),
	}
}
