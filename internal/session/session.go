// Package session ties lookups to the shared state and drops results that
// were overtaken by a newer search.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/kozaktomas/fuzzysearch/internal/fingerprint"
	"github.com/kozaktomas/fuzzysearch/internal/fuzzysearch"
	"github.com/kozaktomas/fuzzysearch/internal/state"
)

// ErrSuperseded is returned by Search when a newer search started before the
// lookup completed. Its result was discarded.
var ErrSuperseded = errors.New("search superseded by a newer query")

// Session serializes searches against one remote index and one state bus.
type Session struct {
	client fuzzysearch.Lookuper
	bus    *state.Bus

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
}

// New creates a session.
func New(client fuzzysearch.Lookuper, bus *state.Bus) *Session {
	return &Session{client: client, bus: bus}
}

// Bus returns the state bus the session publishes to.
func (s *Session) Bus() *state.Bus {
	return s.bus
}

// Start begins a fresh session: in-flight searches are abandoned and the
// shared state is cleared.
func (s *Session) Start() state.State {
	s.mu.Lock()
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	return s.bus.Reset()
}

// SelectImage publishes ref as the selected image.
func (s *Session) SelectImage(ref state.ImageRef) state.State {
	return s.bus.Publish(state.SelectImage(ref))
}

// Generation returns the number of searches (and resets) started so far.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Search looks up fp. Starting a search cancels the previous one; a lookup
// that completes after a newer search began returns ErrSuperseded and leaves
// the state untouched. On success the latest fingerprint is published.
func (s *Session) Search(ctx context.Context, fp fingerprint.Fingerprint) (*fuzzysearch.Result, error) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.generation++
	gen := s.generation
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	result, err := s.client.Lookup(ctx, fp)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		cancel()
		return nil, ErrSuperseded
	}
	s.cancel = nil
	cancel()

	if err != nil {
		return nil, err
	}

	s.bus.Publish(state.LatestHash(fp))
	return result, nil
}

// ShowPreview reports whether the locally selected image should be shown
// next to the results for fp.
func (s *Session) ShowPreview(fp fingerprint.Fingerprint) bool {
	return s.bus.Snapshot().ShowPreview(fp)
}
