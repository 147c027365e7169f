package handlers

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kozaktomas/fuzzysearch/internal/constants"
	"github.com/kozaktomas/fuzzysearch/internal/database"
	"github.com/kozaktomas/fuzzysearch/internal/fingerprint"
	"github.com/kozaktomas/fuzzysearch/internal/fuzzysearch"
	"github.com/kozaktomas/fuzzysearch/internal/ranking"
	"github.com/kozaktomas/fuzzysearch/internal/session"
	"github.com/kozaktomas/fuzzysearch/internal/state"
)

// SearchHandler handles hashing uploads and looking up fingerprints.
type SearchHandler struct {
	session   *session.Session
	worker    *fingerprint.Worker
	cache     *database.Store
	index     *database.LocalIndex
	threshold uint64
}

// NewSearchHandler creates a new search handler. cache and index may be nil;
// newly cached fingerprints are added to index.
func NewSearchHandler(sess *session.Session, worker *fingerprint.Worker, cache *database.Store, index *database.LocalIndex, threshold uint64) *SearchHandler {
	return &SearchHandler{
		session:   sess,
		worker:    worker,
		cache:     cache,
		index:     index,
		threshold: threshold,
	}
}

// MatchResponse is one ranked candidate.
type MatchResponse struct {
	ID         int32   `json:"id"`
	SiteID     int64   `json:"site_id"`
	Site       string  `json:"site"`
	URL        string  `json:"url"`
	Filename   string  `json:"filename"`
	Artists    string  `json:"artists"`
	Link       string  `json:"link"`
	PrettyLink string  `json:"pretty_link"`
	Hash       *int64  `json:"hash"`
	Distance   *uint64 `json:"distance"`
	Quality    string  `json:"quality"`
}

// ResultsResponse is the body of a lookup.
type ResultsResponse struct {
	Hash            int64           `json:"hash"`
	Hex             string          `json:"hex"`
	Threshold       uint64          `json:"threshold"`
	Count           int             `json:"count"`
	GoodCount       int             `json:"good_count"`
	BadCount        int             `json:"bad_count"`
	DurationMS      int64           `json:"duration_ms"`
	ShowPreview     bool            `json:"show_preview"`
	HasAlternatives bool            `json:"has_alternatives"`
	Results         []MatchResponse `json:"results"`
}

// HashResponse is the body of an upload.
type HashResponse struct {
	Image   state.ImageRef   `json:"image"`
	Hash    int64            `json:"hash"`
	Hex     string           `json:"hex"`
	Cached  bool             `json:"cached"`
	Results *ResultsResponse `json:"results,omitempty"`
}

// newMatchResponse converts a ranked candidate. Candidates without a hash
// carry ranking.Unbounded and are labelled as unlikely matches.
func newMatchResponse(m ranking.Match[fuzzysearch.File]) MatchResponse {
	f := m.Item
	resp := MatchResponse{
		ID:         f.ID,
		SiteID:     f.SiteID,
		Site:       f.SiteName(),
		URL:        f.URL,
		Filename:   f.Filename,
		Artists:    f.ArtistNames(),
		Link:       f.Link(),
		PrettyLink: f.PrettyLink(),
		Hash:       f.Hash,
		Quality:    m.Quality().String(),
	}
	if m.Known {
		d := m.Distance
		resp.Distance = &d
	}
	return resp
}

func (h *SearchHandler) buildResults(fp fingerprint.Fingerprint, ranked ranking.ResultSet[fuzzysearch.File], duration time.Duration, showAll bool) *ResultsResponse {
	visible := ranked.Visible(showAll)
	resp := &ResultsResponse{
		Hash:            int64(fp),
		Hex:             fp.Hex(),
		Threshold:       ranked.Threshold,
		Count:           ranked.Count,
		GoodCount:       ranked.GoodCount,
		BadCount:        ranked.BadCount,
		DurationMS:      duration.Milliseconds(),
		ShowPreview:     h.session.ShowPreview(fp),
		HasAlternatives: ranked.HasAlternatives(),
		Results:         make([]MatchResponse, 0, len(visible)),
	}
	for _, m := range visible {
		resp.Results = append(resp.Results, newMatchResponse(m))
	}
	return resp
}

// search runs a session search and re-ranks when a custom threshold is requested.
func (h *SearchHandler) search(ctx context.Context, fp fingerprint.Fingerprint, threshold uint64, showAll bool) (*ResultsResponse, error) {
	result, err := h.session.Search(ctx, fp)
	if err != nil {
		return nil, err
	}
	ranked := result.Ranked
	if threshold != ranked.Threshold {
		ranked = ranking.Rank(fp, result.Files(), threshold)
	}
	return h.buildResults(fp, ranked, result.Duration, showAll), nil
}

func parseBoolParam(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

func (h *SearchHandler) parseThreshold(r *http.Request) (uint64, error) {
	s := r.URL.Query().Get("threshold")
	if s == "" {
		return h.threshold, nil
	}
	t, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid threshold %q", s)
	}
	return t, nil
}

// Hash handles POST /hash: the uploaded image becomes the selected image and
// its fingerprint is returned. With ?search=true the fingerprint is also
// looked up.
func (h *SearchHandler) Hash(w http.ResponseWriter, r *http.Request) {
	threshold, err := h.parseThreshold(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	name := filepath.Base(header.Filename)
	fp, cached, err := h.computeFingerprint(r.Context(), name, data)
	if err != nil {
		respondLookupError(w, r, err)
		return
	}

	ref := state.ImageRef{ID: uuid.NewString(), Name: name}
	h.session.SelectImage(ref)

	resp := HashResponse{
		Image:  ref,
		Hash:   int64(fp),
		Hex:    fp.Hex(),
		Cached: cached,
	}

	if parseBoolParam(r, "search") {
		results, err := h.search(r.Context(), fp, threshold, parseBoolParam(r, "all"))
		if err != nil {
			respondLookupError(w, r, err)
			return
		}
		resp.Results = results
	}

	respondJSON(w, http.StatusOK, resp)
}

// computeFingerprint hashes data, consulting the cache first when one is
// configured. Cache failures are logged and otherwise ignored.
func (h *SearchHandler) computeFingerprint(ctx context.Context, name string, data []byte) (fingerprint.Fingerprint, bool, error) {
	if h.cache != nil {
		entry, ok, err := h.cache.Get(ctx, database.ContentKey(data))
		if err != nil {
			log.Printf("fingerprint cache lookup failed: %v", err)
		}
		if ok {
			return entry.Fingerprint, true, nil
		}
	}

	fp, err := h.worker.Compute(ctx, data)
	if err != nil {
		return 0, false, err
	}

	if h.cache != nil {
		entry, err := h.cache.Put(ctx, name, data, fp)
		if err != nil {
			log.Printf("fingerprint cache store failed: %v", err)
		} else if h.index != nil {
			h.index.Add(entry)
		}
	}
	return fp, false, nil
}

// Results handles GET /results/{hash}.
func (h *SearchHandler) Results(w http.ResponseWriter, r *http.Request) {
	fp, err := fingerprint.ParseFingerprint(chi.URLParam(r, "hash"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid hash")
		return
	}

	threshold, err := h.parseThreshold(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.search(r.Context(), fp, threshold, parseBoolParam(r, "all"))
	if err != nil {
		respondLookupError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}
