package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/fuzzysearch/internal/database"
	"github.com/kozaktomas/fuzzysearch/internal/fingerprint"
)

// LocalHandler searches the local fingerprint index.
type LocalHandler struct {
	index     *database.LocalIndex
	threshold uint64
}

// NewLocalHandler creates a new local index handler.
func NewLocalHandler(index *database.LocalIndex, threshold uint64) *LocalHandler {
	return &LocalHandler{index: index, threshold: threshold}
}

// LocalMatchResponse is one local index hit.
type LocalMatchResponse struct {
	ID       int64  `json:"id"`
	Path     string `json:"path"`
	Hash     int64  `json:"hash"`
	Distance uint64 `json:"distance"`
	Quality  string `json:"quality"`
}

// LocalResultsResponse is the body of a local search.
type LocalResultsResponse struct {
	Hash      int64                `json:"hash"`
	Threshold uint64               `json:"threshold"`
	Count     int                  `json:"count"`
	GoodCount int                  `json:"good_count"`
	BadCount  int                  `json:"bad_count"`
	Results   []LocalMatchResponse `json:"results"`
}

// Search handles GET /local/{hash}?limit=&threshold=&all=.
func (h *LocalHandler) Search(w http.ResponseWriter, r *http.Request) {
	fp, err := fingerprint.ParseFingerprint(chi.URLParam(r, "hash"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid hash")
		return
	}

	threshold := h.threshold
	if s := r.URL.Query().Get("threshold"); s != "" {
		if threshold, err = strconv.ParseUint(s, 10, 64); err != nil {
			respondError(w, http.StatusBadRequest, "invalid threshold")
			return
		}
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	ranked, err := h.index.Search(fp, limit, threshold)
	if err != nil && !errors.Is(err, database.ErrIndexEmpty) {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	visible := ranked.Visible(parseBoolParam(r, "all"))
	resp := LocalResultsResponse{
		Hash:      int64(fp),
		Threshold: threshold,
		Count:     ranked.Count,
		GoodCount: ranked.GoodCount,
		BadCount:  ranked.BadCount,
		Results:   make([]LocalMatchResponse, 0, len(visible)),
	}
	for _, m := range visible {
		resp.Results = append(resp.Results, LocalMatchResponse{
			ID:       m.Item.ID,
			Path:     m.Item.Path,
			Hash:     int64(m.Item.Fingerprint),
			Distance: m.Distance,
			Quality:  m.Quality().String(),
		})
	}

	respondJSON(w, http.StatusOK, resp)
}
