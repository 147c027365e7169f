package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/kozaktomas/fuzzysearch/internal/config"
	"github.com/kozaktomas/fuzzysearch/internal/fingerprint"
	"github.com/kozaktomas/fuzzysearch/internal/fuzzysearch"
	"github.com/kozaktomas/fuzzysearch/internal/session"
	"github.com/kozaktomas/fuzzysearch/internal/state"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	t.Cleanup(remote.Close)

	client, err := fuzzysearch.NewClient(remote.URL, "key")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	cfg := config.Defaults()
	return NewServer(&cfg, Deps{
		Session: session.New(client, state.New()),
		Worker:  fingerprint.NewWorker(1),
	})
}

func TestRoutes(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/v1/health", http.StatusOK},
		{http.MethodGet, "/api/v1/state", http.StatusOK},
		{http.MethodPost, "/api/v1/session/reset", http.StatusOK},
		{http.MethodGet, "/api/v1/results/42", http.StatusOK},
		{http.MethodGet, "/api/v1/results/abc", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/local/42", http.StatusOK},
		{http.MethodPost, "/api/v1/hash", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
		{http.MethodDelete, "/api/v1/state", http.StatusMethodNotAllowed},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			server.Router().ServeHTTP(recorder, httptest.NewRequest(tc.method, tc.path, nil))
			if recorder.Code != tc.want {
				t.Errorf("expected status %d, got %d\nBody: %s", tc.want, recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestResultsRoutePublishesState(t *testing.T) {
	server := newTestServer(t)

	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/results/-7", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/state", nil))

	var body map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse state: %v", err)
	}
	if body["latest_fingerprint"] != float64(-7) {
		t.Errorf("latest_fingerprint = %v; want -7", body["latest_fingerprint"])
	}
}
