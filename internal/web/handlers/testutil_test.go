package handlers

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/kozaktomas/fuzzysearch/internal/fingerprint"
	"github.com/kozaktomas/fuzzysearch/internal/fuzzysearch"
	"github.com/kozaktomas/fuzzysearch/internal/session"
	"github.com/kozaktomas/fuzzysearch/internal/state"
)

const testAPIKey = "test-api-key"

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// setupMockFuzzySearchServer creates a mock remote index answering /hashes
// with files, or with status when it is not 200.
func setupMockFuzzySearchServer(t *testing.T, status int, files []fuzzysearch.File) *httptest.Server {
	t.Helper()

	body, err := json.Marshal(files)
	if err != nil {
		t.Fatalf("failed to marshal files: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/hashes", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != testAPIKey {
			http.Error(w, "invalid api key", http.StatusUnauthorized)
			return
		}
		if status != http.StatusOK {
			http.Error(w, "rejected", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// newTestSession creates a session backed by a client of server.
func newTestSession(t *testing.T, server *httptest.Server) *session.Session {
	t.Helper()
	client, err := fuzzysearch.NewClient(server.URL, testAPIKey)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return session.New(client, state.New())
}

// testFiles returns candidates at distance 0, 2 and 10 from query, plus one without a hash.
func testFiles(query fingerprint.Fingerprint) []fuzzysearch.File {
	exact := int64(query)
	near := int64(query ^ 0b11)
	far := int64(query ^ 0x3FF)
	return []fuzzysearch.File{
		{ID: 4, SiteID: 40, Site: fuzzysearch.TwitterFile{}},
		{ID: 3, SiteID: 30, Hash: &far, Site: fuzzysearch.E621File{}},
		{ID: 2, SiteID: 20, Hash: &near, Artists: []string{"artist"}, Site: fuzzysearch.FurAffinityFile{FileID: 2}},
		{ID: 1, SiteID: 10, Hash: &exact, Site: fuzzysearch.E621File{}},
	}
}

// createTestPNG encodes a solid-color image.
func createTestPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for x := range 64 {
		for y := range 64 {
			img.Set(x, y, color.RGBA{200, 100, 50, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// multipartRequest builds a POST request uploading data as the "file" field.
func multipartRequest(t *testing.T, target, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
