package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ahmedibraahiim/asl/internal/classifier"
	"github.com/ahmedibraahiim/asl/internal/detector"
	"github.com/ahmedibraahiim/asl/internal/forest"
	"github.com/ahmedibraahiim/asl/internal/monitoring"
	"github.com/ahmedibraahiim/asl/internal/recognizer"
	"github.com/ahmedibraahiim/asl/testdata"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

// trainClassifier fits a small forest on synthetic A-F hands.
func trainClassifier(t *testing.T) *classifier.Classifier {
	t.Helper()
	features, y, mapping := testdata.SignDataset(detector.SignLetters, 10, 5)
	clf := classifier.New(classifier.WithParams(forest.Params{Trees: 15, MinSamplesSplit: 2, Seed: 42}))
	if _, err := clf.Train(features, y, mapping, false); err != nil {
		t.Fatalf("train: %v", err)
	}
	return clf
}

func newTestServer(t *testing.T, clf *classifier.Classifier) (*Server, *detector.MockDetector) {
	t.Helper()
	mock := detector.NewMockDetector()
	return New(Config{Recognizer: recognizer.New(mock, clf)}), mock
}

func TestServer_Health(t *testing.T) {
	tests := []struct {
		name   string
		loaded bool
	}{
		{"without model", false},
		{"with model", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var clf *classifier.Classifier
			if tt.loaded {
				clf = trainClassifier(t)
			}
			s, _ := newTestServer(t, clf)

			for _, path := range []string{"/health", "/api/health"} {
				rec := httptest.NewRecorder()
				s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

				if rec.Code != http.StatusOK {
					t.Fatalf("%s: expected status %d, got %d", path, http.StatusOK, rec.Code)
				}
				if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
					t.Errorf("expected Content-Type application/json, got %s", ct)
				}

				var resp healthResponse
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if resp.Status != "healthy" {
					t.Errorf("expected status healthy, got %q", resp.Status)
				}
				if resp.ModelLoaded != tt.loaded {
					t.Errorf("expected model_loaded %v, got %v", tt.loaded, resp.ModelLoaded)
				}
			}
		})
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, nil)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(method, "/health", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/predict", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /predict: expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}

func TestServer_NotFound(t *testing.T) {
	s, _ := newTestServer(t, nil)

	for _, path := range []string{"/api/nonexistent", "/", "/api/live", "/api/stream"} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusNotFound, rec.Code)
		}
	}
}

func TestServer_StaticFiles(t *testing.T) {
	tmpDir := t.TempDir()

	testContent := "<html><body>ASL</body></html>"
	if err := os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte(testContent), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	s := New(Config{StaticDir: tmpDir, Recognizer: recognizer.New(detector.NewMockDetector(), nil)})

	t.Run("serves index.html at root path", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if rec.Body.String() != testContent {
			t.Errorf("expected body %q, got %q", testContent, rec.Body.String())
		}
	})

	t.Run("api routes win over static files", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if !strings.Contains(rec.Body.String(), "healthy") {
			t.Errorf("expected health response, got %q", rec.Body.String())
		}
	})

	t.Run("returns 404 for non-existent static files", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nonexistent.html", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestServer_CORS(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		allowed bool
	}{
		{"allow all", []string{"*"}, "http://localhost:3000", true},
		{"empty list allows all", nil, "http://example.com", true},
		{"listed origin", []string{"http://localhost:3000/"}, "http://localhost:3000", true},
		{"unlisted origin", []string{"http://localhost:3000"}, "http://evil.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Config{
				Recognizer:  recognizer.New(detector.NewMockDetector(), nil),
				CORSOrigins: tt.origins,
			})

			req := httptest.NewRequest(http.MethodOptions, "/predict", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)

			if rec.Code != http.StatusNoContent {
				t.Errorf("expected preflight status %d, got %d", http.StatusNoContent, rec.Code)
			}
			got := rec.Header().Get("Access-Control-Allow-Origin")
			if tt.allowed && got != tt.origin {
				t.Errorf("expected allow origin %q, got %q", tt.origin, got)
			}
			if !tt.allowed && got != "" {
				t.Errorf("expected no allow origin, got %q", got)
			}
		})
	}
}

func TestServer_Metrics(t *testing.T) {
	s, _ := newTestServer(t, nil)

	// Generate one counted request first.
	s.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `asl_http_requests_total{code="200",route="/health"}`) {
		t.Error("expected /health request counter in metrics output")
	}
}
