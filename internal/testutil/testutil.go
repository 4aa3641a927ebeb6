package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"npitrack/internal/models"
	"npitrack/internal/store"

	"golang.org/x/crypto/bcrypt"
)

// TestUnlockToken is the plain edit-unlock token matching UnlockHash.
const TestUnlockToken = "unlock-for-tests"

// OpenStore opens a migrated store backed by a file in a temp directory. The
// store is closed when the test ends.
func OpenStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "npi_test.db"))
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// SeedProject creates a project and returns its id.
func SeedProject(t *testing.T, s *store.Store, product, name string) int64 {
	t.Helper()
	id, _, err := s.CreateProject(context.Background(), product, name, models.ProjectFields{
		FGPartNumber: "FG-" + name,
		NPIEngineer:  "Test Engineer",
	})
	if err != nil {
		t.Fatalf("Failed to create test project %q: %v", name, err)
	}
	return id
}

// UnlockHash returns a bcrypt hash of TestUnlockToken at minimum cost.
func UnlockHash(t *testing.T) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(TestUnlockToken), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash unlock token: %v", err)
	}
	return string(hash)
}

// UnlockedRequest creates a request carrying the edit-unlock header.
func UnlockedRequest(method, path string, body []byte, token string) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("X-Unlock-Token", token)
	}
	return req
}

// JSONRequest creates a request with a JSON body and optional unlock token.
func JSONRequest(method, path string, body interface{}, token string) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	req := UnlockedRequest(method, path, bodyBytes, token)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AssertStatus checks that the HTTP status code matches expected.
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// DecodeEnvelope decodes an API response envelope and extracts the data.
func DecodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode API envelope: %v", err)
	}
	dataBytes, _ := json.Marshal(resp.Data)
	if err := json.Unmarshal(dataBytes, v); err != nil {
		t.Fatalf("Failed to decode data from envelope: %v", err)
	}
}
