package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"licensegate.app/cloud/handlers"
	"licensegate.app/cloud/internal/config"
	"licensegate.app/cloud/internal/session"
	"licensegate.app/cloud/storage"
)

const (
	LicenseSecret = "test-license-secret"
	SessionSecret = "test-session-secret"
	AdminEmail    = "admin@example.com"
	AdminPassword = "admin-password"
)

// TestConfig returns a config with injected test secrets, never environment
// lookups.
func TestConfig() *config.Config {
	return &config.Config{
		Port:          "8080",
		LicenseSecret: []byte(LicenseSecret),
		SessionSecret: []byte(SessionSecret),
		AdminEmail:    AdminEmail,
		AdminPassword: AdminPassword,
	}
}

// NewTestServer builds a server on memory storage with the admin credential
// already bootstrapped.
func NewTestServer(t *testing.T) (*handlers.Server, *storage.MemoryStorage) {
	t.Helper()

	store := storage.NewMemoryStorage()
	hash, err := session.HashPassword(AdminPassword)
	if err != nil {
		t.Fatalf("Failed to hash admin password: %v", err)
	}
	if err := store.CreateAdmin(context.Background(), AdminEmail, hash); err != nil {
		t.Fatalf("Failed to create admin: %v", err)
	}

	return handlers.NewServer(TestConfig(), store), store
}

// DoJSON sends a JSON request through the router and returns the recorder.
func DoJSON(t *testing.T, server *handlers.Server, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, req)
	return w
}

// LoginAsAdmin logs in with the bootstrapped credential and returns the
// session token.
func LoginAsAdmin(t *testing.T, server *handlers.Server) string {
	t.Helper()

	w := DoJSON(t, server, http.MethodPost, "/api/v1/admin/login", handlers.LoginRequest{
		Email:    AdminEmail,
		Password: AdminPassword,
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Admin login failed with status %d: %s", w.Code, w.Body.String())
	}

	var resp handlers.LoginResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode login response: %v", err)
	}
	return resp.Token
}

// DecodeJSON decodes a response body into out.
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()

	if err := json.NewDecoder(w.Body).Decode(out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}
