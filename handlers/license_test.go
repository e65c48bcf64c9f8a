package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"licensegate.app/cloud/internal/license"
	"licensegate.app/cloud/models"
)

func checkURL(email, key string) string {
	query := url.Values{}
	query.Set("email", email)
	query.Set("key", key)
	return "/api/v1/licenses/check?" + query.Encode()
}

func TestCheckLicense_MissingParams(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		path string
	}{
		{"NoParams", "/api/v1/licenses/check"},
		{"NoKey", checkURL("user@example.com", "")},
		{"NoEmail", checkURL("", "some-key")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, s, http.MethodGet, tc.path, nil, "")
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", w.Code)
			}
		})
	}
}

func TestCheckLicense_Statuses(t *testing.T) {
	s := newTestServer(t)
	token := adminToken(t, s)

	// A renewed license checks out as valid.
	w := doJSON(t, s, http.MethodPost, "/api/v1/admin/licenses/renew", RenewRequest{
		Email: "valid@example.com",
		Days:  30,
	}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Renew failed with status %d: %s", w.Code, w.Body.String())
	}
	var grant GrantResponse
	if err := json.NewDecoder(w.Body).Decode(&grant); err != nil {
		t.Fatalf("Failed to decode grant: %v", err)
	}

	w = doJSON(t, s, http.MethodGet, checkURL("valid@example.com", grant.LicenseKey), nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp CheckResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode check response: %v", err)
	}
	if resp.Status != models.StatusValid {
		t.Errorf("Expected valid, got %s", resp.Status)
	}
	if resp.DaysRemaining == nil || *resp.DaysRemaining < 29 || *resp.DaysRemaining > 30 {
		t.Errorf("Expected days_remaining 29 or 30, got %v", resp.DaysRemaining)
	}

	// Wrong key is a 403 invalid.
	w = doJSON(t, s, http.MethodGet, checkURL("valid@example.com", "wrong-key"), nil, "")
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for wrong key, got %d", w.Code)
	}

	// Unknown email with a well-formed key is inactive, 404.
	key := license.Derive(testConfig.LicenseSecret, "unknown@example.com")
	w = doJSON(t, s, http.MethodGet, checkURL("unknown@example.com", key), nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for inactive, got %d", w.Code)
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Status != models.StatusInactive {
		t.Errorf("Expected inactive, got %s", resp.Status)
	}
}

func TestCheckLicense_PendingAndRejected(t *testing.T) {
	s := newTestServer(t)
	token := adminToken(t, s)
	key := license.Derive(testConfig.LicenseSecret, "a@x.com")

	w := doJSON(t, s, http.MethodPost, "/api/v1/payments", PaymentRequest{
		Email: "a@x.com",
		Plan:  "pro",
	}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("Submit failed with status %d", w.Code)
	}

	w = doJSON(t, s, http.MethodGet, checkURL("a@x.com", key), nil, "")
	var resp CheckResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if w.Code != http.StatusOK || resp.Status != models.StatusPending {
		t.Errorf("Expected 200 pending, got %d %s", w.Code, resp.Status)
	}

	// Find and reject the submitted payment.
	w = doJSON(t, s, http.MethodGet, "/api/v1/admin/payments", nil, token)
	var list struct {
		Payments []models.Payment `json:"payments"`
	}
	json.NewDecoder(w.Body).Decode(&list)
	if len(list.Payments) != 1 {
		t.Fatalf("Expected one pending payment, got %d", len(list.Payments))
	}

	rejectPath := fmt.Sprintf("/api/v1/admin/payments/%d/reject", list.Payments[0].ID)
	w = doJSON(t, s, http.MethodPost, rejectPath, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Reject failed with status %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, s, http.MethodGet, checkURL("a@x.com", key), nil, "")
	json.NewDecoder(w.Body).Decode(&resp)
	if w.Code != http.StatusOK || resp.Status != models.StatusRejected {
		t.Errorf("Expected 200 rejected, got %d %s", w.Code, resp.Status)
	}
}

func TestRenewLicense_InvalidDays(t *testing.T) {
	s := newTestServer(t)
	token := adminToken(t, s)

	w := doJSON(t, s, http.MethodPost, "/api/v1/admin/licenses/renew", RenewRequest{
		Email: "user@example.com",
		Days:  0,
	}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for zero days, got %d", w.Code)
	}
}
