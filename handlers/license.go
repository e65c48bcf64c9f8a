package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"licensegate.app/cloud/internal/licensing"
	"licensegate.app/cloud/internal/logger"
	"licensegate.app/cloud/models"
)

type CheckResponse struct {
	Status        string `json:"status"`
	ExpiresOn     string `json:"expires_on,omitempty"`
	DaysRemaining *int   `json:"days_remaining,omitempty"`
	Message       string `json:"message,omitempty"`
}

type RenewRequest struct {
	Email string `json:"email"`
	Days  int    `json:"days"`
}

type GrantResponse struct {
	Email         string `json:"email"`
	LicenseKey    string `json:"license_key"`
	Expiry        int64  `json:"expiry"`
	ExpiresOn     string `json:"expires_on"`
	DaysRemaining int    `json:"days_remaining"`
}

// CheckLicense answers GET /api/v1/licenses/check?email=&key=. The presented
// key is mandatory; a missing key is a 400, not an unverified lookup.
func (s *Server) CheckLicense(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	key := r.URL.Query().Get("key")

	result, err := s.Licensing.Check(r.Context(), email, key)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	resp := CheckResponse{Status: result.Status, ExpiresOn: result.ExpiresOn}

	switch result.Status {
	case models.StatusValid:
		days := result.DaysRemaining
		resp.DaysRemaining = &days
		respondJSON(w, http.StatusOK, resp)
	case models.StatusInvalid:
		resp.Message = "Invalid license key"
		respondJSON(w, http.StatusForbidden, resp)
	case models.StatusExpired:
		respondJSON(w, http.StatusForbidden, resp)
	case models.StatusInactive:
		resp.Message = "No active license"
		respondJSON(w, http.StatusNotFound, resp)
	default: // pending, rejected
		respondJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) RenewLicense(w http.ResponseWriter, r *http.Request) {
	var req RenewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	grant, err := s.Licensing.Renew(r.Context(), req.Email, req.Days)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	admin, _ := adminFrom(r)
	logger.Info("License renewed", map[string]interface{}{
		"email":      grant.Email,
		"days":       req.Days,
		"renewed_by": admin.Email,
	})
	s.notifyLicenseIssued(grant)

	respondJSON(w, http.StatusOK, grantResponse(grant))
}

func grantResponse(grant licensing.LicenseGrant) GrantResponse {
	return GrantResponse{
		Email:         grant.Email,
		LicenseKey:    grant.Key,
		Expiry:        grant.Expiry,
		ExpiresOn:     grant.ExpiresOn,
		DaysRemaining: grant.DaysRemaining,
	}
}

// notifyLicenseIssued emails the key to the holder. Delivery failures are
// logged only; the grant already happened.
func (s *Server) notifyLicenseIssued(grant licensing.LicenseGrant) {
	if !s.Email.Configured() {
		return
	}
	if err := s.Email.LicenseIssued(grant.Email, grant.Key, grant.ExpiresOn); err != nil {
		logger.Warn("Failed to send license email", map[string]interface{}{
			"email": grant.Email,
			"cause": fmt.Sprintf("%v", err),
		})
	}
}
