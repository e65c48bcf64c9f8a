package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"licensegate.app/cloud/internal/logger"
	"licensegate.app/cloud/models"
)

type PaymentRequest struct {
	Email string `json:"email"`
	Plan  string `json:"plan"`
}

type ApproveRequest struct {
	Email string `json:"email"`
	Plan  string `json:"plan"`
	Days  int    `json:"days"`
}

// SubmitPayment records an "I have paid" notice. Duplicates are fine; the
// admin disposes of the latest pending row per email and plan.
func (s *Server) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	payment, err := s.Licensing.SubmitPayment(r.Context(), req.Email, req.Plan)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	logger.Info("Payment submitted", map[string]interface{}{
		"email": payment.Email,
		"plan":  payment.Plan,
	})

	respondJSON(w, http.StatusCreated, map[string]string{
		"status": "recorded",
		"email":  payment.Email,
		"plan":   payment.Plan,
	})
}

func (s *Server) ListPendingPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := s.Licensing.PendingPayments(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"payments": payments})
}

func (s *Server) ApprovePayment(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	grant, err := s.Licensing.ApprovePayment(r.Context(), req.Email, req.Plan, req.Days)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	admin, _ := adminFrom(r)
	logger.Info("Payment approved, license issued", map[string]interface{}{
		"email":       grant.Email,
		"plan":        req.Plan,
		"days":        req.Days,
		"approved_by": admin.Email,
	})
	s.notifyLicenseIssued(grant)

	respondJSON(w, http.StatusOK, grantResponse(grant))
}

func (s *Server) RejectPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid payment id")
		return
	}

	if err := s.Licensing.RejectPayment(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}

	logger.Info("Payment rejected", map[string]interface{}{
		"payment_id": id,
	})

	respondJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}
