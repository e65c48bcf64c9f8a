package handlers

import (
	"encoding/json"
	"net/http"

	"licensegate.app/cloud/internal/logger"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := s.Sessions.Login(r.Context(), s.Storage, req.Email, req.Password)
	if err != nil {
		logger.Warn("Admin login failed", map[string]interface{}{
			"email": req.Email,
		})
		s.writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, LoginResponse{Token: token})
}
