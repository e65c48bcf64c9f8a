package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"licensegate.app/cloud/internal/config"
	"licensegate.app/cloud/internal/email"
	"licensegate.app/cloud/internal/licensing"
	"licensegate.app/cloud/internal/ratelimit"
	"licensegate.app/cloud/internal/session"
	"licensegate.app/cloud/storage"
)

type contextKey string

const claimsKey contextKey = "admin_claims"

type Server struct {
	Router    chi.Router
	Storage   storage.Storage
	Licensing *licensing.Service
	Sessions  *session.Authority
	Email     *email.Sender
	Version   string

	limiter *ratelimit.FixedWindowLimitter
}

func NewServer(cfg *config.Config, store storage.Storage) *Server {
	s := &Server{
		Storage:   store,
		Licensing: licensing.NewService(store, cfg.LicenseSecret, cfg.AllowedPlans),
		Sessions:  session.NewAuthority(cfg.SessionSecret),
		Email:     email.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass),
		Version:   "dev",
		limiter:   ratelimit.New(60, time.Minute),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(s.rateLimited).Get("/licenses/check", s.CheckLicense)
		r.Post("/payments", s.SubmitPayment)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", s.Login)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Get("/payments", s.ListPendingPayments)
				r.Post("/payments/approve", s.ApprovePayment)
				r.Post("/payments/{id}/reject", s.RejectPayment)
				r.Post("/licenses/renew", s.RenewLicense)
			})
		})
	})

	s.Router = r
	return s
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.AllowedOrigins
}

// requireAdmin is the single authorization gate in front of every mutating
// admin operation. When it fails, the request never reaches a store.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeErrorResponse(w, http.StatusUnauthorized, "Missing token")
			return
		}

		claims, err := s.Sessions.Authorize(token)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// adminFrom returns the claims requireAdmin stored on the request context.
func adminFrom(r *http.Request) (session.Claims, bool) {
	claims, ok := r.Context().Value(claimsKey).(session.Claims)
	return claims, ok
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}

func (s *Server) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := r.RemoteAddr
		if host, _, err := net.SplitHostPort(addr); err == nil {
			addr = host
		}
		if !s.limiter.Allow(addr) {
			writeErrorResponse(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type HealthResponse struct {
	Status         string    `json:"status"`
	Version        string    `json:"version"`
	RequestsServed int64     `json:"requests_served"`
	Timestamp      time.Time `json:"timestamp"`
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:         "healthy",
		Version:        s.Version,
		RequestsServed: s.limiter.Allowed.Load(),
		Timestamp:      time.Now().UTC(),
	})
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, licensing.ErrInvalidInput):
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, licensing.ErrNotFound):
		writeErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, licensing.ErrIssuanceIncomplete):
		// Payment is approved, license is not written. The operator retries
		// just the issuance with a renew, never a second approval.
		writeErrorResponse(w, http.StatusInternalServerError, "Payment approved but license issuance failed; retry issuance via renew")
	case errors.Is(err, licensing.ErrStoreUnavailable):
		writeErrorResponse(w, http.StatusServiceUnavailable, "Storage unavailable")
	case errors.Is(err, session.ErrUnauthorized):
		writeErrorResponse(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, session.ErrExpired):
		writeErrorResponse(w, http.StatusUnauthorized, "Session expired")
	case errors.Is(err, session.ErrForbidden):
		writeErrorResponse(w, http.StatusForbidden, "Forbidden")
	default:
		writeErrorResponse(w, http.StatusInternalServerError, "Internal server error")
	}
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
