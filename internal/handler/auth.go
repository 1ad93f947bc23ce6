package handler

import (
	"net/http"
	"time"

	"github.com/mmynk/splittat/internal/middleware"
	"github.com/mmynk/splittat/internal/service"
	"github.com/mmynk/splittat/pkg/api"
)

func authResponse(res *service.AuthResult) *api.AuthResponse {
	return &api.AuthResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt.UTC(),
		User:      service.ToAPIUser(res.User),
	}
}

// RegisterUser creates an account and returns a token.
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.auth.Register(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse(res))
}

// Login exchanges email and password for a token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse(res))
}

// Me returns the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Me(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, service.ToAPIUser(user))
}

// Health reports liveness and database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, &api.HealthResponse{Status: status, Timestamp: time.Now().UTC()})
}
