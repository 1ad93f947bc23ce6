// Package handler serves the REST part of the API: authentication,
// receipts and health. Splits and groups are served over Connect by
// package service.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mmynk/splittat/internal/auth"
	"github.com/mmynk/splittat/internal/errs"
	"github.com/mmynk/splittat/internal/middleware"
	"github.com/mmynk/splittat/internal/service"
	"github.com/mmynk/splittat/internal/validation"
)

const maxJSONBodyBytes = 1 << 20

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the REST endpoints.
type Handler struct {
	auth     *service.AuthService
	receipts *service.ReceiptService
	jwt      *auth.JWTManager
	db       Pinger
}

// New creates the REST handler.
func New(authSvc *service.AuthService, receipts *service.ReceiptService, jwtManager *auth.JWTManager, db Pinger) *Handler {
	return &Handler{
		auth:     authSvc,
		receipts: receipts,
		jwt:      jwtManager,
		db:       db,
	}
}

// Register mounts every route on mux. Routes other than auth and health
// require a bearer token.
func (h *Handler) Register(mux *http.ServeMux) {
	protected := func(fn http.HandlerFunc) http.Handler {
		return middleware.RequireAuthHTTP(h.jwt, fn)
	}

	mux.HandleFunc("GET /api/health", h.Health)

	mux.HandleFunc("POST /api/auth/register", h.RegisterUser)
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.Handle("GET /api/auth/me", protected(h.Me))

	mux.Handle("POST /api/receipts", protected(h.UploadReceipt))
	mux.Handle("GET /api/receipts", protected(h.ListReceipts))
	mux.Handle("GET /api/receipts/{id}", protected(h.GetReceipt))
	mux.Handle("PUT /api/receipts/{id}/items", protected(h.UpdateReceiptItems))
	mux.Handle("DELETE /api/receipts/{id}", protected(h.DeleteReceipt))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON", "error", err)
	}
}

// decodeJSON reads a JSON body into v and validates it.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes)).Decode(v); err != nil {
		return errs.NewBadRequestError("Invalid request body", nil)
	}
	return validation.Struct(v)
}

// writeError maps service and auth errors onto HTTP responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	errs.Write(w, httpError(r, err))
}

func httpError(r *http.Request, err error) *errs.HTTPError {
	var he *errs.HTTPError
	if errors.As(err, &he) {
		return he
	}

	var verr *auth.ValidationError
	if errors.As(err, &verr) {
		if verr.Conflict {
			return errs.NewConflictError(verr.Message)
		}
		return errs.NewBadRequestError(verr.Message, nil)
	}

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return errs.NewUnauthorizedError(auth.ErrInvalidCredentials.Error())
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		return errs.NewUnauthorizedError(err.Error())
	case errors.Is(err, service.ErrNotFound):
		return errs.NewNotFoundError(capitalize(err.Error()))
	case errors.Is(err, service.ErrInvalidArgument):
		return errs.NewBadRequestError(detail(err, service.ErrInvalidArgument), nil)
	case errors.Is(err, service.ErrTooLarge):
		return errs.NewPayloadTooLargeError(capitalize(err.Error()))
	case errors.Is(err, service.ErrFailedPrecondition):
		return errs.NewConflictError(detail(err, service.ErrFailedPrecondition))
	case errors.Is(err, service.ErrPermissionDenied):
		return errs.NewForbiddenError(detail(err, service.ErrPermissionDenied))
	}

	slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	return errs.NewInternalServerError()
}

// detail strips the "<sentinel>: " prefix added by the service layer.
func detail(err, sentinel error) string {
	return capitalize(strings.TrimPrefix(err.Error(), sentinel.Error()+": "))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
