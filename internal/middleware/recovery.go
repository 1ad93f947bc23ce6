package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"connectrpc.com/connect"

	"github.com/mmynk/splittat/internal/errs"
)

// Recover turns a panic in next into a logged, generic 500 response.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			slog.Error("Panic serving request",
				"method", r.Method,
				"path", r.URL.Path,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			errs.Write(w, errs.NewInternalServerError())
		}()
		next.ServeHTTP(w, r)
	})
}

// RecoverRPC is passed to connect.WithRecover. The client only sees a
// generic internal error.
func RecoverRPC(_ context.Context, spec connect.Spec, _ http.Header, rec any) error {
	slog.Error("Panic serving RPC",
		"procedure", spec.Procedure,
		"panic", rec,
		"stack", string(debug.Stack()),
	)
	return connect.NewError(connect.CodeInternal, errors.New("internal error"))
}
