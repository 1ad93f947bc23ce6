// Package server assembles the HTTP surface: REST routes, Connect
// services, metrics and the middleware chain around them.
package server

import (
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/splittat/internal/auth"
	"github.com/mmynk/splittat/internal/blob"
	"github.com/mmynk/splittat/internal/handler"
	"github.com/mmynk/splittat/internal/jobs"
	"github.com/mmynk/splittat/internal/metrics"
	"github.com/mmynk/splittat/internal/middleware"
	"github.com/mmynk/splittat/internal/ocr"
	"github.com/mmynk/splittat/internal/service"
	"github.com/mmynk/splittat/internal/storage"
	"github.com/mmynk/splittat/pkg/api/apiconnect"
)

// Options are the dependencies of a Server. Metrics may be nil.
type Options struct {
	Store          storage.Store
	Blobs          blob.Store
	Extractor      ocr.Extractor
	Publisher      jobs.Publisher
	JWT            *auth.JWTManager
	Metrics        *metrics.Metrics
	MaxUploadBytes int64
	AllowedOrigins []string

	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Server holds the services and the root handler.
type Server struct {
	Receipts *service.ReceiptService
	mux      *http.ServeMux
	opts     Options
}

// New wires the services onto a fresh mux.
func New(opts Options) *Server {
	authenticator := auth.NewPasswordAuthenticator(opts.Store)
	if opts.BcryptCost != 0 {
		authenticator.WithCost(opts.BcryptCost)
	}

	authSvc := service.NewAuthService(authenticator, opts.JWT, opts.Store, slog.Default())
	receipts := service.NewReceiptService(opts.Store, opts.Blobs, opts.Extractor, opts.Publisher,
		service.WithMaxUploadBytes(opts.MaxUploadBytes),
		service.WithReceiptMetrics(opts.Metrics),
	)

	mux := http.NewServeMux()
	handler.New(authSvc, receipts, opts.JWT, opts.Store).Register(mux)

	rpcOpts := []connect.HandlerOption{
		connect.WithInterceptors(
			middleware.LoggingInterceptor(opts.Metrics),
			middleware.RequireAuth(opts.JWT),
		),
		connect.WithRecover(middleware.RecoverRPC),
	}
	mux.Handle(apiconnect.NewSplitServiceHandler(service.NewSplitService(opts.Store, opts.Metrics), rpcOpts...))
	mux.Handle(apiconnect.NewGroupServiceHandler(service.NewGroupService(opts.Store, opts.Metrics), rpcOpts...))

	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}

	return &Server{Receipts: receipts, mux: mux, opts: opts}
}

// Handler is the root handler. h2c serves Connect over HTTP/2 without TLS.
func (s *Server) Handler() http.Handler {
	h := middleware.Recover(middleware.Logging(s.opts.Metrics, middleware.CORS(s.opts.AllowedOrigins, s.mux)))
	return h2c.NewHandler(h, &http2.Server{})
}
