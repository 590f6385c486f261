// Package api exposes the directory over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/referral-os/directory/internal/imports"
	"github.com/referral-os/directory/internal/model"
)

// Directory is the query surface the handlers read from.
type Directory interface {
	Search(ctx context.Context, params model.SearchParams) (*model.SearchResult, error)
	ByID(ctx context.Context, id string) (*model.Professional, error)
	BySlug(ctx context.Context, slug string) (*model.Professional, error)
	Stats(ctx context.Context) (model.Stats, error)
	Reload(ctx context.Context) error
}

// Options tunes the router.
type Options struct {
	CORSOrigins   []string
	MaxUploadSize int64 // bytes, default 32 MiB
}

// Server wires the directory and the import service into a chi router.
type Server struct {
	dir     Directory
	imports *imports.Service
	opts    Options
	now     func() time.Time
}

// NewServer creates a Server. A nil import service disables the import routes.
func NewServer(dir Directory, svc *imports.Service, opts Options) *Server {
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = 32 << 20
	}
	return &Server{dir: dir, imports: svc, opts: opts, now: time.Now}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/professionals", func(r chi.Router) {
		r.Get("/", s.handleSearch)
		r.Get("/stats", s.handleStats)
		r.Get("/by-slug/{slug}", s.handleBySlug)
		r.Post("/reload", s.handleReload)
		if s.imports != nil {
			r.Post("/import", s.handleImport)
		}
		r.Get("/{id}", s.handleByID)
	})
	if s.imports != nil {
		r.Get("/api/imports", s.handleImportHistory)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			zap.L().Debug("api: request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
