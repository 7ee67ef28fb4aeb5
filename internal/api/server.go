// Package api is the storage API the upload client talks to. It accepts
// multipart uploads behind bearer tokens, answers with DRF-shaped error
// bodies, stores blobs and metadata, and schedules follow-up jobs.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/dharsanguruparan/VaultForm/internal/config"
	"github.com/dharsanguruparan/VaultForm/internal/queue"
	"github.com/dharsanguruparan/VaultForm/internal/signing"
	"github.com/dharsanguruparan/VaultForm/internal/storage"
)

// RequestIDHeader carries the per-request id.
const RequestIDHeader = "X-Request-ID"

// Presigner is implemented by blob stores that can hand out download URLs.
type Presigner interface {
	PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Deps are the collaborators a Server needs.
type Deps struct {
	Signer    *signing.Signer
	Meta      storage.MetadataStore
	Blobs     storage.BlobStore
	Scheduler queue.Scheduler
	Logger    *zerolog.Logger
}

// Server exposes the upload and file info endpoints.
type Server struct {
	cfg       *config.Server
	signer    *signing.Signer
	meta      storage.MetadataStore
	blobs     storage.BlobStore
	scheduler queue.Scheduler
	logger    zerolog.Logger
	server    *http.Server
	once      sync.Once
}

// New constructs a Server.
func New(cfg *config.Server, deps Deps) *Server {
	logger := log.Logger
	if deps.Logger != nil {
		logger = *deps.Logger
	}
	return &Server{
		cfg:       cfg,
		signer:    deps.Signer,
		meta:      deps.Meta,
		blobs:     deps.Blobs,
		scheduler: deps.Scheduler,
		logger:    logger,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST "+config.UploadPath+"{$}", s.requireToken(s.handleUpload))
	mux.HandleFunc("GET /api/storage/files/{id}/{$}", s.requireToken(s.handleFile))

	var h http.Handler = mux
	h = corsMiddleware(h)
	h = hlog.AccessHandler(accessLog)(h)
	h = requestID(h)
	h = hlog.NewHandler(s.logger)(h)
	return h
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:              s.cfg.Address,
			Handler:           s.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.logger.Info().Str("address", s.cfg.Address).Msg("api listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// requestID assigns an xid to each request, echoes it in the response and
// adds it to the request logger.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := xid.FromString(id); err != nil {
			id = xid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		logger := hlog.FromRequest(r)
		logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("request_id", id)
		})
		next.ServeHTTP(w, r)
	})
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,"+RequestIDHeader)
		w.Header().Set("Access-Control-Expose-Headers", RequestIDHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
