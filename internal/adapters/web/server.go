// Package web is the HTTP front end: the contact form, the cooldown poll and
// the portfolio content.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mikey/contact-guard/internal/config"
	"github.com/mikey/contact-guard/internal/core"
	"github.com/mikey/contact-guard/internal/portfolio"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Content is the static portfolio data served next to the contact form
type Content struct {
	Catalog *portfolio.Catalog
	CVPath  string
}

// Server implements ports.ContactServer over chi and net/http
type Server struct {
	cfg      config.ServerConfig
	srv      *http.Server
	listener net.Listener
	logger   *zap.Logger
}

// NewServer creates the HTTP server and mounts all routes
func NewServer(cfg config.ServerConfig, content Content, service *core.ContactService, logger *zap.Logger) *Server {
	h := &handlers{
		service:        service,
		content:        content,
		maxBodyBytes:   int64(cfg.MaxBodyKB) * 1024,
		trustForwarded: cfg.TrustForwardedFor,
		logger:         logger,
	}

	return &Server{
		cfg: cfg,
		srv: &http.Server{
			Addr:              cfg.ListenAddress,
			Handler:           newRouter(cfg, h, logger),
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		logger: logger,
	}
}

// newRouter builds the chi mux with middleware and routes
func newRouter(cfg config.ServerConfig, h *handlers, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.StripSlashes)
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}
	r.Use(chimw.SetHeader("X-Content-Type-Options", "nosniff"))
	r.Use(chimw.SetHeader("X-Frame-Options", "DENY"))
	r.Use(chimw.SetHeader("Referrer-Policy", "same-origin"))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"Retry-After"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", h.health)
	r.Post("/contact", h.contact)
	r.Get("/api/cooldown-status", h.cooldownStatus)
	r.Get("/api/projects", h.projects)
	r.Get("/api/skills", h.skills)
	r.Get("/view-cv", h.viewCV)
	r.Get("/download-cv", h.downloadCV)

	return r
}

// Start binds the listen address and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddress, err)
	}
	s.listener = ln

	s.logger.Info("Starting contact server", zap.String("address", ln.Addr().String()))

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop shuts the server down gracefully
func (s *Server) Stop() error {
	s.logger.Info("Stopping contact server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// Handler returns the routed handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.ListenAddress
	}
	return s.listener.Addr().String()
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.Info("HTTP request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)),
					zap.Int("bytes", ww.BytesWritten()),
					zap.String("request_id", chimw.GetReqID(r.Context())))
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
