package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/statesync/pkg/statesync"
)

// Server is the sync host.
type Server struct {
	config   *Config
	defs     map[string]Definition
	router   chi.Router
	upgrader websocket.Upgrader
	hub      *hub

	metrics     *metrics
	syncMetrics *statesync.Metrics
	logger      *slog.Logger
	tracer      trace.Tracer
}

// New creates a server hosting defs. A nil config uses DefaultConfig.
func New(config *Config, defs ...Definition) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	cfg.fillDefaults()

	s := &Server{
		config: &cfg,
		defs:   make(map[string]Definition, len(defs)),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		hub:         newHub(),
		metrics:     newMetrics(cfg.Registry),
		syncMetrics: statesync.NewMetrics(cfg.Registry),
		logger:      cfg.Logger.With("component", "server"),
		tracer:      otel.Tracer("statesync/server"),
	}

	namespaces := make(map[string]string)
	for _, d := range defs {
		def, err := d.normalize()
		if err != nil {
			return nil, err
		}
		if _, dup := s.defs[def.Name]; dup {
			return nil, fmt.Errorf("server: duplicate definition %q", def.Name)
		}
		if other, dup := namespaces[def.Namespace]; dup {
			return nil, fmt.Errorf("server: definitions %q and %q share namespace %q", other, def.Name, def.Namespace)
		}
		namespaces[def.Namespace] = def.Name
		s.defs[def.Name] = def
	}

	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.handleHealth)
	if s.config.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(s.config.Registry, promhttp.HandlerOpts{}))
	}
	r.Get("/statesync.js", s.handleClientScript)

	r.Get("/api/palette", s.handlePalette)
	r.Route("/api/{name}", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Post("/share", s.handleShare)
	})
	r.Get("/ws/{name}", s.handleWebSocket)
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Definitions returns the registered definitions sorted by name.
func (s *Server) Definitions() []Definition {
	out := make([]Definition, 0, len(s.defs))
	for _, d := range s.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SessionCount returns the number of connected websocket sessions.
func (s *Server) SessionCount() int {
	return s.hub.count()
}

// ListenAndServe serves until ctx is done, then closes every session and
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("server listening", "address", s.config.Address, "consumers", len(s.defs))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down", "sessions", s.hub.count())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.hub.closeAll()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) definition(r *http.Request) (Definition, bool) {
	def, ok := s.defs[chi.URLParam(r, "name")]
	return def, ok
}

// baseURL is the origin and page path shareable URLs are built on.
func (s *Server) baseURL(r *http.Request, def Definition) *url.URL {
	if s.config.PublicURL != "" {
		if u, err := url.Parse(s.config.PublicURL); err == nil {
			return u.JoinPath(def.Path)
		}
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return &url.URL{Scheme: scheme, Host: r.Host, Path: def.Path}
}

// clientID returns the client id from the request cookie, or a new id and
// the cookie that carries it.
func (s *Server) clientID(r *http.Request) (string, *http.Cookie) {
	if c, err := r.Cookie(s.config.ClientCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String(), nil
		}
	}

	id := uuid.NewString()
	return id, &http.Cookie{
		Name:     s.config.ClientCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   s.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// requestLogger logs each request with slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
