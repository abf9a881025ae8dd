package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/statesync/pkg/storage"
)

// Config configures the sync host.
type Config struct {
	// Address is the listen address.
	Address string

	// Store is the persistent medium shared by every session.
	// Default: a new storage.MemoryStore.
	Store storage.TextStore

	// PublicURL is the origin shareable URLs are built on. Empty uses the
	// request's scheme and host.
	PublicURL string

	// ClientCookie names the client id cookie.
	ClientCookie string

	// SecureCookies marks the client id cookie Secure.
	SecureCookies bool

	// AllowedOrigins are accepted on websocket upgrade in addition to the
	// request's own origin.
	AllowedOrigins []string

	// CheckOrigin overrides origin validation entirely.
	CheckOrigin func(r *http.Request) bool

	ReadBufferSize  int
	WriteBufferSize int

	// MaxMessageSize caps a single client frame in bytes.
	MaxMessageSize int64

	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration

	// Registry receives the server and synchronizer metrics and backs
	// /metrics. Default: a new registry.
	Registry *prometheus.Registry

	// MetricsEnabled exposes /metrics.
	MetricsEnabled bool

	// Logger is the base logger. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:         ":8080",
		ClientCookie:    "statesync_client",
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		MaxMessageSize:  64 * 1024,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		MetricsEnabled:  true,
	}
}

// fillDefaults sets zero fields to their defaults.
func (c *Config) fillDefaults() {
	d := DefaultConfig()
	if c.Address == "" {
		c.Address = d.Address
	}
	if c.ClientCookie == "" {
		c.ClientCookie = d.ClientCookie
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = d.ReadBufferSize
	}
	if c.WriteBufferSize == 0 {
		c.WriteBufferSize = d.WriteBufferSize
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.Store == nil {
		c.Store = storage.NewMemoryStore()
	}
	if c.Registry == nil {
		c.Registry = prometheus.NewRegistry()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = OriginCheck(c.AllowedOrigins)
	}
}

// SameOriginCheck validates that the websocket request origin matches the
// host. Requests without an Origin header are accepted.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := r.Host
	if host == "" {
		return false
	}

	return originURL.Host == host
}

// OriginCheck accepts same-origin requests and any origin in allowed.
func OriginCheck(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		if SameOriginCheck(r) {
			return true
		}
		return set[r.Header.Get("Origin")]
	}
}
