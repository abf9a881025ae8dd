package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/vango-dev/statesync/internal/errors"
	"github.com/vango-dev/statesync/pkg/value"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "statesync.json"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "STATESYNC_"

	// DefaultPort is the default server port.
	DefaultPort = 8080

	// DefaultHost is the default server host.
	DefaultHost = "localhost"

	// DefaultS3Prefix is the default object key prefix for the s3 backend.
	DefaultS3Prefix = "statesync/"

	// DefaultSQLTable is the default table for the sql backend.
	DefaultSQLTable = "statesync_state"

	// DefaultClientCookie names the cookie that scopes storage per client.
	DefaultClientCookie = "statesync_client"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQL    = "sql"
	BackendS3     = "s3"
)

// Config represents the complete statesync.json configuration.
type Config struct {
	// Server contains sync host settings.
	Server ServerConfig `json:"server"`

	// Store selects and configures the persistent store backend.
	Store StoreConfig `json:"store"`

	// Metrics contains Prometheus settings.
	Metrics MetricsConfig `json:"metrics"`

	// Log contains logging settings.
	Log LogConfig `json:"log"`

	// Consumers are the state consumers served by the host.
	Consumers []ConsumerConfig `json:"consumers,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains sync host settings.
type ServerConfig struct {
	// Host is the host to bind to.
	Host string `json:"host,omitempty"`

	// Port is the port to listen on.
	Port int `json:"port,omitempty"`

	// AllowedOrigins lists origins accepted on websocket upgrade. Empty
	// means same-origin only.
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`

	// ClientCookie is the name of the client id cookie.
	ClientCookie string `json:"clientCookie,omitempty"`

	// PublicURL is the origin shareable URLs are built on
	// (e.g., "https://tools.example.com"). Empty uses the request's host.
	PublicURL string `json:"publicUrl,omitempty"`
}

// StoreConfig selects the persistent store backend.
type StoreConfig struct {
	// Backend is one of memory, file, sql, s3.
	Backend string `json:"backend,omitempty"`

	File FileStoreConfig `json:"file,omitempty"`
	SQL  SQLStoreConfig  `json:"sql,omitempty"`
	S3   S3StoreConfig   `json:"s3,omitempty"`
}

// FileStoreConfig configures the file backend.
type FileStoreConfig struct {
	// Dir holds one JSON file per storage key.
	Dir string `json:"dir,omitempty"`
}

// SQLStoreConfig configures the sql backend.
type SQLStoreConfig struct {
	// Driver is the database/sql driver name (e.g., "sqlite3").
	Driver string `json:"driver,omitempty"`

	// DSN is the data source name.
	DSN string `json:"dsn,omitempty"`

	// Dialect is postgres, mysql or sqlite. Default: derived from Driver.
	Dialect string `json:"dialect,omitempty"`

	// Table is the state table name.
	Table string `json:"table,omitempty"`
}

// S3StoreConfig configures the s3 backend.
type S3StoreConfig struct {
	Bucket   string `json:"bucket,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
	Region   string `json:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`

	// PathStyle forces path-style addressing, needed by most S3-compatible
	// servers.
	PathStyle bool `json:"pathStyle,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled exposes /metrics.
	Enabled bool `json:"enabled,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty"`
}

// ConsumerConfig describes one state consumer.
type ConsumerConfig struct {
	// Name identifies the consumer in routes.
	Name string `json:"name"`

	// Namespace prefixes the consumer's URL parameters.
	Namespace string `json:"namespace"`

	// StorageKey is the key its state is stored under.
	StorageKey string `json:"storageKey"`

	// Path is the page path shareable URLs point at.
	Path string `json:"path,omitempty"`

	// Title is shown in the command palette.
	Title string `json:"title,omitempty"`

	// Template is the default state.
	Template *value.Object `json:"template"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         DefaultHost,
			Port:         DefaultPort,
			ClientCookie: DefaultClientCookie,
		},
		Store: StoreConfig{
			Backend: BackendMemory,
			File:    FileStoreConfig{Dir: ".statesync"},
			SQL:     SQLStoreConfig{Table: DefaultSQLTable},
			S3:      S3StoreConfig{Prefix: DefaultS3Prefix},
		},
		Metrics: MetricsConfig{Enabled: true},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from the specified directory.
// It looks for statesync.json in the directory.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("S101").
				WithDetail("No " + ConfigFileName + " found in " + filepath.Dir(path)).
				WithSuggestion("Create " + ConfigFileName + " or run without --config to use defaults")
		}
		return nil, errors.New("S102").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("S102").
			WithDetail("Failed to parse " + ConfigFileName + ": " + err.Error()).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// LoadEnv loads .env files into the process environment. Missing files
// are ignored; with no arguments ".env" in the working directory is tried.
// Variables already set are not overridden.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.New("S102").WithDetail("Failed to load " + f).Wrap(err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from STATESYNC_* variables, read through
// lookup (os.LookupEnv when nil).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return "", false
		}
		return v, true
	}

	strs := map[string]*string{
		"HOST":          &c.Server.Host,
		"CLIENT_COOKIE": &c.Server.ClientCookie,
		"PUBLIC_URL":    &c.Server.PublicURL,
		"STORE_BACKEND": &c.Store.Backend,
		"FILE_DIR":      &c.Store.File.Dir,
		"SQL_DRIVER":    &c.Store.SQL.Driver,
		"SQL_DSN":       &c.Store.SQL.DSN,
		"SQL_DIALECT":   &c.Store.SQL.Dialect,
		"SQL_TABLE":     &c.Store.SQL.Table,
		"S3_BUCKET":     &c.Store.S3.Bucket,
		"S3_PREFIX":     &c.Store.S3.Prefix,
		"S3_REGION":     &c.Store.S3.Region,
		"S3_ENDPOINT":   &c.Store.S3.Endpoint,
		"LOG_LEVEL":     &c.Log.Level,
		"LOG_FORMAT":    &c.Log.Format,
	}
	for name, dst := range strs {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	if v, ok := get("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("S103").WithField(EnvPrefix + "PORT").
				WithDetail("Port must be a number, got " + strconv.Quote(v))
		}
		c.Server.Port = port
	}
	if v, ok := get("ALLOWED_ORIGINS"); ok {
		c.Server.AllowedOrigins = splitList(v)
	}

	bools := map[string]*bool{
		"METRICS_ENABLED": &c.Metrics.Enabled,
		"S3_PATH_STYLE":   &c.Store.S3.PathStyle,
	}
	for name, dst := range bools {
		v, ok := get(name)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.New("S103").WithField(EnvPrefix + name).
				WithDetail("Expected true or false, got " + strconv.Quote(v))
		}
		*dst = b
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("S102").Wrap(err)
	}

	// Add newline at end of file
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("S102").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.ClientCookie == "" {
		c.Server.ClientCookie = DefaultClientCookie
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	if c.Store.SQL.Table == "" {
		c.Store.SQL.Table = DefaultSQLTable
	}
	if c.Store.S3.Prefix == "" {
		c.Store.S3.Prefix = DefaultS3Prefix
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	for i := range c.Consumers {
		if c.Consumers[i].Namespace == "" {
			c.Consumers[i].Namespace = c.Consumers[i].Name
		}
		if c.Consumers[i].StorageKey == "" {
			c.Consumers[i].StorageKey = c.Consumers[i].Name
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New("S103").WithField("server.port").
			WithDetail("Port must be between 0 and 65535")
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Store.File.Dir == "" {
			return errors.New("S103").WithField("store.file.dir").
				WithDetail("The file backend needs a directory")
		}
	case BackendSQL:
		if c.Store.SQL.Driver == "" || c.Store.SQL.DSN == "" {
			return errors.New("S103").WithField("store.sql").
				WithDetail("The sql backend needs a driver and a dsn")
		}
	case BackendS3:
		if c.Store.S3.Bucket == "" {
			return errors.New("S103").WithField("store.s3.bucket").
				WithDetail("The s3 backend needs a bucket")
		}
	default:
		return errors.New("S103").WithField("store.backend").
			WithDetail("Unknown backend " + strconv.Quote(c.Store.Backend)).
			WithSuggestion("Use one of memory, file, sql, s3")
	}

	if _, ok := parseLevel(c.Log.Level); !ok {
		return errors.New("S103").WithField("log.level").
			WithDetail("Unknown level " + strconv.Quote(c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.New("S103").WithField("log.format").
			WithDetail("Format must be text or json")
	}

	names := make(map[string]bool)
	namespaces := make([]string, 0, len(c.Consumers))
	for i, cc := range c.Consumers {
		field := "consumers[" + strconv.Itoa(i) + "]"
		if cc.Name == "" {
			return errors.New("S103").WithField(field + ".name").WithDetail("Consumer name is required")
		}
		if names[cc.Name] {
			return errors.New("S103").WithField(field + ".name").WithDetail("Duplicate consumer " + strconv.Quote(cc.Name))
		}
		names[cc.Name] = true
		if cc.Template == nil {
			return errors.New("S103").WithField(field + ".template").WithDetail("Consumer template is required")
		}
		if strings.Contains(cc.Namespace, "_") {
			return errors.New("S103").WithField(field + ".namespace").
				WithDetail("Namespace must not contain the parameter separator \"_\"")
		}
		for _, other := range namespaces {
			if other == cc.Namespace {
				return errors.New("S103").WithField(field + ".namespace").
					WithDetail("Namespace " + strconv.Quote(cc.Namespace) + " is used twice")
			}
		}
		namespaces = append(namespaces, cc.Namespace)
	}
	return nil
}

// Address returns the listen address for the server.
func (c *Config) Address() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// FileDir returns the absolute path of the file backend directory.
func (c *Config) FileDir() string {
	if filepath.IsAbs(c.Store.File.Dir) {
		return c.Store.File.Dir
	}
	return filepath.Join(c.Dir(), c.Store.File.Dir)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing statesync.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("S101").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory
// or the nearest parent that has one.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}
