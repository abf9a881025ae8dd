package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vango-dev/statesync/internal/errors"
	"github.com/vango-dev/statesync/pkg/value"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Server.Host != DefaultHost {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, DefaultHost)
	}
	if cfg.Store.Backend != BackendMemory {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, BackendMemory)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	// Test loading non-existent config
	_, err := Load(tmpDir)
	if !errors.HasCode(err, "S101") {
		t.Errorf("Expected S101 for missing config, got %v", err)
	}

	configPath := filepath.Join(tmpDir, ConfigFileName)
	configJSON := `{
  "server": {
    "host": "0.0.0.0",
    "port": 9090
  },
  "store": {
    "backend": "file",
    "file": {"dir": "state"}
  },
  "log": {"level": "debug"},
  "consumers": [
    {"name": "thread", "template": {"diameter": 10, "metric": true, "label": ""}}
  ]
}
`
	if err := os.WriteFile(configPath, []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Address() != "0.0.0.0:9090" {
		t.Errorf("Address() = %q", cfg.Address())
	}
	if cfg.Store.Backend != BackendFile {
		t.Errorf("Store.Backend = %q, want file", cfg.Store.Backend)
	}
	if cfg.FileDir() != filepath.Join(tmpDir, "state") {
		t.Errorf("FileDir() = %q", cfg.FileDir())
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, want debug", cfg.SlogLevel())
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want default text", cfg.Log.Format)
	}
	if cfg.Store.S3.Prefix != DefaultS3Prefix {
		t.Errorf("Store.S3.Prefix = %q, want default", cfg.Store.S3.Prefix)
	}

	if len(cfg.Consumers) != 1 {
		t.Fatalf("Consumers len = %d, want 1", len(cfg.Consumers))
	}
	c := cfg.Consumers[0]
	if c.Namespace != "thread" || c.StorageKey != "thread" {
		t.Errorf("consumer defaults = %q/%q, want name", c.Namespace, c.StorageKey)
	}
	if got := c.Template.Keys(); len(got) != 3 || got[0] != "diameter" {
		t.Errorf("template keys = %v, want file order", got)
	}
	if v, _ := c.Template.Get("diameter"); v != value.Number(10) {
		t.Errorf("diameter = %v", v)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadFile_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	if err := os.WriteFile(configPath, []byte("not valid json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(configPath)
	if err == nil {
		t.Fatal("Expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "S102") {
		t.Errorf("Expected S102 error, got: %v", err)
	}
}

func TestSave(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	cfg := New()
	cfg.Server.Port = 9000
	cfg.Consumers = []ConsumerConfig{{
		Name:     "tol",
		Template: value.NewObject().Set("grade", value.String("H7")),
	}}

	// Save should fail without configPath set
	if err := cfg.Save(); err == nil {
		t.Error("Expected error when saving without path")
	}

	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("SaveTo error: %v", err)
	}
	if cfg.Path() != configPath {
		t.Errorf("Path() = %q, want %q", cfg.Path(), configPath)
	}

	loaded, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if loaded.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", loaded.Server.Port)
	}
	if v, _ := loaded.Consumers[0].Template.Get("grade"); v != value.String("H7") {
		t.Errorf("template grade = %v", v)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"STATESYNC_PORT":            "7000",
		"STATESYNC_STORE_BACKEND":   "s3",
		"STATESYNC_S3_BUCKET":       "calc-state",
		"STATESYNC_S3_PATH_STYLE":   "true",
		"STATESYNC_ALLOWED_ORIGINS": "https://a.example, https://b.example,",
		"STATESYNC_LOG_LEVEL":       "",
		"OTHER_PORT":                "1",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := New()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv error: %v", err)
	}

	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Store.Backend != BackendS3 || cfg.Store.S3.Bucket != "calc-state" || !cfg.Store.S3.PathStyle {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("empty variable should not override: Log.Level = %q", cfg.Log.Level)
	}

	t.Run("BadPort", func(t *testing.T) {
		err := New().ApplyEnv(func(k string) (string, bool) {
			if k == "STATESYNC_PORT" {
				return "eighty", true
			}
			return "", false
		})
		if !errors.HasCode(err, "S103") {
			t.Errorf("ApplyEnv() = %v, want S103", err)
		}
	})
}

func TestLoadEnv(t *testing.T) {
	tmpDir := t.TempDir()
	envPath := filepath.Join(tmpDir, ".env")
	if err := os.WriteFile(envPath, []byte("STATESYNC_TEST_LOADENV=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("STATESYNC_TEST_LOADENV") })

	if err := LoadEnv(filepath.Join(tmpDir, "missing.env"), envPath); err != nil {
		t.Fatalf("LoadEnv error: %v", err)
	}
	if got := os.Getenv("STATESYNC_TEST_LOADENV"); got != "from-file" {
		t.Errorf("STATESYNC_TEST_LOADENV = %q", got)
	}
}

func TestValidate(t *testing.T) {
	tmpl := value.NewObject().Set("x", value.Number(0))

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"BadPort", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"UnknownBackend", func(c *Config) { c.Store.Backend = "redis" }, "store.backend"},
		{"FileNoDir", func(c *Config) { c.Store.Backend = BackendFile; c.Store.File.Dir = "" }, "store.file.dir"},
		{"SQLNoDSN", func(c *Config) { c.Store.Backend = BackendSQL; c.Store.SQL.Driver = "sqlite3" }, "store.sql"},
		{"S3NoBucket", func(c *Config) { c.Store.Backend = BackendS3 }, "store.s3.bucket"},
		{"BadLevel", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"BadFormat", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"NoTemplate", func(c *Config) {
			c.Consumers = []ConsumerConfig{{Name: "a", Namespace: "a"}}
		}, "consumers[0].template"},
		{"DuplicateName", func(c *Config) {
			c.Consumers = []ConsumerConfig{
				{Name: "a", Namespace: "a", Template: tmpl},
				{Name: "a", Namespace: "b", Template: tmpl},
			}
		}, "consumers[1].name"},
		{"SeparatorInNamespace", func(c *Config) {
			c.Consumers = []ConsumerConfig{{Name: "a", Namespace: "calc_x", Template: tmpl}}
		}, "consumers[0].namespace"},
		{"DuplicateNamespace", func(c *Config) {
			c.Consumers = []ConsumerConfig{
				{Name: "a", Namespace: "calc", Template: tmpl},
				{Name: "b", Namespace: "calc", Template: tmpl},
			}
		}, "consumers[1].namespace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.HasCode(err, "S103") {
				t.Fatalf("Validate() = %v, want S103", err)
			}
			if se, ok := err.(*errors.SyncError); !ok || se.Field != tt.field {
				t.Errorf("Validate() field = %v, want %q", err, tt.field)
			}
		})
	}
}

func TestFindProjectRoot(t *testing.T) {
	tmpDir := t.TempDir()
	nested := filepath.Join(tmpDir, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := New().SaveTo(filepath.Join(tmpDir, ConfigFileName)); err != nil {
		t.Fatal(err)
	}

	root, err := FindProjectRoot(nested)
	if err != nil {
		t.Fatalf("FindProjectRoot error: %v", err)
	}
	if root != tmpDir {
		t.Errorf("root = %q, want %q", root, tmpDir)
	}
	if !Exists(tmpDir) || Exists(nested) {
		t.Error("Exists() disagrees with the layout")
	}
}
