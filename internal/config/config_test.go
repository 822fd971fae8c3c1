package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hello-pool/internal/logger"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Addr != "127.0.0.1:7878" {
		t.Errorf("expected default addr 127.0.0.1:7878, got %s", cfg.Server.Addr)
	}
	if cfg.Pool.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Pool.Workers)
	}
	if cfg.Server.ReadBuffer != 1024 {
		t.Errorf("expected 1024 byte buffer, got %d", cfg.Server.ReadBuffer)
	}
	if cfg.SleepDuration() != 5*time.Second {
		t.Errorf("expected 5s sleep, got %v", cfg.SleepDuration())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadFileYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  addr: 0.0.0.0:9000
  doc_root: /srv/www
  sleep_delay: 250ms
  max_conns: 64
pool:
  workers: 8
log:
  level: debug
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Addr != "0.0.0.0:9000" {
		t.Errorf("expected addr 0.0.0.0:9000, got %s", cfg.Server.Addr)
	}
	if cfg.Server.DocRoot != "/srv/www" {
		t.Errorf("expected doc_root /srv/www, got %s", cfg.Server.DocRoot)
	}
	if cfg.Server.MaxConns != 64 {
		t.Errorf("expected max_conns 64, got %d", cfg.Server.MaxConns)
	}
	if cfg.Pool.Workers != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.Pool.Workers)
	}
	if cfg.SleepDuration() != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", cfg.SleepDuration())
	}
	if cfg.LogLevel() != logger.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.LogLevel())
	}
	// 未指定の項目はデフォルトのまま
	if cfg.Server.ReadBuffer != 1024 {
		t.Errorf("expected default read_buffer, got %d", cfg.Server.ReadBuffer)
	}
}

func TestLoadFileJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
  "server": {"addr": "127.0.0.1:8000", "read_buffer": 2048},
  "pool": {"workers": 2}
}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:8000" {
		t.Errorf("expected addr 127.0.0.1:8000, got %s", cfg.Server.Addr)
	}
	if cfg.Server.ReadBuffer != 2048 {
		t.Errorf("expected read_buffer 2048, got %d", cfg.Server.ReadBuffer)
	}
	if cfg.Pool.Workers != 2 {
		t.Errorf("expected 2 workers, got %d", cfg.Pool.Workers)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeFile(t, "config.toml", "workers = 2")
	if _, err := LoadFile(path); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected unsupported format error, got %v", err)
	}

	path = writeFile(t, "bad.yaml", "pool: [unclosed")
	if _, err := LoadFile(path); err == nil {
		t.Error("expected YAML parse error")
	}

	path = writeFile(t, "bad.json", "{")
	if _, err := LoadFile(path); err == nil {
		t.Error("expected JSON parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*FileConfig)
	}{
		{"zero workers", func(c *FileConfig) { c.Pool.Workers = 0 }},
		{"empty addr", func(c *FileConfig) { c.Server.Addr = "" }},
		{"tiny buffer", func(c *FileConfig) { c.Server.ReadBuffer = 4 }},
		{"negative max conns", func(c *FileConfig) { c.Server.MaxConns = -1 }},
		{"bad sleep delay", func(c *FileConfig) { c.Server.SleepDelay = "soon" }},
		{"negative sleep delay", func(c *FileConfig) { c.Server.SleepDelay = "-1s" }},
		{"unknown log level", func(c *FileConfig) { c.Log.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvAddr, "127.0.0.1:1234")
	t.Setenv(EnvWorkers, "3")
	t.Setenv(EnvDocRoot, "/tmp/pages")
	t.Setenv(EnvSleepDelay, "1s")
	t.Setenv(EnvMaxConns, "10")
	t.Setenv(EnvMetricsAddr, ":9100")
	t.Setenv(EnvLogLevel, "warn")

	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:1234" {
		t.Errorf("expected env addr, got %s", cfg.Server.Addr)
	}
	if cfg.Pool.Workers != 3 {
		t.Errorf("expected 3 workers, got %d", cfg.Pool.Workers)
	}
	if cfg.Server.DocRoot != "/tmp/pages" {
		t.Errorf("expected env doc root, got %s", cfg.Server.DocRoot)
	}
	if cfg.SleepDuration() != time.Second {
		t.Errorf("expected 1s sleep, got %v", cfg.SleepDuration())
	}
	if cfg.Server.MaxConns != 10 {
		t.Errorf("expected max_conns 10, got %d", cfg.Server.MaxConns)
	}
	if cfg.Server.MetricsAddr != ":9100" {
		t.Errorf("expected metrics addr :9100, got %s", cfg.Server.MetricsAddr)
	}
	if cfg.LogLevel() != logger.LevelWarn {
		t.Errorf("expected warn level, got %v", cfg.LogLevel())
	}
}

func TestApplyEnvInvalidNumber(t *testing.T) {
	t.Setenv(EnvWorkers, "many")

	cfg := Default()
	if err := cfg.ApplyEnv(); err == nil {
		t.Error("expected error for non-numeric worker count")
	}
}

func TestLoadEnv(t *testing.T) {
	path := writeFile(t, "test.env", "HELLO_WORKERS=6\nHELLO_DOC_ROOT=from-dotenv\n")

	t.Setenv(EnvWorkers, "")
	os.Unsetenv(EnvWorkers)
	t.Setenv(EnvDocRoot, "already-set")

	if err := LoadEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadEnv failed: %v", err)
	}

	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if cfg.Pool.Workers != 6 {
		t.Errorf("expected 6 workers from .env, got %d", cfg.Pool.Workers)
	}
	// 既存の環境変数は .env より優先される
	if cfg.Server.DocRoot != "already-set" {
		t.Errorf("expected existing env to win, got %s", cfg.Server.DocRoot)
	}
}
