// Package config loads server and pool settings from files and the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"hello-pool/internal/logger"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 環境変数名
const (
	EnvAddr        = "HELLO_ADDR"
	EnvWorkers     = "HELLO_WORKERS"
	EnvDocRoot     = "HELLO_DOC_ROOT"
	EnvSleepDelay  = "HELLO_SLEEP_DELAY"
	EnvMaxConns    = "HELLO_MAX_CONNS"
	EnvMetricsAddr = "HELLO_METRICS_ADDR"
	EnvLogLevel    = "HELLO_LOG_LEVEL"
)

const minReadBuffer = 16

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Server ServerConfig `yaml:"server" json:"server"`
	Pool   PoolConfig   `yaml:"pool" json:"pool"`
	Log    LogConfig    `yaml:"log" json:"log"`
}

// ServerConfig はリスナーとレスポンダの設定
type ServerConfig struct {
	Addr        string `yaml:"addr" json:"addr"`
	DocRoot     string `yaml:"doc_root" json:"doc_root"`
	ReadBuffer  int    `yaml:"read_buffer" json:"read_buffer"`
	SleepDelay  string `yaml:"sleep_delay" json:"sleep_delay"`
	MaxConns    int    `yaml:"max_conns" json:"max_conns"`
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
}

// PoolConfig はワーカープールの設定
type PoolConfig struct {
	Workers int `yaml:"workers" json:"workers"`
}

// LogConfig はログ設定
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// Default は組み込みのデフォルト設定を返す
func Default() *FileConfig {
	return &FileConfig{
		Server: ServerConfig{
			Addr:       "127.0.0.1:7878",
			DocRoot:    "www",
			ReadBuffer: 1024,
			SleepDelay: "5s",
		},
		Pool: PoolConfig{
			Workers: 4,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadFile は設定ファイルを読み込み、デフォルト値の上に重ねる
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return config, nil
}

// LoadEnv は .env ファイルを環境変数に読み込む
// 存在しないファイルは無視し、既存の環境変数は上書きしない
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
		logger.Debug("", "loaded environment from %s", f)
	}
	return nil
}

// ApplyEnv は環境変数で設定を上書きする
func (f *FileConfig) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvAddr); ok && v != "" {
		f.Server.Addr = v
	}
	if v, ok := os.LookupEnv(EnvDocRoot); ok && v != "" {
		f.Server.DocRoot = v
	}
	if v, ok := os.LookupEnv(EnvSleepDelay); ok && v != "" {
		f.Server.SleepDelay = v
	}
	if v, ok := os.LookupEnv(EnvMetricsAddr); ok {
		f.Server.MetricsAddr = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		f.Log.Level = v
	}
	if v, ok := os.LookupEnv(EnvWorkers); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvWorkers, err)
		}
		f.Pool.Workers = n
	}
	if v, ok := os.LookupEnv(EnvMaxConns); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaxConns, err)
		}
		f.Server.MaxConns = n
	}
	return nil
}

// Validate は設定を検証する
func (f *FileConfig) Validate() error {
	if f.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}

	if f.Pool.Workers < 1 {
		return fmt.Errorf("pool.workers must be at least 1")
	}

	if f.Server.ReadBuffer < minReadBuffer {
		return fmt.Errorf("server.read_buffer must be at least %d", minReadBuffer)
	}

	if f.Server.MaxConns < 0 {
		return fmt.Errorf("server.max_conns must be non-negative")
	}

	if f.Server.SleepDelay != "" {
		d, err := time.ParseDuration(f.Server.SleepDelay)
		if err != nil {
			return fmt.Errorf("invalid server.sleep_delay: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("server.sleep_delay must be non-negative")
		}
	}

	if _, err := logger.ParseLevel(f.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}

	return nil
}

// SleepDuration は sleep_delay を解析して返す（未設定なら 0）
func (f *FileConfig) SleepDuration() time.Duration {
	if f.Server.SleepDelay == "" {
		return 0
	}
	d, err := time.ParseDuration(f.Server.SleepDelay)
	if err != nil {
		return 0
	}
	return d
}

// LogLevel はログレベルを返す
func (f *FileConfig) LogLevel() logger.Level {
	level, _ := logger.ParseLevel(f.Log.Level)
	return level
}
