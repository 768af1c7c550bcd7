package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	ScratchDir string `toml:"scratch_dir"`
	LogDir     string `toml:"log_dir"`
}

// Store selects and configures the task record backend.
type Store struct {
	Backend       string `toml:"backend"` // "redis" or "sqlite"
	SQLitePath    string `toml:"sqlite_path"`
	RetentionDays int    `toml:"retention_days"`
}

// Redis contains connection settings shared by the queue broker and the
// Redis task record store.
type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// Queue contains worker runtime settings.
type Queue struct {
	Name                   string `toml:"name"`
	Concurrency            int    `toml:"concurrency"`
	MaxRetries             int    `toml:"max_retries"`
	TaskTimeoutSeconds     int    `toml:"task_timeout_seconds"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds"`
}

// Download contains settings for the retrieval strategy chain.
type Download struct {
	SocketTimeoutSeconds int    `toml:"socket_timeout_seconds"`
	Retries              int    `toml:"retries"`
	FragmentRetries      int    `toml:"fragment_retries"`
	FileAccessRetries    int    `toml:"file_access_retries"`
	MaxHeight            int    `toml:"max_height"`
	MaxFilesize          string `toml:"max_filesize"`
	RateLimit            string `toml:"rate_limit"`
	ChainRounds          int    `toml:"chain_rounds"`
	BackoffBaseSeconds   int    `toml:"backoff_base_seconds"`
	BackoffCapSeconds    int    `toml:"backoff_cap_seconds"`
	UserAgent            string `toml:"user_agent"`
}

// Browser contains settings for the headless-browser retrieval strategy.
type Browser struct {
	Enabled                bool `toml:"enabled"`
	PageLoadTimeoutSeconds int  `toml:"page_load_timeout_seconds"`
	SettleSeconds          int  `toml:"settle_seconds"`
	NetworkSettleSeconds   int  `toml:"network_settle_seconds"`
}

// ObjectStore contains settings for authenticated object-storage fetches.
type ObjectStore struct {
	HostSuffix string `toml:"host_suffix"`
	Endpoint   string `toml:"endpoint"`
	AccessKey  string `toml:"access_key"`
	SecretKey  string `toml:"secret_key"`
	Region     string `toml:"region"`
	UseSSL     bool   `toml:"use_ssl"`
}

// Whisper contains transcription settings.
type Whisper struct {
	Model       string `toml:"model"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
	Language    string `toml:"language"`
}

// LLM contains connection settings for the action-point extraction service.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Webhook contains settings for terminal callback notifications.
type Webhook struct {
	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Scribe.
//
// Configuration sections by subsystem:
//   - Paths: scratch and log directories
//   - Store: task record backend selection (redis/sqlite)
//   - Redis: broker and record store connection
//   - Queue: worker concurrency, retries, and timeouts
//   - Download: retrieval chain limits and backoff
//   - Browser: headless-browser strategy settings
//   - ObjectStore: signed object-storage fetches
//   - Whisper: transcription model settings
//   - LLM: action-point extraction service
//   - Webhook: terminal callback delivery
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Store       Store       `toml:"store"`
	Redis       Redis       `toml:"redis"`
	Queue       Queue       `toml:"queue"`
	Download    Download    `toml:"download"`
	Browser     Browser     `toml:"browser"`
	ObjectStore ObjectStore `toml:"objectstore"`
	Whisper     Whisper     `toml:"whisper"`
	LLM         LLM         `toml:"llm"`
	Webhook     Webhook     `toml:"webhook"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scribe/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/scribe/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scribe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ScratchDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Store.Backend == StoreBackendSQLite {
		if dir := filepath.Dir(c.Store.SQLitePath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create store directory %q: %w", dir, err)
			}
		}
	}
	return nil
}

// YtdlpBinary returns the yt-dlp executable name.
func (c *Config) YtdlpBinary() string {
	return "yt-dlp"
}

// FFmpegBinary returns the ffmpeg executable name used for audio extraction.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media validation.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
