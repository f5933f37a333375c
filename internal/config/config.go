// Package config provides the configuration schema, loader, hot-reload
// watcher, and role-graph/thesaurus cache state for kgsearchd.
package config

import "github.com/terraphim/kgsearchd/internal/types"

// Config is the root configuration structure for kgsearchd.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig          `yaml:"server"`
	DefaultRole string                `yaml:"default_role"`
	Roles       map[string]types.Role `yaml:"roles"`
	Persistence PersistenceConfig     `yaml:"persistence"`
	Summarizer  SummarizerConfig      `yaml:"summarizer"`
}

// ServerConfig holds network and logging settings for the kgsearchd server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// LogLevel names the structured-logging verbosity the server runs at.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a known log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// PersistenceConfig configures the tiered [persistence.Store] profiles.
// Any field left at its zero value disables that backend.
type PersistenceConfig struct {
	// FSDir, when non-empty, enables a filesystem-backed profile rooted here.
	FSDir string `yaml:"fs_dir,omitempty"`

	// BoltPath, when non-empty, enables a bbolt-backed profile at this file path.
	BoltPath string `yaml:"bolt_path,omitempty"`

	// S3 enables an S3-compatible object-store profile when Bucket is set.
	S3 S3Config `yaml:"s3,omitempty"`
}

// S3Config configures the MinIO/S3-compatible persistence backend.
type S3Config struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	UseSSL    bool   `yaml:"use_ssl,omitempty"`
}

// SummarizerConfig configures the optional post-scoring summarization hook.
type SummarizerConfig struct {
	// Provider selects the registered summarizer implementation (e.g. "openai").
	// Empty disables the hook entirely.
	Provider string `yaml:"provider,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	Model    string `yaml:"model,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
}
