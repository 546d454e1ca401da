// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for the chat
// client.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.gaab-chat/config.toml
//   - ~/.gaab-chat/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete chat client configuration.
type Config struct {
	// Backend endpoints and use-case identity
	Backend BackendConfig `toml:"backend" json:"backend"`

	// Auth token acquisition
	Auth AuthConfig `toml:"auth" json:"auth"`

	// Attachment validation limits
	Attachments AttachmentConfig `toml:"attachments" json:"attachments"`

	// Feedback validation limits
	Feedback FeedbackConfig `toml:"feedback" json:"feedback"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`
}

// BackendConfig identifies the chat backend.
type BackendConfig struct {
	// SocketEndpoint is the WebSocket endpoint of the chat backend
	// (ws:// or wss://). The access token is appended as an
	// Authorization query parameter on every connection attempt.
	SocketEndpoint string `toml:"socket_endpoint" json:"socket_endpoint"`
	// RestEndpoint is the base URL of the REST collaborators
	// (use-case details, feedback, file transfer).
	RestEndpoint string `toml:"rest_endpoint" json:"rest_endpoint"`
	// UseCaseID scopes the deployment this client talks to.
	UseCaseID string `toml:"use_case_id" json:"use_case_id"`
}

// AuthConfig selects how the access token is obtained.
type AuthConfig struct {
	// TokenEnv is the environment variable holding the access token.
	TokenEnv string `toml:"token_env" json:"token_env"`
	// TokenFile is a file maintained by an external identity agent.
	// Takes precedence over TokenEnv when set.
	TokenFile string `toml:"token_file" json:"token_file"`
	// TokenRefreshSecs is how long a file-based token may be cached.
	TokenRefreshSecs int `toml:"token_refresh_secs" json:"token_refresh_secs"`
}

// AttachmentConfig contains file attachment limits, enforced client-side
// before any transfer is attempted.
type AttachmentConfig struct {
	// MaxFileSizeBytes is the per-file size cap.
	MaxFileSizeBytes int64 `toml:"max_file_size_bytes" json:"max_file_size_bytes"`
	// MaxFileCount is the maximum number of attachments per message.
	MaxFileCount int `toml:"max_file_count" json:"max_file_count"`
	// AllowedContentTypes lists acceptable MIME types. Empty = allow all.
	AllowedContentTypes []string `toml:"allowed_content_types" json:"allowed_content_types"`
	// TransferRetries bounds upload/delete retry attempts per file.
	TransferRetries int `toml:"transfer_retries" json:"transfer_retries"`
}

// FeedbackConfig contains feedback submission limits.
type FeedbackConfig struct {
	// MaxCommentLength caps the optional feedback comment.
	MaxCommentLength int `toml:"max_comment_length" json:"max_comment_length"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme" json:"theme"`
	// RenderMarkdown renders finalized assistant messages as markdown.
	RenderMarkdown bool `toml:"render_markdown" json:"render_markdown"`
	// ShowSources displays retrieval citations under assistant messages.
	ShowSources bool `toml:"show_sources" json:"show_sources"`
	// ShowThinking displays reasoning-trace summaries when present.
	ShowThinking bool `toml:"show_thinking" json:"show_thinking"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			SocketEndpoint: "",
			RestEndpoint:   "",
			UseCaseID:      "",
		},
		Auth: AuthConfig{
			TokenEnv:         "GAAB_CHAT_TOKEN",
			TokenRefreshSecs: 60,
		},
		Attachments: AttachmentConfig{
			MaxFileSizeBytes: 4 * 1024 * 1024,
			MaxFileCount:     5,
			AllowedContentTypes: []string{
				"image/png", "image/jpeg", "image/gif", "image/webp",
				"text/plain", "text/csv", "application/pdf",
			},
			TransferRetries: 3,
		},
		Feedback: FeedbackConfig{
			MaxCommentLength: 500,
		},
		UI: UIConfig{
			Theme:          "auto",
			RenderMarkdown: true,
			ShowSources:    true,
			ShowThinking:   true,
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// AppDir returns the application data directory (~/.gaab-chat).
func AppDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".gaab-chat"), nil
}

// ConfigPathTOML returns the TOML config file path.
func ConfigPathTOML() (string, error) {
	dir, err := AppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the JSON config file path.
func ConfigPathJSON() (string, error) {
	dir, err := AppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads configuration from disk, preferring TOML over JSON, and falls
// back to defaults when no file exists. Environment overrides are applied
// after the file, and the result is validated.
func Load() (*Config, error) {
	cfg := Default()

	if path, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, err
			}
			return finishLoad(cfg)
		}
	}

	if path, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadJSON(cfg, path); err != nil {
				return nil, err
			}
			return finishLoad(cfg)
		}
	}

	return finishLoad(cfg)
}

// LoadFromPath loads configuration from a specific file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	var err error
	switch {
	case strings.HasSuffix(path, ".toml"):
		err = LoadTOML(cfg, path)
	case strings.HasSuffix(path, ".json"):
		err = LoadJSON(cfg, path)
	default:
		err = fmt.Errorf("unsupported config format: %s", path)
	}
	if err != nil {
		return nil, err
	}
	return finishLoad(cfg)
}

func finishLoad(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies GAAB_CHAT_* environment variables on top of the
// loaded configuration.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("GAAB_CHAT_SOCKET_ENDPOINT"); v != "" {
		c.Backend.SocketEndpoint = v
	}
	if v := os.Getenv("GAAB_CHAT_REST_ENDPOINT"); v != "" {
		c.Backend.RestEndpoint = v
	}
	if v := os.Getenv("GAAB_CHAT_USE_CASE_ID"); v != "" {
		c.Backend.UseCaseID = v
	}
	if v := os.Getenv("GAAB_CHAT_TOKEN_FILE"); v != "" {
		c.Auth.TokenFile = v
	}
	if v := os.Getenv("GAAB_CHAT_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("GAAB_CHAT_MAX_FILE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Attachments.MaxFileSizeBytes = n
		}
	}
}

// =============================================================================
// DEFAULTS AND VALIDATION
// =============================================================================

// SetDefaults fills zero values that a partial config file left unset.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Auth.TokenEnv == "" {
		c.Auth.TokenEnv = d.Auth.TokenEnv
	}
	if c.Auth.TokenRefreshSecs <= 0 {
		c.Auth.TokenRefreshSecs = d.Auth.TokenRefreshSecs
	}
	if c.Attachments.MaxFileSizeBytes <= 0 {
		c.Attachments.MaxFileSizeBytes = d.Attachments.MaxFileSizeBytes
	}
	if c.Attachments.MaxFileCount <= 0 {
		c.Attachments.MaxFileCount = d.Attachments.MaxFileCount
	}
	if c.Attachments.TransferRetries <= 0 {
		c.Attachments.TransferRetries = d.Attachments.TransferRetries
	}
	if c.Feedback.MaxCommentLength <= 0 {
		c.Feedback.MaxCommentLength = d.Feedback.MaxCommentLength
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Backend.SocketEndpoint != "" {
		u, err := url.Parse(c.Backend.SocketEndpoint)
		if err != nil {
			return fmt.Errorf("backend.socket_endpoint is not a valid URL: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("backend.socket_endpoint must use ws:// or wss://, got %q", u.Scheme)
		}
	}

	if c.Backend.RestEndpoint != "" {
		u, err := url.Parse(c.Backend.RestEndpoint)
		if err != nil {
			return fmt.Errorf("backend.rest_endpoint is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("backend.rest_endpoint must use http:// or https://, got %q", u.Scheme)
		}
	}

	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		return fmt.Errorf("ui.theme must be dark, light, or auto, got %q", c.UI.Theme)
	}

	return nil
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the configuration to the TOML config path.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to a TOML file.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
