// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for parley.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.parley/config.toml
//   - ~/.parley/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/parley-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete parley configuration.
type Config struct {
	// Version is the config schema version.
	Version string `toml:"version" json:"version"`

	// Storage configuration
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Auth configuration
	Auth AuthConfig `toml:"auth" json:"auth"`

	// Responder configuration
	Responder ResponderConfig `toml:"responder" json:"responder"`

	// Chat behavior configuration
	Chat ChatConfig `toml:"chat" json:"chat"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`

	// Log configuration
	Log LogConfig `toml:"log" json:"log"`
}

// StorageConfig contains chat persistence configuration.
type StorageConfig struct {
	// Path is the SQLite database file (empty = ~/.parley/chats.db)
	Path string `toml:"path" json:"path"`
	// BusyTimeoutMS is the SQLite busy timeout in milliseconds
	BusyTimeoutMS int `toml:"busy_timeout_ms" json:"busy_timeout_ms"`
}

// AuthConfig contains local account and session configuration.
type AuthConfig struct {
	// Dir is where accounts and the session token live (empty = ~/.parley/auth)
	Dir string `toml:"dir" json:"dir"`
	// SessionTTLHours is how long a login stays valid (0 = never expires)
	SessionTTLHours int `toml:"session_ttl_hours" json:"session_ttl_hours"`
	// TOTPRequired requires every account to enroll a TOTP second factor
	TOTPRequired bool `toml:"totp_required" json:"totp_required"`
}

// ResponderConfig selects and tunes the assistant reply backend.
type ResponderConfig struct {
	// Mode is the reply backend: "canned" or "ollama"
	Mode string `toml:"mode" json:"mode"`
	// CannedDelayMS is the canned responder's simulated thinking time
	CannedDelayMS int `toml:"canned_delay_ms" json:"canned_delay_ms"`
	// OllamaURL is the Ollama server URL
	// Note: Uses explicit IPv4 address instead of localhost to avoid IPv6
	// resolution issues on Windows
	OllamaURL string `toml:"ollama_url" json:"ollama_url"`
	// OllamaModel is the model to chat with
	OllamaModel string `toml:"ollama_model" json:"ollama_model"`
	// TimeoutSecs bounds one reply round-trip
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// ChatConfig contains session behavior configuration.
type ChatConfig struct {
	// SendsPerMinute caps the send rate (0 = unlimited)
	SendsPerMinute int `toml:"sends_per_minute" json:"sends_per_minute"`
	// IdleTimeoutSecs signs the user out after this much inactivity (0 = disabled)
	IdleTimeoutSecs int `toml:"idle_timeout_secs" json:"idle_timeout_secs"`
	// IdleWarningSecs is how long before sign-out to warn
	IdleWarningSecs int `toml:"idle_warning_secs" json:"idle_warning_secs"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme" json:"theme"`
	// CompactMode uses a more compact layout
	CompactMode bool `toml:"compact_mode" json:"compact_mode"`
	// ShowTimestamps renders message timestamps in the transcript
	ShowTimestamps bool `toml:"show_timestamps" json:"show_timestamps"`
	// MarkdownRendering renders assistant replies as markdown
	MarkdownRendering bool `toml:"markdown_rendering" json:"markdown_rendering"`
}

// LogConfig contains log file configuration.
type LogConfig struct {
	// Enabled controls whether the log file is written at all
	Enabled bool `toml:"enabled" json:"enabled"`
	// Path is the log file (empty = ~/.parley/logs/parley.log)
	Path string `toml:"path" json:"path"`
	// Level is the minimum level: "debug", "info", "warn", "error"
	Level string `toml:"level" json:"level"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Storage: StorageConfig{
			Path:          "",
			BusyTimeoutMS: 5000,
		},

		Auth: AuthConfig{
			Dir:             "",
			SessionTTLHours: 0, // local sessions do not expire by default
			TOTPRequired:    false,
		},

		Responder: ResponderConfig{
			Mode:          "canned",
			CannedDelayMS: 1000,
			OllamaURL:     "http://127.0.0.1:11434",
			OllamaModel:   "llama3.2",
			TimeoutSecs:   120,
		},

		Chat: ChatConfig{
			SendsPerMinute:  0, // unlimited
			IdleTimeoutSecs: 0, // watchdog disabled
			IdleWarningSecs: 120,
		},

		UI: UIConfig{
			Theme:             "dark",
			CompactMode:       false,
			ShowTimestamps:    false,
			MarkdownRendering: true,
		},

		Log: LogConfig{
			Enabled: true,
			Path:    "",
			Level:   "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the parley configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".parley"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only).
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}

	return nil
}

// DatabasePath resolves the SQLite path, applying the default when unset.
func (c *Config) DatabasePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "chats.db"), nil
}

// AuthDir resolves the auth state directory, applying the default when unset.
func (c *Config) AuthDir() (string, error) {
	if c.Auth.Dir != "" {
		return c.Auth.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "auth"), nil
}

// LogPath resolves the log file path, applying the default when unset.
func (c *Config) LogPath() (string, error) {
	if c.Log.Path != "" {
		return c.Log.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs", "parley.log"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	// Try TOML first
	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				return finishLoad(cfg)
			}
		}
	}

	// Try JSON as fallback
	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				return finishLoad(cfg)
			}
		}
	}

	// Defaults (with any load error for informational purposes)
	cfg, err = finishLoad(cfg)
	if err != nil {
		return nil, err
	}
	return cfg, loadErr
}

// finishLoad applies env overrides, migration, defaults and validation.
func finishLoad(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.Migrate()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		// Permissions might not be fixable on all systems.
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
// SECURITY: Checks and fixes file permissions on load.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finishLoad(cfg)
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// SECURITY: Ensure permissions are correct even if file already existed
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# parley configuration file")
	fmt.Fprintln(file, "# Generated by parley - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// SaveJSON saves the configuration to a JSON file.
// RELIABILITY: Atomic write with fsync prevents data loss on crash.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// SECURITY: Write with restrictive permissions (0600 = owner read/write only)
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// Responder mode
	validModes := map[string]bool{"canned": true, "ollama": true}
	if !validModes[strings.ToLower(c.Responder.Mode)] {
		errs = append(errs, ValidationError{
			Field:   "responder.mode",
			Message: fmt.Sprintf("invalid mode '%s', must be one of: canned, ollama", c.Responder.Mode),
		})
	}

	if c.Responder.CannedDelayMS < 0 {
		errs = append(errs, ValidationError{
			Field:   "responder.canned_delay_ms",
			Message: "must be non-negative",
		})
	}

	if c.Responder.OllamaURL != "" {
		if _, err := url.Parse(c.Responder.OllamaURL); err != nil {
			errs = append(errs, ValidationError{
				Field:   "responder.ollama_url",
				Message: fmt.Sprintf("invalid URL: %v", err),
			})
		}
	}

	if c.Responder.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "responder.timeout_secs",
			Message: "must be non-negative",
		})
	}

	// Auth
	if c.Auth.SessionTTLHours < 0 || c.Auth.SessionTTLHours > 720 {
		errs = append(errs, ValidationError{
			Field:   "auth.session_ttl_hours",
			Message: fmt.Sprintf("must be 0-720, got %d", c.Auth.SessionTTLHours),
		})
	}

	// Chat
	if c.Chat.SendsPerMinute < 0 {
		errs = append(errs, ValidationError{
			Field:   "chat.sends_per_minute",
			Message: "must be non-negative",
		})
	}
	// An idle timeout below a minute makes the watchdog fire mid-typing.
	if c.Chat.IdleTimeoutSecs != 0 && c.Chat.IdleTimeoutSecs < 60 {
		errs = append(errs, ValidationError{
			Field:   "chat.idle_timeout_secs",
			Message: fmt.Sprintf("must be 0 (disabled) or at least 60, got %d", c.Chat.IdleTimeoutSecs),
		})
	}

	// UI theme
	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	// Log level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults sets default values for any missing or zero-value fields.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}

	if c.Storage.BusyTimeoutMS == 0 {
		c.Storage.BusyTimeoutMS = defaults.Storage.BusyTimeoutMS
	}

	if c.Responder.Mode == "" {
		c.Responder.Mode = defaults.Responder.Mode
	}
	if c.Responder.OllamaURL == "" {
		c.Responder.OllamaURL = defaults.Responder.OllamaURL
	}
	if c.Responder.OllamaModel == "" {
		c.Responder.OllamaModel = defaults.Responder.OllamaModel
	}
	if c.Responder.TimeoutSecs == 0 {
		c.Responder.TimeoutSecs = defaults.Responder.TimeoutSecs
	}

	if c.Chat.IdleWarningSecs == 0 {
		c.Chat.IdleWarningSecs = defaults.Chat.IdleWarningSecs
	}

	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
}

// Migrate handles migration from old configuration formats.
func (c *Config) Migrate() {
	// "simulated" was the responder mode name before the 1.0 rename.
	if strings.ToLower(c.Responder.Mode) == "simulated" {
		c.Responder.Mode = "canned"
	}

	c.Responder.Mode = strings.ToLower(c.Responder.Mode)
	c.UI.Theme = strings.ToLower(c.UI.Theme)
	c.Log.Level = strings.ToLower(c.Log.Level)
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - PARLEY_DB: overrides storage.path
//   - PARLEY_RESPONDER: overrides responder.mode
//   - PARLEY_OLLAMA_URL: overrides responder.ollama_url
//   - PARLEY_MODEL: overrides responder.ollama_model
//   - PARLEY_THEME: overrides ui.theme
//   - PARLEY_LOG_LEVEL: overrides log.level
//   - PARLEY_NO_LOG: set to "1" or "true" to disable the log file
func (c *Config) ApplyEnvOverrides() {
	if db := os.Getenv("PARLEY_DB"); db != "" {
		c.Storage.Path = db
	}

	if mode := os.Getenv("PARLEY_RESPONDER"); mode != "" {
		c.Responder.Mode = mode
	}

	if ollamaURL := os.Getenv("PARLEY_OLLAMA_URL"); ollamaURL != "" {
		c.Responder.OllamaURL = ollamaURL
	}

	if model := os.Getenv("PARLEY_MODEL"); model != "" {
		c.Responder.OllamaModel = model
	}

	if theme := os.Getenv("PARLEY_THEME"); theme != "" {
		c.UI.Theme = theme
	}

	if level := os.Getenv("PARLEY_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}

	if noLog := os.Getenv("PARLEY_NO_LOG"); noLog != "" {
		c.Log.Enabled = !(noLog == "1" || strings.ToLower(noLog) == "true")
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "responder.mode").
func (c *Config) Get(key string) (interface{}, error) {
	parts := strings.Split(key, ".")
	if len(parts) == 0 {
		return nil, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})

		if !field.IsValid() {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			return field.Interface(), nil
		}

		if field.Kind() == reflect.Struct {
			v = field
		} else {
			return nil, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
	}

	return nil, fmt.Errorf("invalid key: %s", key)
}

// Set sets a configuration value using dot notation (e.g., "responder.mode").
func (c *Config) Set(key string, value interface{}) error {
	parts := strings.Split(key, ".")
	if len(parts) == 0 {
		return errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})

		if !field.IsValid() {
			return fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			if !field.CanSet() {
				return fmt.Errorf("cannot set field: %s", key)
			}
			return setFieldValue(field, value)
		}

		if field.Kind() == reflect.Struct {
			v = field
		} else {
			return fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
	}

	return fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go
// field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}

	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type
// conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal := strVal == "1" || strings.ToLower(strVal) == "true" || strings.ToLower(strVal) == "yes"
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"storage.path",
		"storage.busy_timeout_ms",
		"auth.dir",
		"auth.session_ttl_hours",
		"auth.totp_required",
		"responder.mode",
		"responder.canned_delay_ms",
		"responder.ollama_url",
		"responder.ollama_model",
		"responder.timeout_secs",
		"chat.sends_per_minute",
		"chat.idle_timeout_secs",
		"chat.idle_warning_secs",
		"ui.theme",
		"ui.compact_mode",
		"ui.show_timestamps",
		"ui.markdown_rendering",
		"log.enabled",
		"log.path",
		"log.level",
	}
}

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns a string representation of the config for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			// Use defaults rather than failing startup.
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
