// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

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

	"github.com/jeranaias/rigchat/internal/secret"
	"github.com/jeranaias/rigchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete rigchat configuration.
type Config struct {
	// General settings
	Version string `toml:"version" json:"version"`
	Debug   bool   `toml:"debug" json:"debug"`
	// LogFile receives debug records when set (empty = no file sink)
	LogFile string `toml:"log_file" json:"log_file"`

	// Server endpoint configuration
	Server ServerConfig `toml:"server" json:"server"`

	// Chat request parameters
	Chat ChatConfig `toml:"chat" json:"chat"`

	// Compatibility retry configuration
	Retry RetryConfig `toml:"retry" json:"retry"`

	// Conversation storage configuration
	Storage StorageConfig `toml:"storage" json:"storage"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`
}

// ServerConfig contains endpoint and transport configuration.
type ServerConfig struct {
	// BaseURL is the chat endpoint. Empty, ".", or a leading-"/" path
	// resolve against LocalURL; absolute http(s) URLs are treated as
	// external APIs and get the standard-field request filter.
	BaseURL string `toml:"base_url" json:"base_url"`
	// LocalURL is the local server origin used when BaseURL is relative
	LocalURL string `toml:"local_url" json:"local_url"`
	// APIKey is sent as a Bearer token. May be stored encrypted (ENC: prefix).
	APIKey string `toml:"api_key" json:"api_key"`
	// TimeoutSecs bounds a whole request including streaming (0 = no limit)
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// RateLimitRPS throttles outbound requests client-side (0 = disabled)
	RateLimitRPS float64 `toml:"rate_limit_rps" json:"rate_limit_rps"`
}

// ChatConfig contains the model and sampling parameters attached to every
// chat request. Pointer fields distinguish "unset" (omitted from the wire)
// from an explicit zero.
type ChatConfig struct {
	// Model requested from the server (empty = server default)
	Model string `toml:"model" json:"model"`
	// SystemMessage is prepended to every conversation when non-empty
	SystemMessage string `toml:"system_message" json:"system_message"`
	// ModelSelectorEnabled includes the model field in requests
	ModelSelectorEnabled bool `toml:"model_selector_enabled" json:"model_selector_enabled"`

	Temperature      *float64 `toml:"temperature" json:"temperature,omitempty"`
	TopP             *float64 `toml:"top_p" json:"top_p,omitempty"`
	TopK             *int     `toml:"top_k" json:"top_k,omitempty"`
	MinP             *float64 `toml:"min_p" json:"min_p,omitempty"`
	PresencePenalty  *float64 `toml:"presence_penalty" json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `toml:"frequency_penalty" json:"frequency_penalty,omitempty"`

	// MaxTokens caps generation. 0 = unset, -1 = unlimited (local servers
	// only; stripped for external APIs).
	MaxTokens int `toml:"max_tokens" json:"max_tokens"`
	// MaxCompletionTokens is the newer name some providers require.
	// Used when MaxTokens is unset.
	MaxCompletionTokens int `toml:"max_completion_tokens" json:"max_completion_tokens"`

	// ReasoningEffort is sent as-is; "" and "none" mean omit the field
	ReasoningEffort string `toml:"reasoning_effort" json:"reasoning_effort"`
	// DisableReasoningFormat passes <think> tags through as visible text
	DisableReasoningFormat bool `toml:"disable_reasoning_format" json:"disable_reasoning_format"`

	// Stop sequences (omitted when empty)
	Stop []string `toml:"stop" json:"stop,omitempty"`

	// CustomJSON is a raw JSON object merged over the built request body.
	// Fields here win over everything the builder produced. Invalid JSON
	// is logged and ignored at request time.
	CustomJSON string `toml:"custom_json" json:"custom_json"`
}

// RetryConfig drives the one-shot compatibility retry on HTTP 400.
type RetryConfig struct {
	// CompatRules are checked against 400 error bodies. All matching
	// rules apply their fixes to the request before the single retry.
	CompatRules []CompatRule `toml:"compat_rules" json:"compat_rules"`
}

// CompatRule describes one known provider incompatibility: when a 400 body
// contains any Match substring and the request carried an affected field,
// the fix is applied and the request retried once.
type CompatRule struct {
	// Match substrings, case-insensitive, any triggers the rule
	Match []string `toml:"match" json:"match"`
	// DropFields are removed from the retried request body
	DropFields []string `toml:"drop_fields" json:"drop_fields,omitempty"`
	// RenameFields maps old field name to new field name
	RenameFields map[string]string `toml:"rename_fields" json:"rename_fields,omitempty"`
}

// StorageConfig contains conversation persistence configuration.
type StorageConfig struct {
	// DataDir overrides the default ~/.rigchat data directory
	DataDir string `toml:"data_dir" json:"data_dir"`
	// AutoSaveSecs is the idle interval before dirty conversations are
	// flushed to disk (0 = save only on exit)
	AutoSaveSecs int `toml:"auto_save_secs" json:"auto_save_secs"`
	// IndexEnabled maintains the full-text search index
	IndexEnabled bool `toml:"index_enabled" json:"index_enabled"`
}

// UIConfig groups the transcript display switches.
type UIConfig struct {
	Theme string `toml:"theme" json:"theme"`
	// ShowTimings displays tokens/sec statistics after each response
	ShowTimings bool `toml:"show_timings" json:"show_timings"`
	// ShowTokens displays the running context token estimate
	ShowTokens bool `toml:"show_tokens" json:"show_tokens"`
	// MarkdownEnabled renders assistant messages through glamour
	MarkdownEnabled bool `toml:"markdown_enabled" json:"markdown_enabled"`
	// ShowReasoning expands reasoning (think) blocks in the transcript;
	// when false they are folded to a one-line summary
	ShowReasoning bool `toml:"show_reasoning" json:"show_reasoning"`
	// CompactMode reduces message padding
	CompactMode bool `toml:"compact_mode" json:"compact_mode"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

const defaultLocalURL = "http://127.0.0.1:8080"

// Default returns the configuration a fresh install runs with.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Server: ServerConfig{
			LocalURL: defaultLocalURL,
			// Streaming requests are bounded by context, not wall clock
			TimeoutSecs: 0,
		},

		Chat: ChatConfig{
			ModelSelectorEnabled: true,
		},

		Retry: RetryConfig{
			CompatRules: DefaultCompatRules(),
		},

		Storage: StorageConfig{
			AutoSaveSecs: 30,
			IndexEnabled: true,
		},

		UI: UIConfig{
			Theme:           "dark",
			ShowTimings:     true,
			ShowTokens:      true,
			MarkdownEnabled: true,
		},
	}
}

// DefaultCompatRules returns the built-in provider quirks: servers that
// reject reasoning_effort outright, and providers that demand
// max_completion_tokens in place of max_tokens.
func DefaultCompatRules() []CompatRule {
	return []CompatRule{
		{
			Match:      []string{"reasoning_effort", "reasoning is not enabled"},
			DropFields: []string{"reasoning_effort"},
		},
		{
			Match:        []string{"max_completion_tokens"},
			RenameFields: map[string]string{"max_tokens": "max_completion_tokens"},
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the rigchat configuration directory (~/.rigchat).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".rigchat"), nil
}

func configPath(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ConfigPathTOML returns the path of the TOML config file.
func ConfigPathTOML() (string, error) { return configPath("config.toml") }

// ConfigPathJSON returns the path of the JSON config file.
func ConfigPathJSON() (string, error) { return configPath("config.json") }

// EnsureConfigDir creates the config directory if it is missing.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// tightenPermissions chmods a config file to 0600. API keys live in these
// files, so group/world-readable modes get corrected on every load.
func tightenPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// ENDPOINT RESOLUTION
// =============================================================================

// ErrNotConfigured indicates an external endpoint with no API key. Callers
// branch on this to print a setup hint instead of a raw auth failure.
var ErrNotConfigured = errors.New("api key not configured")

// IsExternal reports whether BaseURL points at an external API. Absolute
// http(s) URLs are external; empty, ".", and leading-"/" paths resolve to
// the local server and are not.
func (s ServerConfig) IsExternal() bool {
	base := strings.TrimSpace(s.BaseURL)
	return strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://")
}

// CheckReady reports whether the config can make requests. Local endpoints
// need nothing; external endpoints require an API key.
func (c *Config) CheckReady() error {
	if c.Server.IsExternal() && strings.TrimSpace(c.Server.APIKey) == "" {
		return fmt.Errorf("%s: %w", c.Server.Resolve(), ErrNotConfigured)
	}
	return nil
}

// Resolve returns the effective server origin with no trailing slash.
// Relative BaseURL values resolve against LocalURL.
func (s ServerConfig) Resolve() string {
	base := strings.TrimSpace(s.BaseURL)
	local := strings.TrimRight(strings.TrimSpace(s.LocalURL), "/")
	if local == "" {
		local = defaultLocalURL
	}

	switch {
	case base == "" || base == ".":
		return local
	case strings.HasPrefix(base, "/"):
		return local + strings.TrimRight(base, "/")
	default:
		return strings.TrimRight(base, "/")
	}
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the config file, trying TOML then JSON, and falls back to
// defaults when neither exists. Environment overrides apply last. A decode
// failure still yields a usable default config alongside the error.
func Load() (*Config, error) {
	cfg := Default()

	candidates := []struct {
		pathFn func() (string, error)
		decode func(*Config, string) error
		label  string
	}{
		{ConfigPathTOML, LoadTOML, "TOML"},
		{ConfigPathJSON, LoadJSON, "JSON"},
	}

	var loadErr error
	for _, cand := range candidates {
		path, err := cand.pathFn()
		if err != nil {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := cand.decode(cfg, path); err != nil {
			loadErr = fmt.Errorf("failed to load %s config: %w", cand.label, err)
			continue
		}
		return finishLoad(cfg)
	}

	cfg, err := finishLoad(cfg)
	if err != nil {
		return nil, err
	}
	return cfg, loadErr
}

// finishLoad applies env overrides, migration, defaults, and validation in
// the order every load path shares.
func finishLoad(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.Migrate()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// warnLoosePermissions reports a permission-fix failure without aborting the
// load; not every filesystem supports chmod.
func warnLoosePermissions(path string, err error) {
	fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
}

// LoadTOML decodes a TOML config file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := tightenPermissions(path); err != nil {
		warnLoosePermissions(path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON config file over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := tightenPermissions(path); err != nil {
		warnLoosePermissions(path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from an explicit path, picking the
// decoder from the file extension.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	decode := LoadTOML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		decode = LoadJSON
	}
	if err := decode(cfg, path); err != nil {
		return nil, err
	}
	return finishLoad(cfg)
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration as TOML, atomically and mode 0600.
func SaveTOML(cfg *Config, path string) error {
	var buf strings.Builder
	buf.WriteString("# rigchat configuration file\n")
	buf.WriteString("# Generated by rigchat - edit with care\n")
	buf.WriteString("#\n")
	buf.WriteString("# Documentation: https://github.com/jeranaias/rigchat\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return writeConfigFile(path, []byte(buf.String()))
}

// SaveJSON writes the configuration as JSON, atomically and mode 0600.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return writeConfigFile(path, data)
}

func writeConfigFile(path string, data []byte) error {
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0755); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// MIGRATION AND DEFAULTS
// =============================================================================

// Migrate normalizes values written by older releases.
func (c *Config) Migrate() {
	// reasoning_effort was briefly documented in mixed case
	c.Chat.ReasoningEffort = strings.ToLower(strings.TrimSpace(c.Chat.ReasoningEffort))

	// Old configs wrote the endpoint with a trailing slash
	c.Server.BaseURL = strings.TrimSpace(c.Server.BaseURL)
	if c.Server.BaseURL != "/" {
		c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
	}
}

// SetDefaults fills fields that a hand-edited config may have blanked.
func (c *Config) SetDefaults() {
	if c.Server.LocalURL == "" {
		c.Server.LocalURL = defaultLocalURL
	}
	if c.UI.Theme == "" {
		c.UI.Theme = "dark"
	}
	if len(c.Retry.CompatRules) == 0 {
		c.Retry.CompatRules = DefaultCompatRules()
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is a single rejected configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidateErrors collects every rejected field from one Validate pass.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var b strings.Builder
	for i, err := range e {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *ValidateErrors) add(field, format string, args ...interface{}) {
	*e = append(*e, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks every field against its allowed range. All violations are
// reported together so a hand-edited config can be fixed in one pass.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// Base URL must be empty, ".", a leading-"/" path, or absolute http(s)
	base := c.Server.BaseURL
	switch {
	case base == "" || base == "." || strings.HasPrefix(base, "/"):
		// local forms, fine
	case strings.HasPrefix(base, "http://"), strings.HasPrefix(base, "https://"):
		if _, err := url.Parse(base); err != nil {
			errs.add("server.base_url", "invalid URL: %v", err)
		}
	default:
		errs.add("server.base_url", "must be empty, %q, a /path, or an http(s) URL, got %q", ".", base)
	}

	if u, err := url.Parse(c.Server.LocalURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs.add("server.local_url", "must be an absolute URL, got %q", c.Server.LocalURL)
	}

	if c.Server.TimeoutSecs < 0 {
		errs.add("server.timeout_secs", "must be >= 0")
	}
	if c.Server.RateLimitRPS < 0 {
		errs.add("server.rate_limit_rps", "must be >= 0")
	}

	if t := c.Chat.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs.add("chat.temperature", "must be in [0, 2], got %v", *t)
	}
	if p := c.Chat.TopP; p != nil && (*p <= 0 || *p > 1) {
		errs.add("chat.top_p", "must be in (0, 1], got %v", *p)
	}
	if k := c.Chat.TopK; k != nil && *k < 0 {
		errs.add("chat.top_k", "must be >= 0, got %v", *k)
	}
	if p := c.Chat.MinP; p != nil && (*p < 0 || *p > 1) {
		errs.add("chat.min_p", "must be in [0, 1], got %v", *p)
	}
	if p := c.Chat.PresencePenalty; p != nil && (*p < -2 || *p > 2) {
		errs.add("chat.presence_penalty", "must be in [-2, 2], got %v", *p)
	}
	if p := c.Chat.FrequencyPenalty; p != nil && (*p < -2 || *p > 2) {
		errs.add("chat.frequency_penalty", "must be in [-2, 2], got %v", *p)
	}

	if c.Chat.MaxTokens < -1 {
		errs.add("chat.max_tokens", "must be -1 (unlimited), 0 (unset), or positive")
	}
	if c.Chat.MaxCompletionTokens < 0 {
		errs.add("chat.max_completion_tokens", "must be >= 0")
	}

	switch c.Chat.ReasoningEffort {
	case "", "none", "minimal", "low", "medium", "high":
	default:
		errs.add("chat.reasoning_effort", "must be one of none, minimal, low, medium, high, got %q", c.Chat.ReasoningEffort)
	}

	if c.Storage.AutoSaveSecs < 0 || c.Storage.AutoSaveSecs > 3600 {
		errs.add("storage.auto_save_secs", "must be in [0, 3600]")
	}

	for i, rule := range c.Retry.CompatRules {
		if len(rule.Match) == 0 {
			errs.add(fmt.Sprintf("retry.compat_rules[%d].match", i), "must list at least one substring")
		}
		if len(rule.DropFields) == 0 && len(rule.RenameFields) == 0 {
			errs.add(fmt.Sprintf("retry.compat_rules[%d]", i), "must drop or rename at least one field")
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides lets RIGCHAT_* environment variables win over the file.
func (c *Config) ApplyEnvOverrides() {
	overrides := []struct {
		env string
		dst *string
	}{
		{"RIGCHAT_API_KEY", &c.Server.APIKey},
		{"RIGCHAT_BASE_URL", &c.Server.BaseURL},
		{"RIGCHAT_LOCAL_URL", &c.Server.LocalURL},
		{"RIGCHAT_MODEL", &c.Chat.Model},
		{"RIGCHAT_SYSTEM_MESSAGE", &c.Chat.SystemMessage},
		{"RIGCHAT_DATA_DIR", &c.Storage.DataDir},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}

	if v := os.Getenv("RIGCHAT_DEBUG"); v != "" {
		c.Debug = v == "1" || strings.EqualFold(v, "true")
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// fieldByPath walks dot-notation segments down the Config struct and returns
// the reflect.Value of the leaf field.
func (c *Config) fieldByPath(key string) (reflect.Value, error) {
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		if part == "" {
			return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
		}
		goName := goFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, goName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// Get retrieves a configuration value using dot notation (e.g., "chat.model").
// Nil pointer fields (unset sampling parameters) return nil.
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.fieldByPath(key)
	if err != nil {
		return nil, err
	}
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return nil, nil
		}
		field = field.Elem()
	}
	return field.Interface(), nil
}

// Set writes a configuration value using dot notation (e.g., "chat.model").
// String values are converted to the field's type; validation is the
// caller's job (run Validate after a batch of sets).
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.fieldByPath(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return assignField(field, value)
}

// goFieldName maps a snake_case or kebab-case key segment onto the Go field
// naming convention ("max_tokens" matches MaxTokens via EqualFold).
func goFieldName(segment string) string {
	var b strings.Builder
	upper := true
	for _, r := range segment {
		if r == '_' || r == '-' {
			upper = true
			continue
		}
		if upper {
			b.WriteString(strings.ToUpper(string(r)))
			upper = false
		} else {
			b.WriteString(strings.ToLower(string(r)))
		}
	}
	return b.String()
}

// assignField stores value into a struct field, converting strings to the
// field's type.
func assignField(field reflect.Value, value interface{}) error {
	// Pointer fields distinguish unset from zero: "unset" or an empty
	// string clears the field, anything else allocates and recurses.
	if field.Kind() == reflect.Ptr {
		if s, ok := value.(string); ok && (s == "" || strings.EqualFold(s, "unset")) {
			field.Set(reflect.Zero(field.Type()))
			return nil
		}
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return assignField(field.Elem(), value)
	}

	if s, ok := value.(string); ok {
		if done, err := assignFromString(field, s); done {
			return err
		}
	}

	val := reflect.ValueOf(value)
	switch {
	case val.Type().AssignableTo(field.Type()):
		field.Set(val)
	case val.Type().ConvertibleTo(field.Type()):
		field.Set(val.Convert(field.Type()))
	default:
		return fmt.Errorf("cannot assign %T to %s", value, field.Type())
	}
	return nil
}

// assignFromString parses s into the field's kind. done is false when the
// kind has no string conversion and the caller should try direct assignment.
func assignFromString(field reflect.Value, s string) (done bool, err error) {
	switch field.Kind() {
	case reflect.String:
		field.SetString(s)
		return true, nil

	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return true, fmt.Errorf("invalid integer value: %v", err)
		}
		field.SetInt(n)
		return true, nil

	case reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return true, fmt.Errorf("invalid float value: %v", err)
		}
		field.SetFloat(f)
		return true, nil

	case reflect.Bool:
		field.SetBool(s == "1" || strings.EqualFold(s, "true") || strings.EqualFold(s, "yes"))
		return true, nil

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return false, nil
		}
		if s == "" {
			field.Set(reflect.Zero(field.Type()))
			return true, nil
		}
		items := strings.Split(s, ",")
		for i := range items {
			items[i] = strings.TrimSpace(items[i])
		}
		field.Set(reflect.ValueOf(items))
		return true, nil
	}
	return false, nil
}

// GetAllKeys returns all user-settable configuration keys in dot notation.
// Compat rules are structured and only editable in the config file.
func GetAllKeys() []string {
	return []string{
		"version",
		"debug",
		"log_file",
		"server.base_url",
		"server.local_url",
		"server.api_key",
		"server.timeout_secs",
		"server.rate_limit_rps",
		"chat.model",
		"chat.system_message",
		"chat.model_selector_enabled",
		"chat.temperature",
		"chat.top_p",
		"chat.top_k",
		"chat.min_p",
		"chat.presence_penalty",
		"chat.frequency_penalty",
		"chat.max_tokens",
		"chat.max_completion_tokens",
		"chat.reasoning_effort",
		"chat.disable_reasoning_format",
		"chat.stop",
		"chat.custom_json",
		"storage.data_dir",
		"storage.auto_save_secs",
		"storage.index_enabled",
		"ui.theme",
		"ui.show_timings",
		"ui.show_tokens",
		"ui.markdown_enabled",
		"ui.show_reasoning",
		"ui.compact_mode",
	}
}

// =============================================================================
// SECRETS
// =============================================================================

// ResolveAPIKey decrypts an ENC:-prefixed API key in place using the vault.
// Plaintext keys pass through untouched.
func (c *Config) ResolveAPIKey(v *secret.Vault) error {
	if !secret.IsEncrypted(c.Server.APIKey) {
		return nil
	}
	plain, err := v.DecryptString(c.Server.APIKey)
	if err != nil {
		return fmt.Errorf("failed to decrypt api key: %w", err)
	}
	c.Server.APIKey = plain
	return nil
}

// =============================================================================
// CLONE AND STRING
// =============================================================================

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	clone := *c

	clonePtr(&clone.Chat.Temperature)
	clonePtr(&clone.Chat.TopP)
	clonePtr(&clone.Chat.TopK)
	clonePtr(&clone.Chat.MinP)
	clonePtr(&clone.Chat.PresencePenalty)
	clonePtr(&clone.Chat.FrequencyPenalty)
	if c.Chat.Stop != nil {
		clone.Chat.Stop = append([]string(nil), c.Chat.Stop...)
	}

	if c.Retry.CompatRules != nil {
		clone.Retry.CompatRules = make([]CompatRule, len(c.Retry.CompatRules))
		for i, rule := range c.Retry.CompatRules {
			cloned := CompatRule{
				Match:      append([]string(nil), rule.Match...),
				DropFields: append([]string(nil), rule.DropFields...),
			}
			if rule.RenameFields != nil {
				cloned.RenameFields = make(map[string]string, len(rule.RenameFields))
				for k, v := range rule.RenameFields {
					cloned.RenameFields[k] = v
				}
			}
			clone.Retry.CompatRules[i] = cloned
		}
	}

	return &clone
}

// clonePtr replaces *pp with a pointer to a copy of its value.
func clonePtr[T any](pp **T) {
	if *pp != nil {
		v := **pp
		*pp = &v
	}
}

// String renders the config as indented JSON with the API key redacted, so
// debug output and error messages cannot leak it.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Server.APIKey != "" {
		safe.Server.APIKey = "[REDACTED]"
	}

	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// =============================================================================
// GLOBAL INSTANCE
// =============================================================================

var (
	globalMu  sync.RWMutex
	globalCfg *Config
)

// Global returns the process-wide configuration, loading it from disk on
// first use. Safe for concurrent use.
func Global() *Config {
	globalMu.RLock()
	if cfg := globalCfg; cfg != nil {
		globalMu.RUnlock()
		return cfg
	}
	globalMu.RUnlock()

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCfg == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalCfg = cfg
	}
	return globalCfg
}

// ReloadGlobal replaces the global configuration with a fresh load from disk.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal replaces the global configuration instance.
func SetGlobal(cfg *Config) {
	globalMu.Lock()
	globalCfg = cfg
	globalMu.Unlock()
}

// ResetGlobalForTesting clears the global instance so the next Global call
// reloads from disk.
func ResetGlobalForTesting() {
	SetGlobal(nil)
}
