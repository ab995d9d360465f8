// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate, got: %v", err)
	}
	if len(cfg.Retry.CompatRules) == 0 {
		t.Error("default config must carry compat rules")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "base url without scheme",
			mutate: func(c *Config) { c.Server.BaseURL = "api.example.com" },
			field:  "server.base_url",
		},
		{
			name:   "local url relative",
			mutate: func(c *Config) { c.Server.LocalURL = "localhost:8080" },
			field:  "server.local_url",
		},
		{
			name:   "negative timeout",
			mutate: func(c *Config) { c.Server.TimeoutSecs = -1 },
			field:  "server.timeout_secs",
		},
		{
			name:   "temperature too high",
			mutate: func(c *Config) { c.Chat.Temperature = f(2.5) },
			field:  "chat.temperature",
		},
		{
			name:   "top_p zero",
			mutate: func(c *Config) { c.Chat.TopP = f(0) },
			field:  "chat.top_p",
		},
		{
			name:   "presence penalty out of range",
			mutate: func(c *Config) { c.Chat.PresencePenalty = f(-3) },
			field:  "chat.presence_penalty",
		},
		{
			name:   "max tokens below sentinel",
			mutate: func(c *Config) { c.Chat.MaxTokens = -2 },
			field:  "chat.max_tokens",
		},
		{
			name:   "unknown reasoning effort",
			mutate: func(c *Config) { c.Chat.ReasoningEffort = "extreme" },
			field:  "chat.reasoning_effort",
		},
		{
			name:   "compat rule without match",
			mutate: func(c *Config) { c.Retry.CompatRules = []CompatRule{{DropFields: []string{"x"}}} },
			field:  "retry.compat_rules[0].match",
		},
		{
			name:   "compat rule without fix",
			mutate: func(c *Config) { c.Retry.CompatRules = []CompatRule{{Match: []string{"x"}}} },
			field:  "retry.compat_rules[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention field %q", err.Error(), tt.field)
			}
		})
	}
}

func TestValidateAcceptsLocalForms(t *testing.T) {
	for _, base := range []string{"", ".", "/llama", "http://127.0.0.1:8080", "https://api.example.com/v1"} {
		cfg := Default()
		cfg.Server.BaseURL = base
		if err := cfg.Validate(); err != nil {
			t.Errorf("base_url %q should validate, got: %v", base, err)
		}
	}
}

func TestIsExternal(t *testing.T) {
	tests := []struct {
		base string
		want bool
	}{
		{"", false},
		{".", false},
		{"/upstream", false},
		{"http://127.0.0.1:8080", true},
		{"https://api.openai.com", true},
	}
	for _, tt := range tests {
		s := ServerConfig{BaseURL: tt.base}
		if got := s.IsExternal(); got != tt.want {
			t.Errorf("IsExternal(%q) = %v, want %v", tt.base, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		base  string
		local string
		want  string
	}{
		{"", "http://127.0.0.1:8080", "http://127.0.0.1:8080"},
		{".", "http://127.0.0.1:8080", "http://127.0.0.1:8080"},
		{"/llama", "http://127.0.0.1:8080", "http://127.0.0.1:8080/llama"},
		{"/llama/", "http://127.0.0.1:8080/", "http://127.0.0.1:8080/llama"},
		{"https://api.openai.com/", "http://127.0.0.1:8080", "https://api.openai.com"},
		{"", "", "http://127.0.0.1:8080"},
	}
	for _, tt := range tests {
		s := ServerConfig{BaseURL: tt.base, LocalURL: tt.local}
		if got := s.Resolve(); got != tt.want {
			t.Errorf("Resolve(base=%q, local=%q) = %q, want %q", tt.base, tt.local, got, tt.want)
		}
	}
}

func TestMigrateNormalizes(t *testing.T) {
	cfg := Default()
	cfg.Chat.ReasoningEffort = " High "
	cfg.Server.BaseURL = "https://api.example.com/v1/"
	cfg.Migrate()

	if cfg.Chat.ReasoningEffort != "high" {
		t.Errorf("reasoning effort = %q, want %q", cfg.Chat.ReasoningEffort, "high")
	}
	if cfg.Server.BaseURL != "https://api.example.com/v1" {
		t.Errorf("base url = %q, want trailing slash stripped", cfg.Server.BaseURL)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("RIGCHAT_API_KEY", "sk-env-key")
	t.Setenv("RIGCHAT_BASE_URL", "https://env.example.com")
	t.Setenv("RIGCHAT_MODEL", "env-model")
	t.Setenv("RIGCHAT_DEBUG", "true")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Server.APIKey != "sk-env-key" {
		t.Errorf("APIKey = %q", cfg.Server.APIKey)
	}
	if cfg.Server.BaseURL != "https://env.example.com" {
		t.Errorf("BaseURL = %q", cfg.Server.BaseURL)
	}
	if cfg.Chat.Model != "env-model" {
		t.Errorf("Model = %q", cfg.Chat.Model)
	}
	if !cfg.Debug {
		t.Error("Debug should be true")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	temp := 0.7
	cfg := Default()
	cfg.Chat.Model = "llama-3.1-8b"
	cfg.Chat.Temperature = &temp
	cfg.Chat.MaxTokens = -1
	cfg.Chat.Stop = []string{"<|eot|>"}
	cfg.Server.BaseURL = "/upstream"

	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML: %v", err)
	}

	loaded := Default()
	if err := LoadTOML(loaded, path); err != nil {
		t.Fatalf("LoadTOML: %v", err)
	}

	if loaded.Chat.Model != "llama-3.1-8b" {
		t.Errorf("Model = %q", loaded.Chat.Model)
	}
	if loaded.Chat.Temperature == nil || *loaded.Chat.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want 0.7", loaded.Chat.Temperature)
	}
	if loaded.Chat.MaxTokens != -1 {
		t.Errorf("MaxTokens = %d, want -1", loaded.Chat.MaxTokens)
	}
	if len(loaded.Chat.Stop) != 1 || loaded.Chat.Stop[0] != "<|eot|>" {
		t.Errorf("Stop = %v", loaded.Chat.Stop)
	}
	if loaded.Server.BaseURL != "/upstream" {
		t.Errorf("BaseURL = %q", loaded.Server.BaseURL)
	}
}

func TestSaveTOMLPermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	if err := SaveTOML(Default(), path); err != nil {
		t.Fatalf("SaveTOML: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file permissions = %o, want 0600", perm)
	}
}

func TestUnsetOptionalParamsStayNil(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	if err := SaveTOML(Default(), path); err != nil {
		t.Fatalf("SaveTOML: %v", err)
	}

	loaded := Default()
	if err := LoadTOML(loaded, path); err != nil {
		t.Fatalf("LoadTOML: %v", err)
	}
	if loaded.Chat.Temperature != nil {
		t.Errorf("Temperature should stay unset, got %v", *loaded.Chat.Temperature)
	}
	if loaded.Chat.TopP != nil {
		t.Errorf("TopP should stay unset, got %v", *loaded.Chat.TopP)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	temp := 0.5
	cfg := Default()
	cfg.Chat.Temperature = &temp
	cfg.Chat.Stop = []string{"a"}

	clone := cfg.Clone()
	*clone.Chat.Temperature = 1.5
	clone.Chat.Stop[0] = "b"
	clone.Retry.CompatRules[0].Match[0] = "mutated"

	if *cfg.Chat.Temperature != 0.5 {
		t.Error("clone shares Temperature pointer")
	}
	if cfg.Chat.Stop[0] != "a" {
		t.Error("clone shares Stop slice")
	}
	if cfg.Retry.CompatRules[0].Match[0] == "mutated" {
		t.Error("clone shares compat rule slices")
	}
}

func TestStringRedactsAPIKey(t *testing.T) {
	cfg := Default()
	cfg.Server.APIKey = "sk-super-secret"

	out := cfg.String()
	if strings.Contains(out, "sk-super-secret") {
		t.Error("String() leaked the API key")
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Error("String() should mark the key as redacted")
	}
}

func TestGetDotNotation(t *testing.T) {
	temp := 0.7
	cfg := Default()
	cfg.Chat.Model = "llama-3.1-8b"
	cfg.Chat.Temperature = &temp
	cfg.Server.TimeoutSecs = 120

	tests := []struct {
		key  string
		want interface{}
	}{
		{"chat.model", "llama-3.1-8b"},
		{"chat.temperature", 0.7},
		{"server.timeout_secs", 120},
		{"ui.theme", "dark"},
		{"storage.index_enabled", true},
		{"version", "1.0.0"},
	}
	for _, tt := range tests {
		got, err := cfg.Get(tt.key)
		if err != nil {
			t.Errorf("Get(%q): %v", tt.key, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Get(%q) = %v (%T), want %v (%T)", tt.key, got, got, tt.want, tt.want)
		}
	}
}

func TestGetUnsetPointerReturnsNil(t *testing.T) {
	cfg := Default()
	got, err := cfg.Get("chat.temperature")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("unset temperature = %v, want nil", got)
	}
}

func TestGetUnknownKey(t *testing.T) {
	cfg := Default()
	for _, key := range []string{"nope", "chat.nope", "chat.model.deeper"} {
		if _, err := cfg.Get(key); err == nil {
			t.Errorf("Get(%q) should fail", key)
		}
	}
}

func TestSetDotNotation(t *testing.T) {
	cfg := Default()

	sets := []struct {
		key   string
		value string
	}{
		{"chat.model", "qwen2.5-coder"},
		{"chat.temperature", "0.3"},
		{"chat.top_k", "40"},
		{"chat.max_tokens", "-1"},
		{"server.base_url", "https://api.example.com"},
		{"server.rate_limit_rps", "2.5"},
		{"ui.show_timings", "false"},
		{"chat.stop", "<|eot|>, <|end|>"},
	}
	for _, s := range sets {
		if err := cfg.Set(s.key, s.value); err != nil {
			t.Fatalf("Set(%q, %q): %v", s.key, s.value, err)
		}
	}

	if cfg.Chat.Model != "qwen2.5-coder" {
		t.Errorf("Model = %q", cfg.Chat.Model)
	}
	if cfg.Chat.Temperature == nil || *cfg.Chat.Temperature != 0.3 {
		t.Errorf("Temperature = %v, want 0.3", cfg.Chat.Temperature)
	}
	if cfg.Chat.TopK == nil || *cfg.Chat.TopK != 40 {
		t.Errorf("TopK = %v, want 40", cfg.Chat.TopK)
	}
	if cfg.Chat.MaxTokens != -1 {
		t.Errorf("MaxTokens = %d, want -1", cfg.Chat.MaxTokens)
	}
	if cfg.Server.RateLimitRPS != 2.5 {
		t.Errorf("RateLimitRPS = %v, want 2.5", cfg.Server.RateLimitRPS)
	}
	if cfg.UI.ShowTimings {
		t.Error("ShowTimings should be false")
	}
	if len(cfg.Chat.Stop) != 2 || cfg.Chat.Stop[0] != "<|eot|>" || cfg.Chat.Stop[1] != "<|end|>" {
		t.Errorf("Stop = %v", cfg.Chat.Stop)
	}
}

func TestSetUnsetClearsPointer(t *testing.T) {
	temp := 0.9
	cfg := Default()
	cfg.Chat.Temperature = &temp

	if err := cfg.Set("chat.temperature", "unset"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if cfg.Chat.Temperature != nil {
		t.Errorf("Temperature = %v, want nil", *cfg.Chat.Temperature)
	}
}

func TestSetRejectsBadValues(t *testing.T) {
	cfg := Default()
	if err := cfg.Set("chat.max_tokens", "many"); err == nil {
		t.Error("Set should reject a non-integer")
	}
	if err := cfg.Set("unknown.key", "x"); err == nil {
		t.Error("Set should reject an unknown key")
	}
}

func TestGetAllKeysResolve(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("Get(%q): %v", key, err)
		}
	}
}

func TestCheckReady(t *testing.T) {
	cfg := Default()
	if err := cfg.CheckReady(); err != nil {
		t.Errorf("local default should be ready, got: %v", err)
	}

	cfg.Server.BaseURL = "https://api.example.com"
	if err := cfg.CheckReady(); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("external endpoint without key: err = %v, want ErrNotConfigured", err)
	}

	cfg.Server.APIKey = "sk-test"
	if err := cfg.CheckReady(); err != nil {
		t.Errorf("external endpoint with key should be ready, got: %v", err)
	}
}

// TestConfig_ConcurrentAccess verifies Global(), SetGlobal(), and
// ReloadGlobal() are safe under concurrency.
// Run with: go test -race -v ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()

		go func() {
			defer wg.Done()
			if cfg := Global(); cfg == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}
