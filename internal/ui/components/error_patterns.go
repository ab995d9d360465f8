// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"runtime"
	"strings"
	"sync"
)

// =============================================================================
// ERROR CATEGORIES
// =============================================================================

// ErrorCategory labels the error panel and picks its border accent.
type ErrorCategory string

const (
	CategoryNetwork  ErrorCategory = "Network"
	CategoryModel    ErrorCategory = "Model"
	CategoryAuth     ErrorCategory = "Auth"
	CategoryRequest  ErrorCategory = "Request"  // server rejected the request (HTTP 400)
	CategoryConfig   ErrorCategory = "Config"
	CategoryContext  ErrorCategory = "Context"  // context window exhausted
	CategoryTimeout  ErrorCategory = "Timeout"
	CategoryResource ErrorCategory = "Resource" // disk, GPU, memory
	CategoryParse    ErrorCategory = "Parse"
	CategoryUnknown  ErrorCategory = "Error"
)

// =============================================================================
// PATTERN MATCHING
// =============================================================================

// ErrorPattern maps error-message keywords to a category, a title, and
// recovery suggestions. Keyword matching is case-insensitive; any keyword
// hit selects the pattern.
type ErrorPattern struct {
	Keywords    []string
	Category    ErrorCategory
	Title       string
	Suggestions []string
	DocsURL     string
	LogHint     string // what to look for in the log file
}

// ErrorPatternMatcher resolves raw error text against an ordered pattern
// table. Order is significance: the first hit wins, so specific patterns
// sit above the generic fallbacks.
type ErrorPatternMatcher struct {
	patterns []ErrorPattern
}

var (
	defaultMatcher     *ErrorPatternMatcher
	defaultMatcherOnce sync.Once
)

// GetDefaultMatcher returns the shared matcher, built once.
func GetDefaultMatcher() *ErrorPatternMatcher {
	defaultMatcherOnce.Do(func() {
		defaultMatcher = NewErrorPatternMatcher()
	})
	return defaultMatcher
}

// NewErrorPatternMatcher builds a matcher over the built-in pattern table.
func NewErrorPatternMatcher() *ErrorPatternMatcher {
	return &ErrorPatternMatcher{patterns: defaultPatterns()}
}

// Match resolves an error message to a populated display, or nil when no
// pattern applies.
func (m *ErrorPatternMatcher) Match(errMsg string) *ErrorDisplay {
	if errMsg == "" {
		return nil
	}

	lower := strings.ToLower(errMsg)
	for _, pattern := range m.patterns {
		for _, keyword := range pattern.Keywords {
			if strings.Contains(lower, keyword) {
				display := NewEnhancedError(pattern, errMsg)
				return &display
			}
		}
	}
	return nil
}

// MatchOrDefault resolves like Match but falls back to a plain display
// carrying the caller's title.
func (m *ErrorPatternMatcher) MatchOrDefault(title, errMsg string) ErrorDisplay {
	if matched := m.Match(errMsg); matched != nil {
		return *matched
	}
	return NewError(title, errMsg)
}

// SmartError builds a display for raw error text, with pattern-matched
// suggestions when the text is recognized.
func SmartError(title, message string) ErrorDisplay {
	return GetDefaultMatcher().MatchOrDefault(title, message)
}

// SmartErrorFromError is SmartError over a Go error value.
func SmartErrorFromError(title string, err error) ErrorDisplay {
	if err == nil {
		return NewError(title, "Unknown error")
	}
	return SmartError(title, err.Error())
}

// =============================================================================
// PATTERN TABLE
// =============================================================================

// defaultPatterns returns the built-in table, most specific first. The
// generic connection fallback must stay last, and it deliberately omits
// "timeout" so the timeout pattern above it wins.
func defaultPatterns() []ErrorPattern {
	return []ErrorPattern{
		{
			// Before the connection fallback, so local-server failures get
			// llama-server suggestions instead of generic networking ones.
			Keywords: []string{
				"cannot reach server", "server not running",
				"localhost:8080", "http://localhost:8080", "127.0.0.1:8080",
			},
			Category:    CategoryNetwork,
			Title:       "Server Not Reachable",
			Suggestions: serverStartSuggestions(),
			DocsURL:     "https://rigchat.dev/docs/troubleshooting/server-connection",
			LogHint:     "Check for connection attempts and the configured base URL",
		},
		{
			Keywords: []string{
				"invalid api key", "incorrect api key", "unauthorized", "401",
				"authentication failed", "invalid credentials",
				"missing api key", "no api key",
			},
			Category: CategoryAuth,
			Title:    "Authentication Failed",
			Suggestions: []string{
				"Set your API key: rigchat setup",
				"Or export RIGCHAT_API_KEY before launching",
				"Local servers usually need no key - check server.base_url",
			},
			DocsURL: "https://rigchat.dev/docs/configuration/api-keys",
			LogHint: "Check which endpoint was called and whether a key was sent",
		},
		{
			Keywords: []string{
				"model not found", "model does not exist", "no such model",
				"unknown model", "model is not loaded",
				"' not found", // "model 'xyz' not found"
			},
			Category: CategoryModel,
			Title:    "Model Not Found",
			Suggestions: []string{
				"List models the server offers: /models",
				"Switch to an available model: /model <name>",
				"Check model name spelling",
			},
			DocsURL: "https://rigchat.dev/docs/models",
			LogHint: "Check the model id sent with the request",
		},
		{
			Keywords: []string{
				"context length", "context exceeded", "maximum context",
				"context window", "out of memory", "memory limit",
				"tokens exceed",
			},
			Category: CategoryContext,
			Title:    "Context Exceeded",
			Suggestions: []string{
				"Start new conversation: /new",
				"Clear history: /clear",
				"Lower chat.max_tokens or use shorter messages",
			},
			DocsURL: "https://rigchat.dev/docs/troubleshooting/context-limits",
			LogHint: "Check conversation length and token counts",
		},
		{
			Keywords: []string{
				"request timed out", "request timeout",
				"operation timed out", "context deadline exceeded",
			},
			Category: CategoryTimeout,
			Title:    "Request Timeout",
			Suggestions: []string{
				"Try again - the server may be temporarily busy",
				"Raise the limit: /config server.timeout_secs <n>",
				"Large prompts take longer on local hardware",
			},
			DocsURL: "https://rigchat.dev/docs/troubleshooting/timeouts",
			LogHint: "Look for timeout duration and server response times",
		},
		{
			Keywords: []string{
				"rate limit", "too many requests", "quota exceeded",
				"429", "throttled", "rate exceeded",
			},
			Category: CategoryNetwork,
			Title:    "Rate Limit Exceeded",
			Suggestions: []string{
				"Wait a moment and retry: /retry",
				"Lower the client send rate: /config server.rate_limit_rps",
				"Check your provider quota and usage",
			},
			DocsURL: "https://rigchat.dev/docs/troubleshooting/rate-limits",
			LogHint: "Check request frequency and quota status",
		},
		{
			// rigchat retries a rejected request once without the optional
			// parameters, so reaching this pattern means the retry failed too.
			Keywords: []string{
				"invalid_request_error", "unsupported parameter",
				"unknown parameter", "unknown field", "bad request", "400",
			},
			Category: CategoryRequest,
			Title:    "Request Rejected",
			Suggestions: []string{
				"The server rejected an option even after the compatibility retry",
				"Clear extra parameters: /config chat.custom_json \"\"",
				"Check reasoning options: /config chat.reasoning_effort",
			},
			DocsURL: "https://rigchat.dev/docs/troubleshooting/compatibility",
			LogHint: "Check which request field the server named in its error body",
		},
		{
			Keywords:    []string{"permission denied", "access denied", "forbidden", "403"},
			Category:    CategoryAuth,
			Title:       "Permission Denied",
			Suggestions: permissionSuggestions(),
			DocsURL:     "https://rigchat.dev/docs/troubleshooting/permissions",
			LogHint:     "Check file permissions and authentication status",
		},
		{
			Keywords: []string{
				"file not found", "no such file", "cannot find file",
				"path not found", "enoent",
			},
			Category: CategoryConfig,
			Title:    "File Not Found",
			Suggestions: []string{
				"Check the file path spelling",
				"Use an absolute path instead of relative",
				"Verify the file exists in the expected location",
			},
			DocsURL: "https://rigchat.dev/docs/troubleshooting/file-access",
			LogHint: "Check the full path being accessed",
		},
		{
			Keywords: []string{"cuda", "vram", "out of gpu memory", "cuda error", "gpu error"},
			Category: CategoryResource,
			Title:    "GPU Error",
			Suggestions: []string{
				"Restart the server with fewer GPU layers",
				"Try a smaller quantization of the model",
				"Check GPU drivers on the server host",
			},
			DocsURL: "https://rigchat.dev/docs/troubleshooting/gpu-issues",
			LogHint: "Check server-side GPU memory usage",
		},
		{
			Keywords: []string{"no space left", "disk full", "out of disk space", "enospc"},
			Category: CategoryResource,
			Title:    "Disk Space Error",
			Suggestions: []string{
				"Free up disk space on your system",
				"Delete old conversations: rigchat list, then /open and delete",
				"Clear temporary files and caches",
			},
			DocsURL: "https://rigchat.dev/docs/troubleshooting/disk-space",
			LogHint: "Check available disk space in the data directory",
		},
		{
			Keywords: []string{
				"invalid config", "missing config", "parse config",
				"configuration error",
			},
			Category: CategoryConfig,
			Title:    "Configuration Error",
			Suggestions: []string{
				"Check configuration file syntax",
				"Inspect current values: /config",
				"Re-run first-time setup: rigchat setup",
			},
			DocsURL: "https://rigchat.dev/docs/configuration",
			LogHint: "Check config file path and validation errors",
		},
		{
			Keywords: []string{"no response received", "empty response"},
			Category: CategoryModel,
			Title:    "Empty Response",
			Suggestions: []string{
				"Retry the request: /retry",
				"Check the server logs for generation failures",
				"Try a different model: /model <name>",
			},
			DocsURL: "https://rigchat.dev/docs/troubleshooting/empty-responses",
			LogHint: "Check whether the stream carried any delta content",
		},
		{
			Keywords: []string{
				"unmarshal", "parse error", "decode response",
				"invalid json", "syntax error",
			},
			Category: CategoryParse,
			Title:    "Parse Error",
			Suggestions: []string{
				"The server sent a malformed response",
				"Verify server.base_url points at an OpenAI-compatible API",
				"Retry: /retry",
			},
			DocsURL: "https://rigchat.dev/docs/troubleshooting/parse-errors",
			LogHint: "Check the raw response body in debug logs",
		},
		{
			Keywords: []string{
				"connection refused", "connect: connection refused",
				"dial tcp", "no such host", "network unreachable",
				"connection reset", "broken pipe",
				"cannot connect", "failed to connect",
			},
			Category: CategoryNetwork,
			Title:    "Connection Error",
			Suggestions: []string{
				"Check your network connection",
				"Verify the endpoint: /config server.base_url",
				"For local use, make sure the inference server is running",
			},
			DocsURL: "https://rigchat.dev/docs/troubleshooting/network",
			LogHint: "Check network connectivity and endpoint status",
		},
	}
}

// =============================================================================
// PLATFORM SUGGESTIONS
// =============================================================================

func permissionSuggestions() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{
			"Check file permissions in Properties > Security",
			"Run as Administrator if needed",
			"Verify API key or credentials are set",
		}
	case "darwin":
		return []string{
			"Check file permissions: ls -l <file>",
			"Grant access in System Preferences > Security",
			"Verify API key or credentials are set",
		}
	default:
		return []string{
			"Check file permissions: ls -l <file>",
			"Grant permissions: chmod +r <file>",
			"Verify API key or credentials are set",
		}
	}
}

func serverStartSuggestions() []string {
	binary := "llama-server"
	if runtime.GOOS == "windows" {
		binary = "llama-server.exe"
	}
	return []string{
		"Start the server: " + binary + " -m <model.gguf>",
		"Check the endpoint: rigchat config get server.base_url",
		"Run diagnostics: rigchat doctor",
	}
}
