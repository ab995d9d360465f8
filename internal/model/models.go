// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// DefaultContextWindow is assumed when the server's model is unknown.
// Generous on purpose: overestimating the window only makes the context
// meter optimistic, underestimating it nags the user too early.
const DefaultContextWindow = 128000

// =============================================================================
// CONTEXT WINDOW REGISTRY
// =============================================================================

// contextWindows maps model-name fragments to context window sizes. The
// /models endpoint reports ids but not window sizes, so the context meter
// relies on this table for models it recognizes. Matched case-insensitively
// against the reported id; longer fragments are checked first so
// "llama-3.1" wins over "llama-3".
var contextWindows = []struct {
	fragment string
	window   int
}{
	// OpenAI
	{"gpt-4o-mini", 128000},
	{"gpt-4o", 128000},
	{"gpt-4-turbo", 128000},
	{"gpt-4.1", 1000000},
	{"gpt-4", 8192},
	{"gpt-3.5-turbo", 16385},
	{"o3-mini", 200000},
	{"o3", 200000},
	{"o1", 200000},

	// Anthropic (via OpenAI-compatible proxies)
	{"claude", 200000},

	// Common local models served by llama.cpp
	{"llama-3.1", 128000},
	{"llama-3.2", 128000},
	{"llama-3.3", 128000},
	{"llama-3", 8192},
	{"llama3.1", 128000},
	{"llama3.2", 128000},
	{"llama3", 8192},
	{"qwen2.5", 32768},
	{"qwen3", 32768},
	{"deepseek-r1", 65536},
	{"deepseek", 65536},
	{"mistral-nemo", 128000},
	{"mistral", 32768},
	{"mixtral", 32768},
	{"gemma-2", 8192},
	{"gemma2", 8192},
	{"gemma-3", 128000},
	{"gemma3", 128000},
	{"phi-4", 16384},
	{"phi-3", 4096},
	{"phi3", 4096},
}

// ContextWindow returns the known context window for a model id reported by
// the server. The second return is false for unrecognized models; callers
// fall back to DefaultContextWindow.
func ContextWindow(modelID string) (int, bool) {
	id := strings.ToLower(strings.TrimSpace(modelID))
	if id == "" {
		return 0, false
	}
	for _, entry := range contextWindows {
		if strings.Contains(id, entry.fragment) {
			return entry.window, true
		}
	}
	return 0, false
}

// =============================================================================
// MODEL NAME HELPERS
// =============================================================================

// ShortModelName trims the file-path and quantization noise llama.cpp puts
// in model ids, e.g. "/models/Qwen2.5-7B-Instruct-Q4_K_M.gguf" becomes
// "Qwen2.5-7B-Instruct".
func ShortModelName(modelID string) string {
	name := modelID
	if idx := strings.LastIndexAny(name, "/\\"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.TrimSuffix(name, ".gguf")

	// Strip a trailing quantization suffix like -Q4_K_M or .Q8_0.
	if idx := strings.LastIndexAny(name, "-."); idx > 0 {
		tail := name[idx+1:]
		if len(tail) >= 2 && (tail[0] == 'Q' || tail[0] == 'q') && tail[1] >= '0' && tail[1] <= '9' {
			name = name[:idx]
		}
	}

	if name == "" {
		return modelID
	}
	return name
}
