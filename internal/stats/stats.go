// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stats

import (
	"sync"
	"time"

	"github.com/jeranaias/rigchat/internal/api"
)

// ============================================================================
// SESSION USAGE
// ============================================================================

// SessionUsage aggregates token throughput since the registry was created
// or last reset.
type SessionUsage struct {
	StartTime        time.Time             `json:"start_time"`
	Requests         int                   `json:"requests"`
	PromptTokens     int                   `json:"prompt_tokens"`
	CompletionTokens int                   `json:"completion_tokens"`
	GenerationMS     float64               `json:"generation_ms"`
	ByModel          map[string]ModelUsage `json:"by_model,omitempty"`
}

// ModelUsage is the per-model slice of the session totals.
type ModelUsage struct {
	Requests         int `json:"requests"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// TotalTokens returns prompt plus completion tokens.
func (u SessionUsage) TotalTokens() int {
	return u.PromptTokens + u.CompletionTokens
}

// TokensPerSecond returns the session-wide generation rate, weighted by
// each request's generation time.
func (u SessionUsage) TokensPerSecond() float64 {
	if u.GenerationMS <= 0 {
		return 0
	}
	return float64(u.CompletionTokens) / (u.GenerationMS / 1000)
}

// ============================================================================
// REGISTRY
// ============================================================================

// Registry holds live per-conversation processing state and session usage
// totals. It implements api.StateSink. All methods are safe for concurrent
// use.
type Registry struct {
	mu         sync.RWMutex
	processing map[string]api.ProcessingState
	session    SessionUsage
}

// NewRegistry creates an empty registry with the session clock started.
func NewRegistry() *Registry {
	return &Registry{
		processing: make(map[string]api.ProcessingState),
		session: SessionUsage{
			StartTime: time.Now(),
			ByModel:   make(map[string]ModelUsage),
		},
	}
}

// UpdateProcessingState stores the live state for one conversation.
func (r *Registry) UpdateProcessingState(convID string, state api.ProcessingState) {
	r.mu.Lock()
	r.processing[convID] = state
	r.mu.Unlock()
}

// ClearProcessingState removes a conversation's live state when its
// request ends.
func (r *Registry) ClearProcessingState(convID string) {
	r.mu.Lock()
	delete(r.processing, convID)
	r.mu.Unlock()
}

// ProcessingState returns the live state for a conversation, if any.
func (r *Registry) ProcessingState(convID string) (api.ProcessingState, bool) {
	r.mu.RLock()
	state, ok := r.processing[convID]
	r.mu.RUnlock()
	return state, ok
}

// ActiveConversations returns how many conversations are streaming now.
func (r *Registry) ActiveConversations() int {
	r.mu.RLock()
	n := len(r.processing)
	r.mu.RUnlock()
	return n
}

// ============================================================================
// RECORDING
// ============================================================================

// RecordCompletion folds one finished request into the session totals.
// Estimated timings count the same as native ones; a nil snapshot still
// counts the request.
func (r *Registry) RecordCompletion(model string, timings *api.TimingSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.session.Requests++
	if timings == nil {
		return
	}

	r.session.PromptTokens += timings.PromptN
	r.session.CompletionTokens += timings.PredictedN
	if timings.PredictedMS > 0 {
		r.session.GenerationMS += timings.PredictedMS
	}

	if model != "" {
		usage := r.session.ByModel[model]
		usage.Requests++
		usage.PromptTokens += timings.PromptN
		usage.CompletionTokens += timings.PredictedN
		r.session.ByModel[model] = usage
	}
}

// Session returns a copy of the current totals.
func (r *Registry) Session() SessionUsage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := r.session
	out.ByModel = make(map[string]ModelUsage, len(r.session.ByModel))
	for model, usage := range r.session.ByModel {
		out.ByModel[model] = usage
	}
	return out
}

// Reset clears the totals and restarts the session clock. Live processing
// state is untouched: in-flight requests keep reporting.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.session = SessionUsage{
		StartTime: time.Now(),
		ByModel:   make(map[string]ModelUsage),
	}
	r.mu.Unlock()
}
