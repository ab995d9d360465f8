// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/rigchat/internal/api"
)

func TestNewProgressIndicator(t *testing.T) {
	p := NewProgressIndicator()

	if p.Phase != ProgressPhaseProcessing {
		t.Errorf("Phase = %q, want %q", p.Phase, ProgressPhaseProcessing)
	}
	if p.Width != 80 {
		t.Errorf("Width = %d, want 80", p.Width)
	}
	if !p.ShowCancelHint {
		t.Error("ShowCancelHint should default to true")
	}
	if p.StartTime.IsZero() {
		t.Error("StartTime should be set")
	}
}

func TestApplyStateMidPrompt(t *testing.T) {
	p := NewProgressIndicator()
	p.ApplyState(api.ProcessingState{
		PromptN:        2048,
		CacheN:         256,
		PromptProgress: 0.75,
	})

	if p.Phase != ProgressPhaseProcessing {
		t.Errorf("Phase = %q, want %q", p.Phase, ProgressPhaseProcessing)
	}
	if p.TotalTokens != 2048 {
		t.Errorf("TotalTokens = %d, want 2048", p.TotalTokens)
	}
	if p.ProcessedTokens != 1536 {
		t.Errorf("ProcessedTokens = %d, want 1536", p.ProcessedTokens)
	}
	if p.CachedTokens != 256 {
		t.Errorf("CachedTokens = %d, want 256", p.CachedTokens)
	}
	if got := p.GetPercent(); got != 75 {
		t.Errorf("GetPercent() = %v, want 75", got)
	}
}

func TestApplyStateFlipsToGenerating(t *testing.T) {
	p := NewProgressIndicator()
	p.ApplyState(api.ProcessingState{
		PromptN:            2048,
		PredictedN:         42,
		PredictedPerSecond: 37.5,
		PromptProgress:     1,
	})

	if p.Phase != ProgressPhaseGenerating {
		t.Errorf("Phase = %q, want %q", p.Phase, ProgressPhaseGenerating)
	}
	if p.GeneratedTokens != 42 {
		t.Errorf("GeneratedTokens = %d, want 42", p.GeneratedTokens)
	}
	if got := p.GetPercent(); got != 100 {
		t.Errorf("GetPercent() = %v, want 100", got)
	}
}

func TestApplyStateClampsFraction(t *testing.T) {
	p := NewProgressIndicator()

	p.ApplyState(api.ProcessingState{PromptN: 100, PromptProgress: 1.5})
	if p.ProcessedTokens != 100 {
		t.Errorf("ProcessedTokens = %d, want 100 for overshoot", p.ProcessedTokens)
	}

	p2 := NewProgressIndicator()
	p2.ApplyState(api.ProcessingState{PromptN: 100, PromptProgress: -0.2})
	if p2.ProcessedTokens != 0 {
		t.Errorf("ProcessedTokens = %d, want 0 for negative fraction", p2.ProcessedTokens)
	}
}

func TestApplyStateDoesNotReviveTerminalPhase(t *testing.T) {
	p := NewProgressIndicator()
	p.Cancel()

	p.ApplyState(api.ProcessingState{PromptN: 100, PromptProgress: 0.5})

	if p.Phase != ProgressPhaseCanceled {
		t.Errorf("Phase = %q, want %q after cancel", p.Phase, ProgressPhaseCanceled)
	}
}

func TestBeginResetsForNewRequest(t *testing.T) {
	p := NewProgressIndicator()
	p.ApplyState(api.ProcessingState{PromptN: 2048, CacheN: 256, PromptProgress: 1})
	p.Complete()

	p.Begin()

	if p.Phase != ProgressPhaseProcessing {
		t.Errorf("Phase = %q after Begin, want %q", p.Phase, ProgressPhaseProcessing)
	}
	if p.TotalTokens != 0 || p.ProcessedTokens != 0 || p.CachedTokens != 0 {
		t.Error("Begin should clear token counts")
	}
	if !p.IsActive() {
		t.Error("indicator should be active again after Begin")
	}
}

func TestProgressPhaseTransitions(t *testing.T) {
	p := NewProgressIndicator()

	if !p.IsActive() {
		t.Error("new indicator should be active")
	}

	p.Complete()
	if p.Phase != ProgressPhaseComplete {
		t.Errorf("Phase = %q, want %q", p.Phase, ProgressPhaseComplete)
	}
	if p.IsActive() {
		t.Error("completed indicator should not be active")
	}

	p2 := NewProgressIndicator()
	p2.Error()
	if p2.Phase != ProgressPhaseError {
		t.Errorf("Phase = %q, want %q", p2.Phase, ProgressPhaseError)
	}
	if p2.IsActive() {
		t.Error("errored indicator should not be active")
	}
}

func TestGetPercentZeroTotal(t *testing.T) {
	p := NewProgressIndicator()

	if got := p.GetPercent(); got != 0 {
		t.Errorf("GetPercent() = %v, want 0 with no tokens", got)
	}
}

func TestProgressRenderCompact(t *testing.T) {
	p := NewProgressIndicator()
	p.Compact = true
	p.ApplyState(api.ProcessingState{
		PromptN:        2048,
		CacheN:         256,
		PromptProgress: 0.75,
	})

	out := p.Render()

	if !strings.Contains(out, "[1536/2048]") {
		t.Errorf("compact render missing token counter: %q", out)
	}
	if !strings.Contains(out, "Processing prompt") {
		t.Errorf("compact render missing phase label: %q", out)
	}
	if !strings.Contains(out, "cache 256") {
		t.Errorf("compact render missing cache info: %q", out)
	}
	if !strings.Contains(out, "75%") {
		t.Errorf("compact render missing percentage: %q", out)
	}
}

func TestProgressRenderFull(t *testing.T) {
	p := NewProgressIndicator()
	p.Width = 80
	p.ApplyState(api.ProcessingState{
		PromptN:        2048,
		CacheN:         256,
		PromptProgress: 0.5,
	})

	out := p.Render()

	if !strings.Contains(out, "Processing Prompt") {
		t.Errorf("full render missing title: %q", out)
	}
	if !strings.Contains(out, "1,024 / 2,048 tokens") {
		t.Errorf("full render missing token counts: %q", out)
	}
	if !strings.Contains(out, "tokens reused") {
		t.Errorf("full render missing cache line: %q", out)
	}
	if !strings.Contains(out, "Press Esc to stop") {
		t.Errorf("full render missing cancel hint: %q", out)
	}
}

func TestProgressRenderGenerating(t *testing.T) {
	p := NewProgressIndicator()
	p.ApplyState(api.ProcessingState{
		PromptN:            512,
		PredictedN:         85,
		PredictedPerSecond: 37.5,
		PromptProgress:     1,
	})

	out := p.Render()

	if !strings.Contains(out, "Generating") {
		t.Errorf("render missing generating title: %q", out)
	}
	if !strings.Contains(out, "85 tokens") {
		t.Errorf("render missing generated count: %q", out)
	}
	if !strings.Contains(out, "37.5 tok/s") {
		t.Errorf("render missing rate: %q", out)
	}
}

func TestProgressRenderNarrowFallsBackToCompact(t *testing.T) {
	p := NewProgressIndicator()
	p.Width = 20
	p.ApplyState(api.ProcessingState{PromptN: 100, PromptProgress: 0.5})

	out := p.Render()

	if strings.Contains(out, "\n") {
		t.Errorf("narrow render should be a single line: %q", out)
	}
}

func TestProgressRenderNoCancelHintWhenDone(t *testing.T) {
	p := NewProgressIndicator()
	p.ApplyState(api.ProcessingState{PromptN: 100, PromptProgress: 0.5})
	p.Complete()

	out := p.Render()

	if strings.Contains(out, "Press Esc") {
		t.Errorf("completed render should not show cancel hint: %q", out)
	}
}

func TestFormatProgressDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "500ms"},
		{5 * time.Second, "5s"},
		{90 * time.Second, "1m 30s"},
		{61 * time.Minute, "1h 1m"},
	}

	for _, tt := range tests {
		got := formatProgressDuration(tt.d)
		if got != tt.want {
			t.Errorf("formatProgressDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
