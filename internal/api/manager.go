// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// DefaultRequestKey holds requests that were started without a
// conversation id.
const DefaultRequestKey = "default"

// activeRequest is one in-flight registration.
type activeRequest struct {
	id     string
	cancel context.CancelFunc
}

// RequestManager tracks in-flight requests by key and guarantees at most
// one per key: beginning a request cancels whatever held the key before.
// All methods are safe for concurrent use.
type RequestManager struct {
	mu     sync.Mutex
	active map[string]activeRequest
}

// NewRequestManager creates an empty manager.
func NewRequestManager() *RequestManager {
	return &RequestManager{active: make(map[string]activeRequest)}
}

// Begin registers a cancellable child of parent under key, cancelling any
// request already holding it. The returned finish func removes the
// registration, but only while this request still owns the key; a newer
// request on the same key is never evicted by an older one finishing late.
func (m *RequestManager) Begin(parent context.Context, key string) (context.Context, func()) {
	if key == "" {
		key = DefaultRequestKey
	}

	ctx, cancel := context.WithCancel(parent)
	id := uuid.NewString()

	m.mu.Lock()
	if prev, ok := m.active[key]; ok {
		prev.cancel()
	}
	m.active[key] = activeRequest{id: id, cancel: cancel}
	m.mu.Unlock()

	finish := func() {
		m.mu.Lock()
		if cur, ok := m.active[key]; ok && cur.id == id {
			delete(m.active, key)
		}
		m.mu.Unlock()
		cancel()
	}
	return ctx, finish
}

// Cancel aborts the request holding key, if any, and reports whether one
// was found. Missing keys are not an error: cancelling an idle
// conversation is a no-op.
func (m *RequestManager) Cancel(key string) bool {
	if key == "" {
		key = DefaultRequestKey
	}

	m.mu.Lock()
	req, ok := m.active[key]
	if ok {
		delete(m.active, key)
	}
	m.mu.Unlock()

	if ok {
		req.cancel()
	}
	return ok
}

// CancelAll aborts every in-flight request and returns how many there were.
func (m *RequestManager) CancelAll() int {
	m.mu.Lock()
	cancelled := make([]context.CancelFunc, 0, len(m.active))
	for key, req := range m.active {
		cancelled = append(cancelled, req.cancel)
		delete(m.active, key)
	}
	m.mu.Unlock()

	for _, cancel := range cancelled {
		cancel()
	}
	return len(cancelled)
}

// Active reports whether a request currently holds key.
func (m *RequestManager) Active(key string) bool {
	if key == "" {
		key = DefaultRequestKey
	}
	m.mu.Lock()
	_, ok := m.active[key]
	m.mu.Unlock()
	return ok
}

// Len returns the number of in-flight requests.
func (m *RequestManager) Len() int {
	m.mu.Lock()
	n := len(m.active)
	m.mu.Unlock()
	return n
}
