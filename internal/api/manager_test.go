// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

// ============================================================================
// REPLACE ON RESEND
// ============================================================================

func TestManagerReplacesRequestOnSameKey(t *testing.T) {
	mgr := NewRequestManager()

	ctx1, finish1 := mgr.Begin(context.Background(), "conv-1")
	defer finish1()

	ctx2, finish2 := mgr.Begin(context.Background(), "conv-1")
	defer finish2()

	if ctx1.Err() == nil {
		t.Error("first request not cancelled by the resend")
	}
	if ctx2.Err() != nil {
		t.Error("second request cancelled prematurely")
	}
	if mgr.Len() != 1 {
		t.Errorf("active = %d, want 1", mgr.Len())
	}
}

func TestManagerDistinctKeysCoexist(t *testing.T) {
	mgr := NewRequestManager()

	ctx1, finish1 := mgr.Begin(context.Background(), "conv-1")
	defer finish1()
	ctx2, finish2 := mgr.Begin(context.Background(), "conv-2")
	defer finish2()

	if ctx1.Err() != nil || ctx2.Err() != nil {
		t.Error("independent conversations interfered")
	}
	if mgr.Len() != 2 {
		t.Errorf("active = %d, want 2", mgr.Len())
	}
}

// A stale finish must not evict the request that replaced it.
func TestManagerStaleFinishKeepsNewRequest(t *testing.T) {
	mgr := NewRequestManager()

	_, finishOld := mgr.Begin(context.Background(), "conv-1")
	ctxNew, finishNew := mgr.Begin(context.Background(), "conv-1")
	defer finishNew()

	finishOld() // the replaced request winds down late

	if !mgr.Active("conv-1") {
		t.Error("stale finish evicted the new request")
	}
	if ctxNew.Err() != nil {
		t.Error("stale finish cancelled the new request")
	}
}

func TestManagerFinishRemovesOwnEntry(t *testing.T) {
	mgr := NewRequestManager()

	_, finish := mgr.Begin(context.Background(), "conv-1")
	if !mgr.Active("conv-1") {
		t.Fatal("request not registered")
	}

	finish()

	if mgr.Active("conv-1") {
		t.Error("finished request still registered")
	}
	if mgr.Len() != 0 {
		t.Errorf("active = %d, want 0", mgr.Len())
	}
}

// ============================================================================
// CANCEL
// ============================================================================

func TestManagerCancel(t *testing.T) {
	mgr := NewRequestManager()

	ctx, finish := mgr.Begin(context.Background(), "conv-1")
	defer finish()

	if !mgr.Cancel("conv-1") {
		t.Error("Cancel found nothing")
	}
	if ctx.Err() == nil {
		t.Error("context not cancelled")
	}
	if mgr.Active("conv-1") {
		t.Error("cancelled request still registered")
	}
}

func TestManagerCancelMissingKeyIsNoop(t *testing.T) {
	mgr := NewRequestManager()

	if mgr.Cancel("nothing-here") {
		t.Error("Cancel reported success for an idle key")
	}
}

func TestManagerCancelAll(t *testing.T) {
	mgr := NewRequestManager()

	var ctxs []context.Context
	for i := 0; i < 5; i++ {
		ctx, _ := mgr.Begin(context.Background(), fmt.Sprintf("conv-%d", i))
		ctxs = append(ctxs, ctx)
	}

	if got := mgr.CancelAll(); got != 5 {
		t.Errorf("CancelAll = %d, want 5", got)
	}
	for i, ctx := range ctxs {
		if ctx.Err() == nil {
			t.Errorf("conv-%d not cancelled", i)
		}
	}
	if mgr.Len() != 0 {
		t.Errorf("active = %d, want 0", mgr.Len())
	}
}

// ============================================================================
// DEFAULT KEY
// ============================================================================

func TestManagerEmptyKeyUsesDefault(t *testing.T) {
	mgr := NewRequestManager()

	ctx, finish := mgr.Begin(context.Background(), "")
	defer finish()

	if !mgr.Active(DefaultRequestKey) {
		t.Error("empty key not routed to the default")
	}
	if !mgr.Cancel("") {
		t.Error("Cancel with empty key missed the default entry")
	}
	if ctx.Err() == nil {
		t.Error("default-keyed request not cancelled")
	}
}

// ============================================================================
// CONCURRENCY
// ============================================================================

func TestManagerConcurrentBeginCancel(t *testing.T) {
	mgr := NewRequestManager()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("conv-%d", n%4)
			for j := 0; j < 50; j++ {
				_, finish := mgr.Begin(context.Background(), key)
				mgr.Active(key)
				if j%3 == 0 {
					mgr.Cancel(key)
				}
				finish()
			}
		}(i)
	}
	wg.Wait()

	if mgr.Len() != 0 {
		t.Errorf("active = %d after all requests finished, want 0", mgr.Len())
	}
}
