// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index provides a SQLite search index over saved conversations.
package index

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Sweep cadence for the debounce map and the polling fallback interval.
const (
	debounceSweep = 100 * time.Millisecond
	pollInterval  = 5 * time.Second
)

// FileWatcher keeps the index current as conversation files change on
// disk. The fsnotify implementation is preferred; polling is the fallback
// for filesystems without inotify support (network mounts, some
// containers).
type FileWatcher interface {
	Watch() error
	Close() error
}

// startWatcher wires a watcher to the index, falling back to polling
// when fsnotify cannot be set up.
func (idx *MessageIndex) startWatcher() error {
	if fw, err := newFsnotifyWatcher(idx, idx.config.WatchDebounce); err == nil {
		if err := fw.Watch(); err == nil {
			idx.watcher = fw
			return nil
		}
		fw.Close()
	}

	pw := newPollingWatcher(idx, pollInterval)
	if err := pw.Watch(); err != nil {
		return err
	}
	idx.watcher = pw
	return nil
}

// isConversationFile reports whether a path names a conversation file.
// The store's atomic writes create ".tmp-" files that never match.
func isConversationFile(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".")
}

// =============================================================================
// FSNOTIFY WATCHER
// =============================================================================

// fsnotifyWatcher reacts to filesystem events. The conversation store
// writes one JSON file per conversation into a flat directory, so a
// single watch on the root covers everything. Atomic saves go through a
// temp file and rename, which arrives as a Create event for the final
// name. Rapid event bursts for one file collapse through the debounce
// map so each save reindexes once.
type fsnotifyWatcher struct {
	idx      *MessageIndex
	fsw      *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]time.Time // path -> last event time

	ctx    context.Context
	cancel context.CancelFunc
}

func newFsnotifyWatcher(idx *MessageIndex, debounce time.Duration) (*fsnotifyWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &fsnotifyWatcher{
		idx:      idx,
		fsw:      fsw,
		debounce: debounce,
		pending:  make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Watch registers the conversations root and starts the event and
// debounce-flush goroutines.
func (w *fsnotifyWatcher) Watch() error {
	if err := w.fsw.Add(w.idx.root); err != nil {
		return err
	}
	go w.run()
	go w.flushLoop()
	return nil
}

// Close stops both goroutines and releases the inotify handles.
func (w *fsnotifyWatcher) Close() error {
	w.cancel()
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

func (w *fsnotifyWatcher) run() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)

		case _, ok := <-w.fsw.Errors:
			// Watch errors are non-fatal; Refresh still catches changes.
			if !ok {
				return
			}
		}
	}
}

func (w *fsnotifyWatcher) handle(event fsnotify.Event) {
	if !isConversationFile(event.Name) {
		return
	}

	if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
		w.mu.Lock()
		w.pending[event.Name] = time.Now()
		w.mu.Unlock()
	}

	// A rename delivers only the old name, so it reads as a removal.
	if event.Op&(fsnotify.Rename|fsnotify.Remove) != 0 {
		w.idx.removeConversation(conversationIDFromPath(event.Name))
	}
}

// flushLoop reindexes files whose last event is older than the debounce
// window.
func (w *fsnotifyWatcher) flushLoop() {
	ticker := time.NewTicker(debounceSweep)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case now := <-ticker.C:
			w.mu.Lock()
			var ready []string
			for path, stamp := range w.pending {
				if now.Sub(stamp) >= w.debounce {
					ready = append(ready, path)
					delete(w.pending, path)
				}
			}
			w.mu.Unlock()

			for _, path := range ready {
				w.idx.updateConversation(path)
			}
		}
	}
}

// =============================================================================
// POLLING FALLBACK
// =============================================================================

// pollingWatcher rescans the conversations root on an interval and diffs
// modification times against the previous pass.
type pollingWatcher struct {
	idx      *MessageIndex
	interval time.Duration

	mu   sync.Mutex
	seen map[string]time.Time // path -> mod time from the last pass

	ctx    context.Context
	cancel context.CancelFunc
}

func newPollingWatcher(idx *MessageIndex, interval time.Duration) *pollingWatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &pollingWatcher{
		idx:      idx,
		interval: interval,
		seen:     make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Watch takes a baseline scan and starts the polling goroutine.
func (w *pollingWatcher) Watch() error {
	baseline, err := w.scan()
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.seen = baseline
	w.mu.Unlock()

	go w.loop()
	return nil
}

// Close stops polling.
func (w *pollingWatcher) Close() error {
	w.cancel()
	return nil
}

func (w *pollingWatcher) loop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

// scan snapshots the mod times of every conversation file in the root.
func (w *pollingWatcher) scan() (map[string]time.Time, error) {
	entries, err := os.ReadDir(w.idx.root)
	if err != nil {
		return nil, err
	}

	snapshot := make(map[string]time.Time, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isConversationFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		snapshot[filepath.Join(w.idx.root, entry.Name())] = info.ModTime()
	}
	return snapshot, nil
}

// sweep diffs the current snapshot against the previous one: new or
// touched files reindex, vanished files drop out of the index.
func (w *pollingWatcher) sweep() {
	current, err := w.scan()
	if err != nil {
		return
	}

	w.mu.Lock()
	previous := w.seen
	w.seen = current
	w.mu.Unlock()

	for path, modTime := range current {
		if old, ok := previous[path]; !ok || !old.Equal(modTime) {
			w.idx.updateConversation(path)
		}
	}
	for path := range previous {
		if _, ok := current[path]; !ok {
			w.idx.removeConversation(conversationIDFromPath(path))
		}
	}
}
