// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/archlens/services/analysis/diagram"
)

// reloadDebounce is how long to wait for the file to settle before
// reloading. Editors and config mounts often produce several events
// per save.
const reloadDebounce = 200 * time.Millisecond

// CatalogProvider serves the active classification catalog.
//
// # Description
//
// The provider loads the catalog once at construction and, when a file
// path is configured, watches that file and swaps in a freshly parsed
// catalog after each change. Without a path it serves the compiled-in
// catalog and Start is a no-op.
//
// # Reload Semantics
//
// A reload that fails to read or parse keeps the previous catalog and
// logs the error. Classification never sees a partially applied table:
// the swap replaces the whole catalog pointer.
//
// # Thread Safety
//
// Safe for concurrent use. Catalog returns a shared immutable snapshot.
type CatalogProvider struct {
	path     string
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.RWMutex
	catalog *diagram.Catalog
}

// NewCatalogProvider builds a provider for the given catalog file.
// An empty path selects the compiled-in catalog. A path that exists
// but does not parse is a construction error so that a bad deploy
// fails at startup instead of after the first edit.
func NewCatalogProvider(path string, logger *slog.Logger) (*CatalogProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &CatalogProvider{
		logger: logger,
		done:   make(chan struct{}),
	}
	if path == "" {
		p.catalog = diagram.DefaultCatalog()
		return p, nil
	}

	p.path = filepath.Clean(path)
	catalog, err := diagram.LoadCatalogFile(p.path)
	if err != nil {
		return nil, err
	}
	p.catalog = catalog
	return p, nil
}

// Catalog returns the current catalog snapshot.
func (p *CatalogProvider) Catalog() *diagram.Catalog {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.catalog
}

// Start begins watching the catalog file for changes. It returns
// immediately; reloads happen on a background goroutine until Stop is
// called or the context is canceled.
func (p *CatalogProvider) Start(ctx context.Context) error {
	if p.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory rather than the file itself: editors and
	// mounted config volumes replace files by rename, which silently
	// drops a watch placed on the file.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		_ = watcher.Close()
		return err
	}
	p.watcher = watcher
	go p.watch(ctx)

	p.logger.Info("watching catalog file", slog.String("path", p.path))
	return nil
}

// Stop stops the watcher. Safe to call more than once.
func (p *CatalogProvider) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		if p.watcher != nil {
			_ = p.watcher.Close()
		}
	})
}

// watch debounces file events and triggers reloads.
func (p *CatalogProvider) watch(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != p.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				timerC = timer.C
			} else {
				timer.Reset(reloadDebounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			p.reload()
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("catalog watcher error", slog.String("error", err.Error()))
		}
	}
}

// reload swaps in the catalog from disk, keeping the previous one if
// the file no longer parses.
func (p *CatalogProvider) reload() {
	catalog, err := diagram.LoadCatalogFile(p.path)
	if err != nil {
		p.logger.Error("catalog reload failed, keeping previous catalog",
			slog.String("path", p.path),
			slog.String("error", err.Error()))
		return
	}

	p.mu.Lock()
	p.catalog = catalog
	p.mu.Unlock()

	p.logger.Info("catalog reloaded",
		slog.String("path", p.path),
		slog.Int("services", len(catalog.Services)))
}
