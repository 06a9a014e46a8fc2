// Package uidmon keeps the local package snapshot in sync with the
// system package list. It watches the system directory for the
// temporary list the package manager writes before renaming it into
// place, debounces bursts of writes, and refreshes the snapshot from
// the final list. A periodic reconcile catches anything the watcher
// missed.
package uidmon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dohr-michael/rootd/internal/events"
	"github.com/dohr-michael/rootd/internal/pkgstore"
)

const (
	listName = "packages.list"
	tmpName  = "packages.list.tmp"

	defaultDebounce = time.Second
)

type Config struct {
	// SystemDir is the directory holding packages.list,
	// typically /data/system.
	SystemDir string
	// Debounce delays the refresh after the last observed write.
	Debounce time.Duration
	// ReconcileCron, when set, triggers a full refresh on schedule
	// even without filesystem events.
	ReconcileCron string
}

type Monitor struct {
	systemDir string
	debounce  time.Duration
	reconcile *ReconcileSchedule
	store     *pkgstore.Store
	bus       *events.Bus
	logger    *slog.Logger
}

func New(cfg Config, store *pkgstore.Store, bus *events.Bus) (*Monitor, error) {
	if cfg.SystemDir == "" {
		return nil, fmt.Errorf("uidmon: system directory is required")
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	var reconcile *ReconcileSchedule
	if cfg.ReconcileCron != "" {
		schedule, err := ParseReconcileCron(cfg.ReconcileCron)
		if err != nil {
			return nil, err
		}
		reconcile = schedule
	}
	return &Monitor{
		systemDir: cfg.SystemDir,
		debounce:  debounce,
		reconcile: reconcile,
		store:     store,
		bus:       bus,
		logger:    slog.With("component", "uidmon"),
	}, nil
}

// Refresh re-reads packages.list and replaces the stored snapshot.
func (m *Monitor) Refresh() error {
	path := filepath.Join(m.systemDir, listName)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	entries, err := pkgstore.ParsePackagesList(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if err := m.store.Replace(entries); err != nil {
		return err
	}
	m.logger.Info("package snapshot refreshed", "packages", len(entries))
	if m.bus != nil {
		m.bus.Publish(events.NewEvent(events.EventUIDRefreshed, events.SourceUIDMon, map[string]any{
			"packages": len(entries),
		}))
	}
	return nil
}

// Run watches the system directory until ctx is cancelled. A final
// refresh runs on shutdown so the snapshot is current for the next
// boot stage.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.Refresh(); err != nil {
		m.logger.Warn("initial refresh failed", "error", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(m.systemDir); err != nil {
		return fmt.Errorf("watch %s: %w", m.systemDir, err)
	}

	debounce := time.NewTimer(m.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	var ticker *time.Ticker
	var tick <-chan time.Time
	if m.reconcile != nil {
		ticker = time.NewTicker(time.Minute)
		defer ticker.Stop()
		tick = ticker.C
	}

	m.logger.Info("watching package list", "dir", m.systemDir, "debounce", m.debounce)
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != tmpName {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			debounce.Reset(m.debounce)
		case <-debounce.C:
			if err := m.Refresh(); err != nil {
				m.logger.Warn("refresh failed", "error", err)
			}
		case now := <-tick:
			if m.reconcile.Due(now) {
				if err := m.Refresh(); err != nil {
					m.logger.Warn("reconcile failed", "error", err)
				}
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("watcher error", "error", werr)
		case <-ctx.Done():
			if err := m.Refresh(); err != nil {
				m.logger.Warn("final refresh failed", "error", err)
			}
			return nil
		}
	}
}
