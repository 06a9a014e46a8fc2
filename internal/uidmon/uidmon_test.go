package uidmon

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dohr-michael/rootd/internal/events"
	"github.com/dohr-michael/rootd/internal/pkgstore"
)

func TestReconcileScheduleDue(t *testing.T) {
	schedule, err := ParseReconcileCron("0 * * * *")
	if err != nil {
		t.Fatalf("ParseReconcileCron failed: %v", err)
	}
	onTheHour := time.Date(2026, 8, 26, 14, 0, 30, 0, time.UTC)
	if !schedule.Due(onTheHour) {
		t.Errorf("expected %v to be due for %q", onTheHour, schedule)
	}
	offTheHour := time.Date(2026, 8, 26, 14, 1, 0, 0, time.UTC)
	if schedule.Due(offTheHour) {
		t.Errorf("expected %v not to be due for %q", offTheHour, schedule)
	}
}

func TestParseReconcileCronInvalid(t *testing.T) {
	if _, err := ParseReconcileCron("not a cron"); err == nil {
		t.Error("expected error for invalid expression")
	}
}

func TestReconcileScheduleNext(t *testing.T) {
	schedule, err := ParseReconcileCron("*/5 * * * *")
	if err != nil {
		t.Fatalf("ParseReconcileCron failed: %v", err)
	}
	from := time.Date(2026, 8, 26, 14, 2, 0, 0, time.UTC)
	next := schedule.Next(from)
	want := time.Date(2026, 8, 26, 14, 5, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Next(%v) = %v, want %v", from, next, want)
	}
}

func newTestStore(t *testing.T) *pkgstore.Store {
	t.Helper()
	store, err := pkgstore.Open(filepath.Join(t.TempDir(), "packages.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func writePackagesList(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, listName), []byte(content), 0o644); err != nil {
		t.Fatalf("write packages.list: %v", err)
	}
}

func TestRefresh(t *testing.T) {
	dir := t.TempDir()
	writePackagesList(t, dir, "com.example.app 10101 0 /data/user/0/com.example.app default\ncom.other.app 10102 1 /data/user/0/com.other.app default\n")

	store := newTestStore(t)
	mon, err := New(Config{SystemDir: dir}, store, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := mon.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	count, err := store.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 packages, got %d", count)
	}
	entry, ok, err := store.Get("com.other.app")
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	if entry.UID != 10102 || !entry.Debuggable {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestRefreshMissingList(t *testing.T) {
	store := newTestStore(t)
	mon, err := New(Config{SystemDir: t.TempDir()}, store, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := mon.Refresh(); err == nil {
		t.Error("expected error when packages.list is missing")
	}
}

func TestRunRefreshesOnTmpRename(t *testing.T) {
	dir := t.TempDir()
	writePackagesList(t, dir, "com.example.app 10101 0 /data/user/0/com.example.app default\n")

	store := newTestStore(t)
	bus := events.NewBus(16)
	defer bus.Close()

	var refreshed atomic.Int32
	unsubscribe := bus.Subscribe(func(events.Event) {
		refreshed.Add(1)
	}, events.EventUIDRefreshed)
	defer unsubscribe()

	mon, err := New(Config{SystemDir: dir, Debounce: 50 * time.Millisecond}, store, bus)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mon.Run(ctx) }()

	// Let the watcher settle past the initial refresh.
	time.Sleep(200 * time.Millisecond)
	initial := refreshed.Load()

	// Simulate the package manager: write the tmp list, then rename it
	// over the real one.
	tmp := filepath.Join(dir, tmpName)
	content := "com.example.app 10101 0 /data/user/0/com.example.app default\ncom.added.app 10103 0 /data/user/0/com.added.app default\n"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		t.Fatalf("write tmp list: %v", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, listName)); err != nil {
		t.Fatalf("rename tmp list: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for refreshed.Load() == initial {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for refresh after rename")
		case <-time.After(20 * time.Millisecond):
		}
	}

	count, err := store.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 packages after rename, got %d", count)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
