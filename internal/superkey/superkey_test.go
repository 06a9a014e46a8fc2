package superkey

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return New(filepath.Join(dir, ".age-key"), filepath.Join(dir, ".superkey"))
}

func TestEnsureIdentity_CreatesFile(t *testing.T) {
	s := newTestStore(t)

	if err := s.EnsureIdentity(); err != nil {
		t.Fatalf("EnsureIdentity: %v", err)
	}

	info, err := os.Stat(s.keyPath)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("permissions = %o, want 0600", info.Mode().Perm())
	}
}

func TestEnsureIdentity_Idempotent(t *testing.T) {
	s := newTestStore(t)

	if err := s.EnsureIdentity(); err != nil {
		t.Fatalf("first call: %v", err)
	}
	data1, _ := os.ReadFile(s.keyPath)

	if err := s.EnsureIdentity(); err != nil {
		t.Fatalf("second call: %v", err)
	}
	data2, _ := os.ReadFile(s.keyPath)

	if string(data1) != string(data2) {
		t.Error("idempotency broken: file changed on second call")
	}
}

func TestSetLoad_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	key := "correct-horse-battery-staple"
	if err := s.Set(key); err != nil {
		t.Fatalf("Set: %v", err)
	}

	info, err := os.Stat(s.superkeyPath)
	if err != nil {
		t.Fatalf("stat superkey: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("permissions = %o, want 0600", info.Mode().Perm())
	}

	raw, err := os.ReadFile(s.superkeyPath)
	if err != nil {
		t.Fatalf("read superkey: %v", err)
	}
	if string(raw) == key {
		t.Error("superkey stored in plaintext")
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded != key {
		t.Errorf("loaded = %q, want %q", loaded, key)
	}
}

func TestSet_RejectsEmpty(t *testing.T) {
	s := newTestStore(t)
	if err := s.Set(""); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestIsSetAndClear(t *testing.T) {
	s := newTestStore(t)

	if s.IsSet() {
		t.Error("IsSet = true before any key stored")
	}
	if err := s.Set("some-key"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !s.IsSet() {
		t.Error("IsSet = false after Set")
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if s.IsSet() {
		t.Error("IsSet = true after Clear")
	}
	// clearing twice is fine
	if err := s.Clear(); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}

func TestVerify(t *testing.T) {
	s := newTestStore(t)

	if err := s.Set("the-real-key"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	ok, err := s.Verify("the-real-key")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Error("Verify rejected the stored key")
	}

	ok, err = s.Verify("wrong-key")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Error("Verify accepted a wrong key")
	}
}

func TestLoad_MissingKey(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Load(); err == nil {
		t.Error("expected error when no superkey stored")
	}
}

func TestLoad_RejectsPlaintextFile(t *testing.T) {
	s := newTestStore(t)
	if err := s.EnsureIdentity(); err != nil {
		t.Fatalf("EnsureIdentity: %v", err)
	}
	if err := os.WriteFile(s.superkeyPath, []byte("not-sealed"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := s.Load(); err == nil {
		t.Error("expected error for plaintext superkey file")
	}
}
