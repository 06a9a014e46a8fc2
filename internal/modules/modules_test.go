package modules

import (
	"os"
	"path/filepath"
	"testing"
)

func writeModule(t *testing.T, root, id string, flags ...string) string {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	prop := "id=" + id + "\nname=Test " + id + "\nversion=1.0\n"
	if err := os.WriteFile(filepath.Join(dir, "module.prop"), []byte(prop), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, f := range flags {
		if err := os.WriteFile(filepath.Join(dir, f), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestListAndFlags(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "alpha")
	writeModule(t, root, "beta", DisableFlag)
	writeModule(t, root, "gamma", SkipMountFlag, RemoveFlag)

	mods, err := NewStore(root).List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(mods) != 3 {
		t.Fatalf("expected 3 modules, got %d", len(mods))
	}

	if mods[0].ID != "alpha" || mods[0].Disabled {
		t.Errorf("alpha: %+v", mods[0])
	}
	if !mods[1].Disabled {
		t.Errorf("beta should be disabled: %+v", mods[1])
	}
	if !mods[2].SkipMount || !mods[2].Remove {
		t.Errorf("gamma flags: %+v", mods[2])
	}
	if mods[0].Props["name"] != "Test alpha" {
		t.Errorf("props: %v", mods[0].Props)
	}
}

func TestListMissingRoot(t *testing.T) {
	mods, err := NewStore(filepath.Join(t.TempDir(), "nope")).List()
	if err != nil || mods != nil {
		t.Fatalf("missing root: got %v, %v", mods, err)
	}
}

func TestDisableEnable(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "alpha")
	s := NewStore(root)

	if err := s.Disable("alpha"); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	m, err := s.Get("alpha")
	if err != nil || !m.Disabled {
		t.Fatalf("expected disabled, got %+v, %v", m, err)
	}

	if err := s.Enable("alpha"); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	m, _ = s.Get("alpha")
	if m.Disabled {
		t.Error("expected enabled")
	}

	// Enabling an already-enabled module is a no-op
	if err := s.Enable("alpha"); err != nil {
		t.Errorf("Enable twice: %v", err)
	}
}

func TestDisableAll(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "alpha")
	writeModule(t, root, "beta")
	s := NewStore(root)

	if err := s.DisableAll(); err != nil {
		t.Fatalf("DisableAll: %v", err)
	}
	mods, _ := s.List()
	for _, m := range mods {
		if !m.Disabled {
			t.Errorf("%s not disabled", m.ID)
		}
	}
}

func TestPrune(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "keep")
	writeModule(t, root, "gone", RemoveFlag)
	s := NewStore(root)

	removed, err := s.Prune()
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(removed) != 1 || removed[0] != "gone" {
		t.Errorf("removed: %v", removed)
	}
	if _, err := os.Stat(filepath.Join(root, "gone")); !os.IsNotExist(err) {
		t.Error("expected gone removed from disk")
	}
	if _, err := s.Get("keep"); err != nil {
		t.Errorf("keep should survive: %v", err)
	}
}

func TestPromoteUpdates(t *testing.T) {
	root := t.TempDir()
	update := t.TempDir()
	writeModule(t, root, "alpha") // old version
	dir := writeModule(t, update, "alpha", UpdateFlag)
	if err := os.WriteFile(filepath.Join(dir, "new-file"), []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(root)
	promoted, err := s.PromoteUpdates(update)
	if err != nil {
		t.Fatalf("PromoteUpdates: %v", err)
	}
	if len(promoted) != 1 || promoted[0] != "alpha" {
		t.Errorf("promoted: %v", promoted)
	}
	if _, err := os.Stat(filepath.Join(root, "alpha", "new-file")); err != nil {
		t.Error("expected new version in live store")
	}
	m, _ := s.Get("alpha")
	if m.Update {
		t.Error("update flag should be cleared")
	}
}

func TestPromoteUpdatesMissingDir(t *testing.T) {
	s := NewStore(t.TempDir())
	promoted, err := s.PromoteUpdates(filepath.Join(t.TempDir(), "nope"))
	if err != nil || promoted != nil {
		t.Fatalf("got %v, %v", promoted, err)
	}
}

func TestStageScripts(t *testing.T) {
	root := t.TempDir()
	a := writeModule(t, root, "alpha")
	b := writeModule(t, root, "beta", DisableFlag)
	os.WriteFile(filepath.Join(a, "service.sh"), []byte("true\n"), 0o755)
	os.WriteFile(filepath.Join(b, "service.sh"), []byte("true\n"), 0o755)

	scripts, err := NewStore(root).StageScripts("service")
	if err != nil {
		t.Fatalf("StageScripts: %v", err)
	}
	if len(scripts) != 1 {
		t.Fatalf("expected 1 script (disabled module skipped), got %d", len(scripts))
	}
	if filepath.Base(filepath.Dir(scripts[0])) != "alpha" {
		t.Errorf("got %q", scripts[0])
	}
}

func TestSystemPropFiles(t *testing.T) {
	root := t.TempDir()
	a := writeModule(t, root, "alpha")
	g := writeModule(t, root, "gone", RemoveFlag)
	os.WriteFile(filepath.Join(a, "system.prop"), []byte("ro.x=1\n"), 0o644)
	os.WriteFile(filepath.Join(g, "system.prop"), []byte("ro.y=1\n"), 0o644)

	files, err := NewStore(root).SystemPropFiles()
	if err != nil {
		t.Fatalf("SystemPropFiles: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
}
