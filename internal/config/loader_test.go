package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	content := `{
	// This is a JSONC comment
	"broker": {
		"socket": "/tmp/rootd-test.sock",
		"roots": ["${{ .Env.ROOTD_TEST_ROOT }}"]
	},
	"privfs": {
		"elevator": "sudo",
		"timeout": "5s"
	},
	"events": {
		"buffer_size": 256
	}
}`

	dir := t.TempDir()
	path := filepath.Join(dir, "config.jsonc")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ROOTD_TEST_ROOT", "/data/adb")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Broker.Socket != "/tmp/rootd-test.sock" {
		t.Errorf("socket: got %q", cfg.Broker.Socket)
	}
	if len(cfg.Broker.Roots) != 1 || cfg.Broker.Roots[0] != "/data/adb" {
		t.Errorf("roots: got %v", cfg.Broker.Roots)
	}
	if cfg.Privfs.Elevator != "sudo" {
		t.Errorf("elevator: got %q", cfg.Privfs.Elevator)
	}
	if cfg.Privfs.Timeout.Duration() != 5*time.Second {
		t.Errorf("timeout: got %s", cfg.Privfs.Timeout.Duration())
	}
	if cfg.Events.BufferSize != 256 {
		t.Errorf("buffer_size: got %d", cfg.Events.BufferSize)
	}
	// Defaults still applied for untouched sections
	if cfg.UIDMon.SystemDir != "/data/system" {
		t.Errorf("system_dir default: got %q", cfg.UIDMon.SystemDir)
	}
	if cfg.UIDMon.ReconcileCron == "" {
		t.Error("expected reconcile cron default")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.jsonc")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Privfs.Elevator != "su" {
		t.Errorf("elevator default: got %q", cfg.Privfs.Elevator)
	}
	if cfg.Events.BufferSize != 1024 {
		t.Errorf("buffer_size default: got %d", cfg.Events.BufferSize)
	}
	if cfg.Stages.ScriptTimeout.Duration() != 2*time.Minute {
		t.Errorf("script timeout default: got %s", cfg.Stages.ScriptTimeout.Duration())
	}
}

func TestBasePathOverride(t *testing.T) {
	t.Setenv("ROOTD_BASE", "/tmp/adb-test")
	if BasePath() != "/tmp/adb-test" {
		t.Errorf("BasePath: got %q", BasePath())
	}
	if MountModePath() != "/tmp/adb-test/.mount_mode" {
		t.Errorf("MountModePath: got %q", MountModePath())
	}
	if ModuleDir() != "/tmp/adb-test/modules" {
		t.Errorf("ModuleDir: got %q", ModuleDir())
	}
}
