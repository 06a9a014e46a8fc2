package privfs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "marker")

	ok, err := Local{}.Exists(context.Background(), path)
	if err != nil || ok {
		t.Fatalf("absent: got ok=%v err=%v", ok, err)
	}

	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	ok, err = Local{}.Exists(context.Background(), path)
	if err != nil || !ok {
		t.Fatalf("present: got ok=%v err=%v", ok, err)
	}
}

func TestLocalReadAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "marker")
	if err := os.WriteFile(path, []byte("metamodule\n"), 0644); err != nil {
		t.Fatal(err)
	}

	data, err := Local{}.ReadAll(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "metamodule\n" {
		t.Errorf("got %q", data)
	}
}

func TestShellReader(t *testing.T) {
	// "sh" stands in for the elevation binary; same -c calling convention.
	sh := &Shell{Elevator: "sh"}
	dir := t.TempDir()
	path := filepath.Join(dir, "marker file") // space exercises quoting

	ok, err := sh.Exists(context.Background(), path)
	if err != nil {
		t.Fatalf("Exists absent: %v", err)
	}
	if ok {
		t.Error("expected absent")
	}

	if err := os.WriteFile(path, []byte("metamodule"), 0644); err != nil {
		t.Fatal(err)
	}

	ok, err = sh.Exists(context.Background(), path)
	if err != nil || !ok {
		t.Fatalf("Exists present: got ok=%v err=%v", ok, err)
	}

	data, err := sh.ReadAll(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "metamodule" {
		t.Errorf("got %q", data)
	}
}

func TestShellReadAllMissing(t *testing.T) {
	sh := &Shell{Elevator: "sh"}
	_, err := sh.ReadAll(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestShellElevatorUnavailable(t *testing.T) {
	sh := &Shell{Elevator: "definitely-not-a-binary-rootd"}
	if _, err := sh.Exists(context.Background(), "/"); err == nil {
		t.Fatal("expected error when elevator is missing")
	}
}

func TestQuote(t *testing.T) {
	got := quote("/data/it's here")
	if !strings.HasPrefix(got, "'") || !strings.HasSuffix(got, "'") {
		t.Errorf("got %q", got)
	}
	if !strings.Contains(got, `'\''`) {
		t.Errorf("single quote not escaped: %q", got)
	}
}
