//go:build linux

package mount

import (
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sys/unix"
)

// Overlay mounts the given lower layers over target, with the target itself
// as the bottom layer. upperdir/workdir enable a writable overlay when both
// are non-empty.
func Overlay(target string, lowerdirs []string, upperdir, workdir string) error {
	if len(lowerdirs) == 0 {
		slog.Info("mount: no layers for partition, skip", "target", target)
		return nil
	}

	opts := "lowerdir=" + strings.Join(lowerdirs, ":") + ":" + target
	if upperdir != "" && workdir != "" {
		opts += ",upperdir=" + upperdir + ",workdir=" + workdir
	}

	if err := unix.Mount("overlay", target, "overlay", 0, opts); err != nil {
		return fmt.Errorf("overlay %s: %w", target, err)
	}
	slog.Info("mount: overlay applied", "target", target, "layers", len(lowerdirs))
	return nil
}

// Bind performs a recursive bind mount of from onto to.
func Bind(from, to string) error {
	if err := unix.Mount(from, to, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("bind %s -> %s: %w", from, to, err)
	}
	return nil
}

// Tmpfs mounts a private tmpfs on dest.
func Tmpfs(dest string) error {
	if err := unix.Mount("rootd", dest, "tmpfs", 0, ""); err != nil {
		return fmt.Errorf("tmpfs %s: %w", dest, err)
	}
	if err := unix.Mount("", dest, "", unix.MS_PRIVATE, ""); err != nil {
		return fmt.Errorf("make %s private: %w", dest, err)
	}
	return nil
}
