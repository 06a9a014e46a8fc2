//go:build linux

package selinux

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// GetFileCon returns the SELinux context of path without following
// symlinks.
func GetFileCon(path string) (string, error) {
	buf := make([]byte, 256)
	n, err := unix.Lgetxattr(path, xattrName, buf)
	if err != nil {
		if errors.Is(err, unix.ERANGE) {
			buf = make([]byte, 4096)
			n, err = unix.Lgetxattr(path, xattrName, buf)
		}
		if err != nil {
			return "", fmt.Errorf("getxattr %s: %w", path, err)
		}
	}
	return strings.TrimRight(string(buf[:n]), "\x00"), nil
}

// SetFileCon sets the SELinux context of path without following
// symlinks.
func SetFileCon(path, con string) error {
	if err := unix.Lsetxattr(path, xattrName, []byte(con), 0); err != nil {
		return fmt.Errorf("setxattr %s: %w", path, err)
	}
	return nil
}

// RestoreSyscon walks dir and relabels everything to SystemCon.
// Contexts are read before writing so already-correct files are left
// untouched.
func RestoreSyscon(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		current, err := GetFileCon(path)
		if err == nil && current == SystemCon {
			return nil
		}
		if err := SetFileCon(path, SystemCon); err != nil {
			return err
		}
		return nil
	})
}
