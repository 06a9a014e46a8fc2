// Package fsutil contains filesystem path helpers for the broker.
package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrPathTraversal = errors.New("path escapes root")
	ErrTooManyLinks  = errors.New("too many symlink hops")
)

// maxSymlinkHops bounds symlink chain resolution, matching the kernel's
// follow limit.
const maxSymlinkHops = 40

// JoinSecure joins root and requestPath ensuring the result stays within root.
// Symlinks are resolved segment by segment; any hop outside root returns
// ErrPathTraversal.
func JoinSecure(root, requestPath string) (string, error) {
	if requestPath == "" {
		requestPath = "/"
	}
	clean := filepath.Clean("/" + requestPath)
	rel := strings.TrimPrefix(clean, "/")

	return resolveWithinRoot(root, rel)
}

// Contains reports whether path is lexically inside root (or equal to it).
func Contains(root, path string) bool {
	return within(filepath.Clean(root), filepath.Clean(path))
}

func resolveWithinRoot(root, relPath string) (string, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}

	parts := splitPath(relPath)
	cur := rootAbs
	for _, p := range parts {
		cur = filepath.Join(cur, p)

		// Resolve the full symlink chain at this segment; every hop
		// must land back inside root before the next one is followed.
		for hops := 0; ; hops++ {
			if hops >= maxSymlinkHops {
				return "", ErrTooManyLinks
			}
			if !within(rootAbs, cur) {
				return "", ErrPathTraversal
			}
			fi, err := os.Lstat(cur)
			if err != nil {
				// Not existing yet; prefix check already passed.
				break
			}
			if fi.Mode()&os.ModeSymlink == 0 {
				break
			}
			target, err := os.Readlink(cur)
			if err != nil {
				return "", err
			}
			next := target
			if !filepath.IsAbs(target) {
				next = filepath.Join(filepath.Dir(cur), target)
			}
			next, err = filepath.Abs(next)
			if err != nil {
				return "", err
			}
			cur = next
		}
	}
	return cur, nil
}

func within(root, path string) bool {
	root = filepath.Clean(root)
	path = filepath.Clean(path)
	if root == path {
		return true
	}
	if !strings.HasSuffix(root, string(filepath.Separator)) {
		root += string(filepath.Separator)
	}
	return strings.HasPrefix(path+string(filepath.Separator), root)
}

func splitPath(p string) []string {
	cleaned := filepath.Clean(p)
	if cleaned == "." || cleaned == string(filepath.Separator) {
		return nil
	}
	parts := []string{}
	for _, s := range strings.Split(cleaned, string(filepath.Separator)) {
		if s == "" {
			continue
		}
		parts = append(parts, s)
	}
	return parts
}
