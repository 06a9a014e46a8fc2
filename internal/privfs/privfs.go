// Package privfs abstracts file access that may require elevated privileges.
//
// The caller's own process usually cannot open files under /data/adb; reads
// go through a capability that performs the I/O elsewhere: the broker's unix
// socket, an elevation shell, or directly when already running as root.
package privfs

import (
	"context"
	"os"
)

// Reader is the privileged file access capability.
type Reader interface {
	// Exists reports whether path exists. A missing path is not an error.
	Exists(ctx context.Context, path string) (bool, error)
	// ReadAll returns the full contents of path.
	ReadAll(ctx context.Context, path string) ([]byte, error)
}

// Options selects how Default builds a Reader.
type Options struct {
	Socket   string // broker unix socket path
	Key      string // broker auth key, if one is set
	Elevator string // elevation binary for the shell fallback
}

// Default returns the most direct Reader available: direct I/O when running
// as root, the broker socket when it is up, otherwise an elevation shell.
func Default(opts Options) Reader {
	if os.Geteuid() == 0 {
		return Local{}
	}
	if opts.Socket != "" {
		if _, err := os.Stat(opts.Socket); err == nil {
			return NewClient(opts.Socket, opts.Key)
		}
	}
	return &Shell{Elevator: opts.Elevator}
}
