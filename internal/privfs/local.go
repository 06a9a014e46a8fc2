package privfs

import (
	"context"
	"os"
)

// Local reads files directly. Only useful when the process already has the
// required privileges (the broker, or a root shell).
type Local struct{}

func (Local) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (Local) ReadAll(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}
