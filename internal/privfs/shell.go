package privfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Shell reads files by spawning an elevation binary per call.
// Each call is a fresh child process; the context cancels it.
type Shell struct {
	Elevator string        // defaults to "su"
	Timeout  time.Duration // optional per-call bound
}

func (s *Shell) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.run(ctx, "test -e "+quote(path))
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, err
}

func (s *Shell) ReadAll(ctx context.Context, path string) ([]byte, error) {
	out, err := s.run(ctx, "cat "+quote(path))
	if err != nil {
		return nil, fmt.Errorf("elevated read %s: %w", path, err)
	}
	return out, nil
}

func (s *Shell) run(ctx context.Context, script string) ([]byte, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	elevator := s.Elevator
	if elevator == "" {
		elevator = "su"
	}

	cmd := exec.CommandContext(ctx, elevator, "-c", script)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && stderr.Len() > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// quote wraps s in single quotes for safe interpolation into a shell command.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
