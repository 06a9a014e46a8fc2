// Package stage executes boot stage scripts with an embedded POSIX shell.
package stage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/dohr-michael/rootd/internal/events"
	"github.com/dohr-michael/rootd/internal/modules"
)

// Stage names, in boot order.
const (
	PostFsData    = "post-fs-data"
	PostMount     = "post-mount"
	Service       = "service"
	BootCompleted = "boot-completed"
)

// Runner executes the common and per-module scripts of a boot stage.
// Script failures are logged and published, never fatal to the stage.
type Runner struct {
	store     *modules.Store
	commonDir string // directory containing <stage>.d
	timeout   time.Duration
	bus       *events.Bus
}

// NewRunner creates a stage runner. bus may be nil.
func NewRunner(store *modules.Store, commonDir string, timeout time.Duration, bus *events.Bus) *Runner {
	return &Runner{
		store:     store,
		commonDir: commonDir,
		timeout:   timeout,
		bus:       bus,
	}
}

// RunStage runs all common scripts, then all module scripts, for stage.
func (r *Runner) RunStage(ctx context.Context, stage string) error {
	r.publish(events.EventStageStarted, map[string]any{"stage": stage})

	common, err := r.commonScripts(stage)
	if err != nil {
		return fmt.Errorf("discover common %s scripts: %w", stage, err)
	}
	for _, script := range common {
		r.runLogged(ctx, stage, script, map[string]string{
			"ROOTD_STAGE": stage,
		})
	}

	moduleScripts, err := r.store.StageScripts(stage)
	if err != nil {
		return fmt.Errorf("discover module %s scripts: %w", stage, err)
	}
	for _, script := range moduleScripts {
		moddir := filepath.Dir(script)
		r.runLogged(ctx, stage, script, map[string]string{
			"ROOTD_STAGE": stage,
			"MODDIR":      moddir,
		})
	}

	r.publish(events.EventStageCompleted, map[string]any{
		"stage":   stage,
		"common":  len(common),
		"modules": len(moduleScripts),
	})
	return nil
}

// RunMetaModuleMount executes the metamodule's mount script, which takes
// over all module mounting when the mount mode is metamodule.
func (r *Runner) RunMetaModuleMount(ctx context.Context) error {
	script := filepath.Join(r.store.Root(), "metamodule", "mount.sh")
	if _, err := os.Stat(script); err != nil {
		return fmt.Errorf("metamodule mount script: %w", err)
	}
	return r.runScript(ctx, script, map[string]string{
		"MODDIR":      r.store.Root(),
		"ROOTD_STAGE": "mount",
	})
}

// commonScripts returns <commonDir>/<stage>.d/*.sh sorted by name.
func (r *Runner) commonScripts(stage string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(r.commonDir, stage+".d", "*.sh"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func (r *Runner) runLogged(ctx context.Context, stage, script string, env map[string]string) {
	slog.Info("stage: running script", "stage", stage, "script", script)
	if err := r.runScript(ctx, script, env); err != nil {
		slog.Warn("stage: script failed", "stage", stage, "script", script, "error", err)
		r.publish(events.EventScriptFailed, map[string]any{
			"stage":  stage,
			"script": script,
			"error":  err.Error(),
		})
	}
}

// runScript parses and runs one script with the embedded interpreter.
func (r *Runner) runScript(ctx context.Context, path string, env map[string]string) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open script: %w", err)
	}
	defer f.Close()

	file, err := syntax.NewParser().Parse(f, path)
	if err != nil {
		return fmt.Errorf("parse script: %w", err)
	}

	environ := os.Environ()
	for k, v := range env {
		environ = append(environ, k+"="+v)
	}

	runner, err := interp.New(
		interp.Dir(filepath.Dir(path)),
		interp.Env(expand.ListEnviron(environ...)),
		interp.StdIO(nil, os.Stdout, os.Stderr),
	)
	if err != nil {
		return fmt.Errorf("init interpreter: %w", err)
	}

	if err := runner.Run(ctx, file); err != nil {
		return fmt.Errorf("run script: %w", err)
	}
	return nil
}

func (r *Runner) publish(t events.EventType, payload map[string]any) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.NewEvent(t, events.SourceStage, payload))
}
