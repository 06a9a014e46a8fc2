// Package hooks runs WASM stage hooks shipped by modules. A module
// drops compiled plugins under hooks/*.wasm and exports one function
// per boot stage it wants to observe; the export name is the stage
// name with dashes replaced by underscores.
package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	extism "github.com/extism/go-sdk"

	"github.com/dohr-michael/rootd/internal/events"
	"github.com/dohr-michael/rootd/internal/modules"
)

// Hook is a discovered WASM plugin belonging to a module.
type Hook struct {
	Module string
	Path   string
}

// Discover lists hooks/*.wasm for every enabled module.
func Discover(store *modules.Store) ([]Hook, error) {
	mods, err := store.List()
	if err != nil {
		return nil, err
	}
	var hooks []Hook
	for _, m := range mods {
		if m.Disabled || m.Remove {
			continue
		}
		matches, err := doublestar.FilepathGlob(filepath.Join(m.Dir, "hooks", "*.wasm"))
		if err != nil {
			return nil, fmt.Errorf("glob hooks for %s: %w", m.ID, err)
		}
		sort.Strings(matches)
		for _, path := range matches {
			hooks = append(hooks, Hook{Module: m.ID, Path: path})
		}
	}
	return hooks, nil
}

// Runtime manages the lifecycle of loaded stage hooks.
type Runtime struct {
	bus     *events.Bus
	plugins []*loadedHook
}

type loadedHook struct {
	hook   Hook
	plugin *extism.Plugin
}

func NewRuntime(bus *events.Bus) *Runtime {
	return &Runtime{bus: bus}
}

// Load instantiates a discovered hook. WASI is enabled but the plugin
// gets no filesystem or network access.
func (r *Runtime) Load(ctx context.Context, hook Hook) error {
	manifest := extism.Manifest{
		Wasm: []extism.Wasm{
			extism.WasmFile{Path: hook.Path},
		},
	}
	config := extism.PluginConfig{
		EnableWasi: true,
	}
	plugin, err := extism.NewPlugin(ctx, manifest, config, hostFunctions(r.bus, hook.Module))
	if err != nil {
		return fmt.Errorf("load hook %s (%s): %w", hook.Path, hook.Module, err)
	}
	r.plugins = append(r.plugins, &loadedHook{hook: hook, plugin: plugin})
	slog.Info("hook loaded", "module", hook.Module, "wasm", hook.Path)
	return nil
}

// LoadAll discovers and loads every hook, skipping the ones that fail
// to instantiate.
func (r *Runtime) LoadAll(ctx context.Context, store *modules.Store) error {
	hooks, err := Discover(store)
	if err != nil {
		return err
	}
	for _, h := range hooks {
		if err := r.Load(ctx, h); err != nil {
			slog.Warn("hook skipped", "module", h.Module, "wasm", h.Path, "error", err)
		}
	}
	return nil
}

// RunStage calls the stage export on every loaded hook that has it.
// Hook failures are logged, never fatal.
func (r *Runtime) RunStage(ctx context.Context, stage string) {
	export := ExportName(stage)
	for _, lh := range r.plugins {
		if !lh.plugin.FunctionExists(export) {
			continue
		}
		if _, _, err := lh.plugin.CallWithContext(ctx, export, nil); err != nil {
			slog.Warn("hook failed", "module", lh.hook.Module, "stage", stage, "error", err)
		}
	}
}

// Close releases all loaded hooks.
func (r *Runtime) Close(ctx context.Context) {
	for _, lh := range r.plugins {
		if err := lh.plugin.Close(ctx); err != nil {
			slog.Warn("close hook", "module", lh.hook.Module, "error", err)
		}
	}
	r.plugins = nil
}

// ExportName maps a stage name to its WASM export name.
func ExportName(stage string) string {
	return strings.ReplaceAll(stage, "-", "_")
}
