package commands

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/rootd/internal/config"
	"github.com/dohr-michael/rootd/internal/events"
	"github.com/dohr-michael/rootd/internal/hooks"
	"github.com/dohr-michael/rootd/internal/modules"
	"github.com/dohr-michael/rootd/internal/mount"
	"github.com/dohr-michael/rootd/internal/mountmode"
	"github.com/dohr-michael/rootd/internal/privfs"
	"github.com/dohr-michael/rootd/internal/selinux"
	"github.com/dohr-michael/rootd/internal/stage"
)

// NewPostFsDataCommand returns the post-fs-data subcommand. It runs as
// root early in boot: it settles the module store, applies module
// mounts according to the mount mode, then executes the stage scripts.
func NewPostFsDataCommand() *cli.Command {
	return &cli.Command{
		Name:  "post-fs-data",
		Usage: "Run the post-fs-data boot stage",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "safe-mode",
				Usage: "Disable all modules and skip mounting",
			},
			&cli.StringFlag{
				Name:  "partition-root",
				Usage: "Root to scan for extended partitions",
				Value: "/",
			},
		},
		Action: runPostFsData,
	}
}

// NewServiceCommand returns the service subcommand.
func NewServiceCommand() *cli.Command {
	return &cli.Command{
		Name:   "service",
		Usage:  "Run the service boot stage",
		Action: func(ctx context.Context, cmd *cli.Command) error { return runScriptStage(ctx, cmd, stage.Service) },
	}
}

// NewBootCompletedCommand returns the boot-completed subcommand.
func NewBootCompletedCommand() *cli.Command {
	return &cli.Command{
		Name:   "boot-completed",
		Usage:  "Run the boot-completed stage",
		Action: func(ctx context.Context, cmd *cli.Command) error { return runScriptStage(ctx, cmd, stage.BootCompleted) },
	}
}

func runPostFsData(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)

	store := modules.NewStore(config.ModuleDir())
	bus := events.NewBus(cfg.Events.BufferSize)
	defer bus.Close()
	runner := stage.NewRunner(store, config.DataPath(), cfg.Stages.ScriptTimeout.Duration(), bus)

	if cmd.Bool("safe-mode") {
		slog.Warn("safe mode: disabling all modules")
		enabled, err := store.List()
		if err != nil {
			return err
		}
		if err := store.DisableAll(); err != nil {
			return err
		}
		for _, m := range enabled {
			if m.Disabled {
				continue
			}
			bus.Publish(events.NewEvent(events.EventModuleDisabled, events.SourceStage, map[string]any{
				"module": m.ID,
				"reason": "safe-mode",
			}))
		}
		return runner.RunStage(ctx, stage.PostFsData)
	}

	// Settle the store before anything mounts or runs.
	if promoted, err := store.PromoteUpdates(config.ModuleUpdateDir()); err != nil {
		slog.Warn("promote module updates", "error", err)
	} else if len(promoted) > 0 {
		slog.Info("module updates promoted", "modules", promoted)
	}
	if removed, err := store.Prune(); err != nil {
		slog.Warn("prune modules", "error", err)
	} else if len(removed) > 0 {
		bus.Publish(events.NewEvent(events.EventModulesPruned, events.SourceStage, map[string]any{
			"removed": removed,
		}))
	}
	if err := selinux.RestoreSyscon(config.ModuleDir()); err != nil {
		slog.Warn("restore module contexts", "error", err)
	}

	prober := mountmode.New(privfs.Local{}, config.MountModePath(), config.LiteModePath())
	mode := prober.Detect(ctx)
	slog.Info("mount mode detected", "mode", mode)
	bus.Publish(events.NewEvent(events.EventProbeChecked, events.SourceProbe, map[string]any{
		"mode":       string(mode),
		"metamodule": mode == mountmode.ModeMetaModule,
	}))

	applySystemProps(ctx, store)

	switch mode {
	case mountmode.ModeDisabled:
		slog.Info("module mounting disabled")

	case mountmode.ModeMetaModule:
		if err := runner.RunMetaModuleMount(ctx); err != nil {
			slog.Warn("metamodule mount", "error", err)
			bus.Publish(events.NewEvent(events.EventMountFailed, events.SourceMount, map[string]any{
				"mode":  string(mode),
				"error": err.Error(),
			}))
		} else {
			bus.Publish(events.NewEvent(events.EventMountApplied, events.SourceMount, map[string]any{
				"mode": string(mode),
			}))
		}

	default:
		if _, err := os.Stat(config.ForceOverlayPath()); err != nil {
			slog.Info("overlay not forced, leaving mounting to the kernel helper")
			break
		}
		plan, err := mount.CollectLayers(store, cmd.String("partition-root"))
		if err != nil {
			return err
		}
		if plan.Empty() {
			slog.Info("no module layers to mount")
			break
		}
		if err := mount.Apply(plan); err != nil {
			slog.Warn("apply overlay plan", "error", err)
			bus.Publish(events.NewEvent(events.EventMountFailed, events.SourceMount, map[string]any{
				"mode":  string(mode),
				"error": err.Error(),
			}))
		} else {
			bus.Publish(events.NewEvent(events.EventMountApplied, events.SourceMount, map[string]any{
				"mode":   string(mode),
				"system": len(plan.System),
			}))
		}
	}

	if err := runner.RunStage(ctx, stage.PostFsData); err != nil {
		return err
	}
	runHooks(ctx, bus, store, stage.PostFsData)
	return nil
}

// runScriptStage runs a stage that only executes scripts and hooks.
func runScriptStage(ctx context.Context, cmd *cli.Command, name string) error {
	cfg := loadConfig(cmd)

	store := modules.NewStore(config.ModuleDir())
	bus := events.NewBus(cfg.Events.BufferSize)
	defer bus.Close()

	runner := stage.NewRunner(store, config.DataPath(), cfg.Stages.ScriptTimeout.Duration(), bus)
	if err := runner.RunStage(ctx, name); err != nil {
		return err
	}
	runHooks(ctx, bus, store, name)
	return nil
}

// applySystemProps feeds each enabled module's system.prop to resetprop.
// Missing resetprop or a bad prop file never fails the stage.
func applySystemProps(ctx context.Context, store *modules.Store) {
	files, err := store.SystemPropFiles()
	if err != nil {
		slog.Warn("discover system.prop files", "error", err)
		return
	}
	for _, f := range files {
		out, err := exec.CommandContext(ctx, "resetprop", "--file", f).CombinedOutput()
		if err != nil {
			slog.Warn("apply system.prop", "file", f, "error", err, "output", strings.TrimSpace(string(out)))
			continue
		}
		slog.Info("system.prop applied", "file", f)
	}
}

// runHooks loads the modules' WASM hooks and calls the stage export.
// Hook problems never fail a boot stage.
func runHooks(ctx context.Context, bus *events.Bus, store *modules.Store, name string) {
	rt := hooks.NewRuntime(bus)
	defer rt.Close(ctx)
	if err := rt.LoadAll(ctx, store); err != nil {
		slog.Warn("load hooks", "error", err)
		return
	}
	rt.RunStage(ctx, name)
}
