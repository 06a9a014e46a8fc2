package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/rootd/internal/config"
	"github.com/dohr-michael/rootd/internal/events"
	"github.com/dohr-michael/rootd/internal/pkgstore"
	"github.com/dohr-michael/rootd/internal/uidmon"
)

// NewUIDListenerCommand returns the uid-listener subcommand.
func NewUIDListenerCommand() *cli.Command {
	return &cli.Command{
		Name:  "uid-listener",
		Usage: "Watch the system package list and keep the local snapshot current",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "system-dir",
				Usage: "Directory holding packages.list",
			},
		},
		Action: runUIDListener,
	}
}

func runUIDListener(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)
	if cmd.IsSet("system-dir") {
		cfg.UIDMon.SystemDir = cmd.String("system-dir")
	}

	store, err := pkgstore.Open(config.PackagesDBPath())
	if err != nil {
		return err
	}
	defer store.Close()

	bus := events.NewBus(cfg.Events.BufferSize)
	defer bus.Close()

	mon, err := uidmon.New(uidmon.Config{
		SystemDir:     cfg.UIDMon.SystemDir,
		Debounce:      cfg.UIDMon.Debounce.Duration(),
		ReconcileCron: cfg.UIDMon.ReconcileCron,
	}, store, bus)
	if err != nil {
		return err
	}

	return mon.Run(ctx)
}
