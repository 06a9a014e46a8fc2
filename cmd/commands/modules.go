package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/rootd/internal/config"
	"github.com/dohr-michael/rootd/internal/modules"
)

// NewModuleCommand returns the module subcommand.
func NewModuleCommand() *cli.Command {
	return &cli.Command{
		Name:  "module",
		Usage: "Manage installed modules",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List installed modules",
				Action: runModuleList,
			},
			{
				Name:      "disable",
				Usage:     "Disable a module",
				ArgsUsage: "<id>",
				Action:    runModuleDisable,
			},
			{
				Name:      "enable",
				Usage:     "Enable a module",
				ArgsUsage: "<id>",
				Action:    runModuleEnable,
			},
			{
				Name:   "prune",
				Usage:  "Remove modules flagged for removal",
				Action: runModulePrune,
			},
		},
		DefaultCommand: "list",
	}
}

func newModuleStore() *modules.Store {
	return modules.NewStore(config.ModuleDir())
}

func runModuleList(_ context.Context, _ *cli.Command) error {
	store := newModuleStore()

	list, err := store.List()
	if err != nil {
		return fmt.Errorf("list modules: %w", err)
	}

	if len(list) == 0 {
		fmt.Println("No modules installed.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tNAME\tVERSION")
	for _, m := range list {
		state := "enabled"
		switch {
		case m.Remove:
			state = "remove"
		case m.Disabled:
			state = "disabled"
		}
		name := m.Props["name"]
		if name == "" {
			name = "-"
		}
		version := m.Props["version"]
		if version == "" {
			version = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, state, name, version)
	}
	return w.Flush()
}

func runModuleDisable(_ context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: rootd module disable <id>")
	}
	return newModuleStore().Disable(id)
}

func runModuleEnable(_ context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: rootd module enable <id>")
	}
	return newModuleStore().Enable(id)
}

func runModulePrune(_ context.Context, _ *cli.Command) error {
	removed, err := newModuleStore().Prune()
	if err != nil {
		return err
	}
	if len(removed) == 0 {
		fmt.Println("Nothing to prune.")
		return nil
	}
	for _, id := range removed {
		fmt.Println("removed:", id)
	}
	return nil
}
