package commands

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/rootd/internal/config"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "rootd",
		Usage: "Privileged state daemon for rooted devices",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewProbeCommand(),
			NewBrokerCommand(),
			NewPostFsDataCommand(),
			NewServiceCommand(),
			NewBootCompletedCommand(),
			NewUIDListenerCommand(),
			NewModuleCommand(),
			NewSuperkeyCommand(),
			NewStatusCommand(),
		},
	}
}

// loadConfig reads the config named by the --config flag, falling back
// to defaults when the file is missing.
func loadConfig(cmd *cli.Command) *config.Config {
	if cmd.Bool("debug") {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	configPath := cmd.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Warn("config not found, using defaults", "path", configPath, "error", err)
		return config.Default()
	}
	return cfg
}
