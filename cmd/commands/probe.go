package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/rootd/internal/config"
	"github.com/dohr-michael/rootd/internal/mountmode"
	"github.com/dohr-michael/rootd/internal/privfs"
)

// NewProbeCommand returns the probe subcommand.
func NewProbeCommand() *cli.Command {
	return &cli.Command{
		Name:  "probe",
		Usage: "Check whether the metamodule mount mode is active",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "mode",
				Usage: "Print the detected mount mode instead of true/false",
			},
			&cli.StringFlag{
				Name:  "key",
				Usage: "Broker auth key",
			},
		},
		Action: runProbe,
	}
}

func runProbe(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)

	reader := privfs.Default(privfs.Options{
		Socket:   cfg.Broker.Socket,
		Key:      cmd.String("key"),
		Elevator: cfg.Privfs.Elevator,
	})
	prober := mountmode.New(reader, config.MountModePath(), config.LiteModePath())

	if cmd.Bool("mode") {
		fmt.Println(prober.Detect(ctx))
		return nil
	}
	fmt.Println(prober.IsMetaModule(ctx))
	return nil
}
