package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/rootd/internal/broker"
	"github.com/dohr-michael/rootd/internal/config"
	"github.com/dohr-michael/rootd/internal/events"
	"github.com/dohr-michael/rootd/internal/heartbeat"
	"github.com/dohr-michael/rootd/internal/superkey"
)

// NewBrokerCommand returns the broker subcommand.
func NewBrokerCommand() *cli.Command {
	return &cli.Command{
		Name:  "broker",
		Usage: "Serve privileged file reads over the unix socket",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "socket",
				Usage: "Unix socket to listen on",
			},
			&cli.BoolFlag{
				Name:  "require-key",
				Usage: "Require the stored superkey on every request",
			},
		},
		Action: runBroker,
	}
}

func runBroker(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)
	if cmd.IsSet("socket") {
		cfg.Broker.Socket = cmd.String("socket")
	}

	var key string
	if cmd.Bool("require-key") {
		store := superkey.New(config.AgeKeyPath(), config.SuperkeyPath())
		loaded, err := store.Load()
		if err != nil {
			return err
		}
		key = loaded
	}

	bus := events.NewBus(cfg.Events.BufferSize)
	defer bus.Close()

	server, err := broker.NewServer(broker.Config{
		Socket: cfg.Broker.Socket,
		Roots:  cfg.Broker.Roots,
		Key:    key,
	}, bus)
	if err != nil {
		return err
	}

	hb := heartbeat.NewWriter(config.HeartbeatPath(), cfg.Broker.Socket)
	hb.Start()
	defer hb.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
