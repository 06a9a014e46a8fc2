package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/dohr-michael/rootd/internal/config"
	"github.com/dohr-michael/rootd/internal/superkey"
)

// NewSuperkeyCommand returns the superkey subcommand.
func NewSuperkeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "superkey",
		Usage: "Manage the privileged access key",
		Commands: []*cli.Command{
			{
				Name:   "set",
				Usage:  "Store a new superkey (prompts on a terminal)",
				Action: runSuperkeySet,
			},
			{
				Name:   "status",
				Usage:  "Show whether a superkey is stored",
				Action: runSuperkeyStatus,
			},
			{
				Name:   "clear",
				Usage:  "Remove the stored superkey",
				Action: runSuperkeyClear,
			},
			{
				Name:      "verify",
				Usage:     "Check a candidate key against the stored one",
				ArgsUsage: "<key>",
				Action:    runSuperkeyVerify,
			},
		},
		DefaultCommand: "status",
	}
}

func newSuperkeyStore() *superkey.Store {
	return superkey.New(config.AgeKeyPath(), config.SuperkeyPath())
}

func runSuperkeySet(_ context.Context, _ *cli.Command) error {
	fmt.Fprint(os.Stderr, "New superkey: ")
	key, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("read key: %w", err)
	}

	fmt.Fprint(os.Stderr, "Confirm superkey: ")
	confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("read confirmation: %w", err)
	}
	if string(key) != string(confirm) {
		return fmt.Errorf("keys do not match")
	}

	if err := newSuperkeyStore().Set(string(key)); err != nil {
		return err
	}
	fmt.Println("Superkey stored.")
	return nil
}

func runSuperkeyStatus(_ context.Context, _ *cli.Command) error {
	if newSuperkeyStore().IsSet() {
		fmt.Println("Superkey: SET")
	} else {
		fmt.Println("Superkey: NOT SET")
	}
	return nil
}

func runSuperkeyClear(_ context.Context, _ *cli.Command) error {
	if err := newSuperkeyStore().Clear(); err != nil {
		return err
	}
	fmt.Println("Superkey cleared.")
	return nil
}

func runSuperkeyVerify(_ context.Context, cmd *cli.Command) error {
	candidate := cmd.Args().First()
	if candidate == "" {
		return fmt.Errorf("usage: rootd superkey verify <key>")
	}
	ok, err := newSuperkeyStore().Verify(candidate)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("superkey mismatch")
	}
	fmt.Println("Superkey OK.")
	return nil
}
