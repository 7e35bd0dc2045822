package main

import (
	"context"
	"flag"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/google/subcommands"

	"xv6-ktrap/sim"
)

// defaultsCmd implements subcommands.Command for the "defaults" command.
type defaultsCmd struct {
	stderr io.Writer
}

// Name implements subcommands.Command.
func (*defaultsCmd) Name() string {
	return "defaults"
}

// Synopsis implements subcommands.Command.
func (*defaultsCmd) Synopsis() string {
	return "print the default machine configuration"
}

// Usage implements subcommands.Command.
func (*defaultsCmd) Usage() string {
	return `defaults - print the default machine configuration as TOML
`
}

// SetFlags implements subcommands.Command.
func (*defaultsCmd) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.
func (c *defaultsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	logger := newLogger(c.stderr, false)
	if f.NArg() > 0 {
		logger.Errorf("unexpected argument: %s", f.Args())
		return subcommands.ExitUsageError
	}
	if err := toml.NewEncoder(os.Stdout).Encode(sim.DefaultConfig()); err != nil {
		logger.WithError(err).Error("encoding config")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
