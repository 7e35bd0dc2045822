package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"xv6-ktrap/sim"
)

// runCmd implements subcommands.Command for the "run" command.
type runCmd struct {
	config  string
	debug   bool
	quiet   bool
	timeout time.Duration

	stderr io.Writer
}

// Name implements subcommands.Command.
func (*runCmd) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.
func (*runCmd) Synopsis() string {
	return "boot the simulated machine and run it"
}

// Usage implements subcommands.Command.
func (*runCmd) Usage() string {
	return `run [flags] - boot the simulated machine and run it until every hart
finishes or halts. Exits non-zero if the kernel panicked.
`
}

// SetFlags implements subcommands.Command.
func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", "", "path to a TOML machine configuration; defaults are used when empty")
	f.BoolVar(&c.debug, "debug", false, "log trap traces")
	f.BoolVar(&c.quiet, "quiet", false, "do not copy kernel console output to stdout")
	f.DurationVar(&c.timeout, "timeout", time.Minute, "abort the run after this long")
}

// Execute implements subcommands.Command.
func (c *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	logger := newLogger(c.stderr, c.debug)
	if f.NArg() > 0 {
		logger.Errorf("unexpected argument: %s", f.Args())
		return subcommands.ExitUsageError
	}

	cfg := sim.DefaultConfig()
	if c.config != "" {
		var err error
		if cfg, err = sim.LoadConfig(c.config); err != nil {
			logger.WithError(err).Error("bad config")
			return subcommands.ExitUsageError
		}
	}

	var out io.Writer
	if !c.quiet {
		out = os.Stdout
	}
	m, err := sim.NewMachine(cfg, logger, out)
	if err != nil {
		logger.WithError(err).Error("building machine")
		return subcommands.ExitFailure
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	r, err := m.Run(ctx)
	printReport(os.Stdout, r)
	if err != nil {
		logger.WithError(err).Error("run failed")
		return subcommands.ExitFailure
	}
	if r.Panicked {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func printReport(w io.Writer, r *sim.Report) {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprint(tw, "HART\tCYCLES\tTRAPS\tSWITCHES\tSTATE\n")
	for _, h := range r.Harts {
		state := "running"
		if h.Halted {
			state = "halted"
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%s\n", h.ID, h.Cycles, h.Traps, h.Switches, state)
	}
	tw.Flush()
	fmt.Fprintf(w, "console input: %q\n", r.Input)
	if r.Panicked {
		fmt.Fprintln(w, "kernel panicked")
	}
}
