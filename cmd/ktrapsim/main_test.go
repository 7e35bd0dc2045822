package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/go-cmp/cmp"
	"github.com/google/subcommands"

	"xv6-ktrap/sim"
)

func TestDefaultsLoad(t *testing.T) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(sim.DefaultConfig()); err != nil {
		t.Fatalf("Encode() = %v", err)
	}
	path := filepath.Join(t.TempDir(), "defaults.toml")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := sim.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig(defaults) = %v\n%s", err, buf.String())
	}
	if diff := cmp.Diff(sim.DefaultConfig(), got); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &sim.Report{
		Panicked: true,
		Harts: []sim.HartReport{
			{ID: 0, Cycles: 64000, Traps: 30, Switches: 12},
			{ID: 1, Cycles: 11000, Traps: 4, Switches: 1, Halted: true},
		},
		Input: "ls\n",
	})

	out := buf.String()
	for _, want := range []string{
		"HART  CYCLES  TRAPS  SWITCHES  STATE",
		"0     64000   30     12        running",
		"1     11000   4      1         halted",
		`console input: "ls\n"`,
		"kernel panicked",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestRunReportsErrorsThroughLogger(t *testing.T) {
	for _, tc := range []struct {
		name    string
		config  string
		args    []string
		want    subcommands.ExitStatus
		wantLog string
	}{
		{"missing config", "missing.toml", nil, subcommands.ExitUsageError, `msg="bad config"`},
		{"extra argument", "", []string{"now"}, subcommands.ExitUsageError, `msg="unexpected argument: [now]"`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var stderr bytes.Buffer
			c := &runCmd{stderr: &stderr, quiet: true, timeout: time.Minute}
			if tc.config != "" {
				c.config = filepath.Join(t.TempDir(), tc.config)
			}
			f := flag.NewFlagSet("run", flag.ContinueOnError)
			if err := f.Parse(tc.args); err != nil {
				t.Fatalf("Parse(%v) = %v", tc.args, err)
			}

			if got := c.Execute(context.Background(), f); got != tc.want {
				t.Errorf("Execute() = %v, want %v", got, tc.want)
			}
			out := stderr.String()
			if !strings.Contains(out, "level=error") || !strings.Contains(out, tc.wantLog) {
				t.Errorf("stderr = %q, want an error entry with %s", out, tc.wantLog)
			}
		})
	}
}
