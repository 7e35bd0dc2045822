package sim

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "machine.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
harts = 3
ticks = 10
trace_every = "1s"

[[proc]]
hart = 2
name = "init"

[[input]]
tick = 4
data = "echo hi\n"

[[fault]]
hart = 1
tick = 7
kind = "unknown-irq"
`)
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() = %v", err)
	}

	want := DefaultConfig()
	want.Harts = 3
	want.Ticks = 10
	want.TraceEvery = Duration{time.Second}
	want.Procs = []ProcConfig{{Hart: 2, Name: "init"}}
	want.Input = []InputConfig{{Tick: 4, Data: "echo hi\n"}}
	want.Faults = []FaultConfig{{Hart: 1, Tick: 7, Kind: FaultUnknownIRQ}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
		wantErr string
	}{
		{"syntax", "harts = ", "loading"},
		{"unknown key", "hartz = 2", "unknown keys hartz"},
		{"too many harts", "harts = 9", "harts = 9"},
		{"no ticks", "ticks = 0", "ticks = 0"},
		{"bad duration", `trace_every = "soon"`, "soon"},
		{"proc hart", "[[proc]]\nhart = 5\nname = \"sh\"", "hart 5 out of range"},
		{"fault kind", "[[fault]]\nhart = 0\ntick = 1\nkind = \"meltdown\"", "unknown kind"},
		{"fault tick", "[[fault]]\nhart = 0\ntick = 999\nkind = \"exception\"", "tick 999 out of range"},
		{"input tick", "[[input]]\ntick = -1\ndata = \"x\"", "tick -1 out of range"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.content))
			if err == nil {
				t.Fatalf("LoadConfig(%q) succeeded, want error", tc.content)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("LoadConfig(%q) = %v, want error containing %q", tc.content, err, tc.wantErr)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("LoadConfig(missing) = %v, want fs.ErrNotExist", err)
	}
}
