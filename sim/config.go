package sim

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// maxHarts is the number of S-mode contexts of the qemu virt PLIC layout.
const maxHarts = 8

// Fault is a class of fatal kernel trap the simulator can provoke.
type Fault string

const (
	// FaultException takes a load page fault in kernel code.
	FaultException Fault = "exception"
	// FaultUserOrigin delivers a kernel trap that claims to come from U-mode.
	FaultUserOrigin Fault = "user-origin"
	// FaultUnknownIRQ delivers a supervisor software interrupt, which the
	// kernel never enables.
	FaultUnknownIRQ Fault = "unknown-irq"
	// FaultInterruptsEnabled runs the dispatcher from an entry stub that
	// forgot to keep interrupts off.
	FaultInterruptsEnabled Fault = "interrupts-enabled"
)

var faults = []Fault{FaultException, FaultUserOrigin, FaultUnknownIRQ, FaultInterruptsEnabled}

func (f Fault) valid() bool {
	for _, v := range faults {
		if f == v {
			return true
		}
	}
	return false
}

// Duration is a time.Duration written as a string, e.g. "250ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config describes a simulated machine and the workload it runs.
type Config struct {
	// Harts is the number of harts, at most 8.
	Harts int `toml:"harts"`
	// Ticks is how many steps every hart runs.
	Ticks int `toml:"ticks"`
	// CyclesPerTick advances each hart's clock per step.
	CyclesPerTick uint64 `toml:"cycles_per_tick"`
	// TimerInterval is the number of cycles between timer interrupts.
	TimerInterval uint64 `toml:"timer_interval"`
	// SliceCycles is how long a task switched to during a preemption
	// runs before switching back.
	SliceCycles uint64 `toml:"slice_cycles"`
	// TraceEvery rate limits kernel traces.
	TraceEvery Duration `toml:"trace_every"`

	Procs  []ProcConfig  `toml:"proc"`
	Input  []InputConfig `toml:"input"`
	Faults []FaultConfig `toml:"fault"`
}

// ProcConfig is a process pinned to a hart.
type ProcConfig struct {
	Hart int    `toml:"hart"`
	Name string `toml:"name"`
}

// InputConfig is console input arriving at a tick.
type InputConfig struct {
	Tick int    `toml:"tick"`
	Data string `toml:"data"`
}

// FaultConfig provokes a fatal trap on a hart at a tick.
type FaultConfig struct {
	Hart int   `toml:"hart"`
	Tick int   `toml:"tick"`
	Kind Fault `toml:"kind"`
}

// DefaultConfig returns a two hart machine with a few processes and some
// console input.
func DefaultConfig() Config {
	return Config{
		Harts:         2,
		Ticks:         64,
		CyclesPerTick: 1000,
		TimerInterval: 3000,
		SliceCycles:   3000,
		TraceEvery:    Duration{100 * time.Millisecond},
		Procs: []ProcConfig{
			{Hart: 0, Name: "init"},
			{Hart: 0, Name: "sh"},
			{Hart: 1, Name: "cat"},
			{Hart: 1, Name: "wc"},
		},
		Input: []InputConfig{
			{Tick: 5, Data: "ls\n"},
			{Tick: 20, Data: "cat README | wc\n"},
		},
	}
}

// LoadConfig reads a TOML file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	// Tables in the file replace the default workload instead of appending.
	cfg.Procs, cfg.Input, cfg.Faults = nil, nil, nil
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("loading %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("loading %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("loading %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that c describes a machine that can be built.
func (c *Config) Validate() error {
	if c.Harts < 1 || c.Harts > maxHarts {
		return fmt.Errorf("harts = %d, want 1 to %d", c.Harts, maxHarts)
	}
	if c.Ticks <= 0 {
		return fmt.Errorf("ticks = %d, want > 0", c.Ticks)
	}
	if c.CyclesPerTick == 0 || c.TimerInterval == 0 {
		return fmt.Errorf("cycles_per_tick and timer_interval must be non-zero")
	}
	for i, p := range c.Procs {
		if p.Hart < 0 || p.Hart >= c.Harts {
			return fmt.Errorf("proc[%d] %q: hart %d out of range", i, p.Name, p.Hart)
		}
	}
	for i, in := range c.Input {
		if in.Tick < 0 || in.Tick >= c.Ticks {
			return fmt.Errorf("input[%d]: tick %d out of range", i, in.Tick)
		}
	}
	for i, f := range c.Faults {
		if f.Hart < 0 || f.Hart >= c.Harts {
			return fmt.Errorf("fault[%d]: hart %d out of range", i, f.Hart)
		}
		if f.Tick < 0 || f.Tick >= c.Ticks {
			return fmt.Errorf("fault[%d]: tick %d out of range", i, f.Tick)
		}
		if !f.Kind.valid() {
			return fmt.Errorf("fault[%d]: unknown kind %q, want one of %v", i, f.Kind, faults)
		}
	}
	return nil
}
