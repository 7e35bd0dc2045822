package sim

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"xv6-ktrap/kernel"
)

func newTestMachine(t *testing.T, cfg Config) *Machine {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	m, err := NewMachine(cfg, logger, nil)
	if err != nil {
		t.Fatalf("NewMachine() = %v", err)
	}
	return m
}

func TestRunWithoutFaults(t *testing.T) {
	m := newTestMachine(t, DefaultConfig())
	r, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}

	if r.Panicked {
		t.Fatalf("machine panicked:\n%s", r.Console)
	}
	if want := "ls\ncat README | wc\n"; r.Input != want {
		t.Errorf("console input = %q, want %q", r.Input, want)
	}
	for _, h := range r.Harts {
		if h.Halted {
			t.Errorf("hart %d halted", h.ID)
		}
		if h.Traps == 0 || h.Switches == 0 {
			t.Errorf("hart %d: %d traps, %d switches, want both > 0", h.ID, h.Traps, h.Switches)
		}
		if got := m.Kernel().NestingDepth(h.ID); got != 0 {
			t.Errorf("hart %d: nesting depth = %d, want 0", h.ID, got)
		}
	}
	if !strings.Contains(r.Console, "trapinithart...  OK") {
		t.Errorf("console missing boot progress:\n%s", r.Console)
	}
}

func TestPreemptionPreservesHartState(t *testing.T) {
	m := newTestMachine(t, DefaultConfig())
	h := m.harts[0]
	before := m.Kernel().CurrentProc(0)

	h.advance(m.cfg.TimerInterval)
	if h.sip&kernel.SIP_STIP == 0 {
		t.Fatalf("timer not pending after %d cycles", m.cfg.TimerInterval)
	}
	pc, satp, sie := h.pc, h.satp, h.sie

	d, err := h.Trap(kernel.SCAUSE_INTERRUPT|kernel.SupervisorTimer, 0)
	if err != nil || d != kernel.Resume {
		t.Fatalf("Trap(timer) = (%v, %v), want (%v, nil)", d, err, kernel.Resume)
	}

	if h.pc != pc || h.satp != satp || h.sie != sie {
		t.Errorf("after preemption pc=%#x satp=%#x sie=%#x, want pc=%#x satp=%#x sie=%#x",
			h.pc, h.satp, h.sie, pc, satp, sie)
	}
	if !kernel.IntrGet(h) || h.priv != supervisorMode {
		t.Errorf("after preemption sstatus=%#x priv=%d, want interrupts on in supervisor mode", h.sstatus, h.priv)
	}
	if got := m.sched.switches[0]; got != 1 {
		t.Errorf("switches = %d, want 1", got)
	}
	// The task switched to took its own timer trap during its slice.
	if h.traps != 2 {
		t.Errorf("traps = %d, want 2", h.traps)
	}
	if got := m.Kernel().CurrentProc(0); got != before || got.State != kernel.RUNNING {
		t.Errorf("current proc = %+v, want %+v running", got, before)
	}
	if got := m.Kernel().NestingDepth(0); got != 0 {
		t.Errorf("nesting depth = %d, want 0", got)
	}
}

func TestRunWithFault(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Faults = []FaultConfig{{Hart: 1, Tick: 10, Kind: FaultException}}
	m := newTestMachine(t, cfg)

	r, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if !r.Panicked {
		t.Fatalf("machine did not panic")
	}
	if !r.Harts[1].Halted {
		t.Errorf("hart 1 did not halt")
	}
	if got := strings.Count(r.Console, "Kernel Panic"); got != 1 {
		t.Errorf("console has %d panic dumps, want 1:\n%s", got, r.Console)
	}
	if !strings.Contains(r.Console, "panic: hart 1: kernel panic") {
		t.Errorf("console missing hart 1 panic:\n%s", r.Console)
	}

	// Hart 0 halts at its next interrupt, if it had not already.
	h := m.harts[0]
	for i := 0; i < 10 && !h.halted; i++ {
		if err := h.step(); err != nil {
			t.Fatalf("step() = %v", err)
		}
	}
	if !h.halted {
		t.Fatalf("hart 0 still running after the machine panicked")
	}
	if !strings.Contains(m.console.String(), "panic: hart 0: other CPU has panicked") {
		t.Errorf("console missing hart 0 cascading halt:\n%s", m.console.String())
	}
}

func TestFaults(t *testing.T) {
	for _, f := range faults {
		t.Run(string(f), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Harts = 1
			cfg.Procs = []ProcConfig{{Hart: 0, Name: "init"}}
			cfg.Input = nil
			cfg.Faults = []FaultConfig{{Hart: 0, Tick: 3, Kind: f}}
			m := newTestMachine(t, cfg)

			r, err := m.Run(context.Background())
			if err != nil {
				t.Fatalf("Run() = %v", err)
			}
			if !r.Panicked || !r.Harts[0].Halted {
				t.Errorf("panicked = %v, halted = %v, want both", r.Panicked, r.Harts[0].Halted)
			}
			if !strings.Contains(r.Console, "Kernel Panic") {
				t.Errorf("console missing panic dump:\n%s", r.Console)
			}
			if d, err := m.harts[0].Trap(kernel.SCAUSE_INTERRUPT|kernel.SupervisorTimer, 0); d != kernel.Halt || err != nil {
				t.Errorf("Trap() on halted hart = (%v, %v), want (%v, nil)", d, err, kernel.Halt)
			}
		})
	}
}

func TestTrapWithoutVector(t *testing.T) {
	m := newTestMachine(t, DefaultConfig())
	h := m.harts[1]
	h.stvec = 0

	if _, err := h.Trap(kernel.SCAUSE_INTERRUPT|kernel.SupervisorTimer, 0); !errors.Is(err, ErrNoTrapVector) {
		t.Errorf("Trap() = %v, want %v", err, ErrNoTrapVector)
	}

	h.stvec = uint64(KernelTrapEntry) | kernel.STVEC_MODE_VECTORED
	if _, err := h.Trap(kernel.SCAUSE_INTERRUPT|kernel.SupervisorTimer, 0); !errors.Is(err, ErrNoTrapVector) {
		t.Errorf("Trap() in vectored mode = %v, want %v", err, ErrNoTrapVector)
	}
}

func TestRunCanceled(t *testing.T) {
	m := newTestMachine(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run(canceled) = %v, want %v", err, context.Canceled)
	}
}
