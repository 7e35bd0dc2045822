package sim

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"xv6-ktrap/kernel"
)

// kernelPagetable is where the simulated kernel keeps its page table.
const kernelPagetable = uint64(kernel.PHYSTOP) - kernel.PGSIZE

// Machine is a simulated multi-hart RISC-V machine running the kernel trap
// path.
type Machine struct {
	cfg Config
	log *logrus.Entry

	k       *kernel.Kernel
	console *Console
	plic    *PLIC
	bus     *Bus
	clint   *Clint
	uart    *UART
	sched   *Scheduler
	harts   []*Hart
}

// HartReport summarizes one hart after a run.
type HartReport struct {
	ID       int
	Cycles   uint64
	Traps    int
	Switches int
	Halted   bool
}

// Report summarizes a run.
type Report struct {
	Panicked bool
	Harts    []HartReport
	// Input is the console input handled by the UART driver.
	Input string
	// Console is everything the kernel printed.
	Console string
}

// NewMachine builds and boots a machine. Kernel output is copied to out
// when it is not nil.
func NewMachine(cfg Config, logger *logrus.Logger, out io.Writer) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	m := &Machine{
		cfg:     cfg,
		log:     logger.WithField("component", "sim"),
		console: &Console{out: out},
		plic:    NewPLIC(cfg.Harts),
	}
	m.clint = newClint(m, cfg.Harts)
	m.bus = &Bus{plic: m.plic, clint: m.clint, log: m.log}
	m.uart = &UART{plic: m.plic}
	m.sched = newScheduler(m, cfg.Harts)

	gateway := kernel.NewPLICGateway(m.bus)
	k, err := kernel.New(kernel.Config{
		NCPU:       cfg.Harts,
		Timer:      kernel.NewCLINTTimer(m.bus, cfg.TimerInterval),
		PLIC:       gateway,
		Scheduler:  m.sched,
		UART:       m.uart,
		Console:    m.console,
		Logger:     logger,
		TraceEvery: cfg.TraceEvery.Duration,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kernel: %w", err)
	}
	m.k = k

	for i := 0; i < cfg.Harts; i++ {
		m.harts = append(m.harts, newHart(m, i))
	}
	for _, p := range cfg.Procs {
		m.sched.add(p.Hart, p.Name)
	}

	gateway.Init()
	for _, h := range m.harts {
		h.satp = kernel.MAKE_SATP(kernelPagetable)
		k.Inithart(h, KernelTrapEntry)
		intr_on(h)
	}
	m.sched.start()
	return m, nil
}

// Kernel returns the kernel the machine runs.
func (m *Machine) Kernel() *kernel.Kernel {
	return m.k
}

// Run runs every hart on its own goroutine for the configured number of
// ticks, or until it halts. Halting is not an error.
func (m *Machine) Run(ctx context.Context) (*Report, error) {
	g, ctx := errgroup.WithContext(ctx)
	for _, h := range m.harts {
		h := h
		g.Go(func() error {
			return m.runHart(ctx, h)
		})
	}
	err := g.Wait()
	return m.report(), err
}

func (m *Machine) runHart(ctx context.Context, h *Hart) error {
	log := m.log.WithField("hart", h.id)
	for tick := 0; tick < m.cfg.Ticks; tick++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if h.id == 0 {
			for _, in := range m.cfg.Input {
				if in.Tick == tick {
					m.uart.Receive([]byte(in.Data))
				}
			}
		}
		for _, f := range m.cfg.Faults {
			if f.Hart != h.id || f.Tick != tick {
				continue
			}
			log.Infof("injecting %s fault at tick %d", f.Kind, tick)
			if _, err := h.Inject(f.Kind); err != nil {
				return err
			}
		}
		if !h.halted {
			if err := h.step(); err != nil {
				return err
			}
		}
		if h.halted {
			log.Infof("halted at tick %d", tick)
			return nil
		}
	}
	return nil
}

func (m *Machine) report() *Report {
	r := &Report{
		Panicked: m.k.Panicked(),
		Input:    m.uart.Received(),
		Console:  m.console.String(),
	}
	for _, h := range m.harts {
		r.Harts = append(r.Harts, HartReport{
			ID:       h.id,
			Cycles:   h.cycles,
			Traps:    h.traps,
			Switches: m.sched.switches[h.id],
			Halted:   h.halted,
		})
	}
	return r
}
