package kernel

import (
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Config wires a Kernel to its hardware and to the rest of the kernel.
type Config struct {
	// NCPU is the number of harts.
	NCPU int

	Timer     Timer
	PLIC      InterruptController
	Scheduler Scheduler
	UART      ConsoleDevice

	// Console receives printf output and panic dumps.
	Console io.Writer

	// Logger defaults to logrus.StandardLogger().
	Logger *logrus.Logger

	// TraceEvery limits hot path traces to one per period. Zero means no
	// limit.
	TraceEvery time.Duration
}

// Kernel holds the trap state of every hart, indexed by hart id, and the
// machine wide panic state.
type Kernel struct {
	cpus []cpu

	timer   Timer
	plic    InterruptController
	sched   Scheduler
	uart    ConsoleDevice
	console io.Writer

	log        *logrus.Entry
	traceLimit *rate.Limiter

	// Set once by the first hart to panic, never cleared.
	panicked atomic.Bool
	// Serializes panic dumps across harts.
	kpPrintLock spinlock
}

// New returns a Kernel for c.NCPU harts. Every hart must then run Inithart.
func New(c Config) (*Kernel, error) {
	if c.NCPU <= 0 {
		return nil, errors.New("kernel: NCPU must be positive")
	}
	if c.Timer == nil || c.PLIC == nil || c.Scheduler == nil || c.UART == nil {
		return nil, errors.New("kernel: Timer, PLIC, Scheduler and UART are required")
	}
	if c.Console == nil {
		c.Console = io.Discard
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	limit := rate.Inf
	if c.TraceEvery > 0 {
		limit = rate.Every(c.TraceEvery)
	}

	k := &Kernel{
		cpus:       make([]cpu, c.NCPU),
		timer:      c.Timer,
		plic:       c.PLIC,
		sched:      c.Scheduler,
		uart:       c.UART,
		console:    c.Console,
		log:        c.Logger.WithField("component", "kerneltrap"),
		traceLimit: rate.NewLimiter(limit, 1),
	}
	initlock(&k.kpPrintLock)
	return k, nil
}

// NCPU returns the number of harts.
func (k *Kernel) NCPU() int {
	return len(k.cpus)
}

// Inithart runs the trap setup of hart h. It must run on h, before h takes
// any interrupt.
func (k *Kernel) Inithart(h Hart, kernelTrapEntry uintptr) {
	k.printf("hart %d starting\n", h.ID())

	k.printf("trapinithart...  ")
	k.Trapinithart(h, kernelTrapEntry)
	k.printf("OK\n")

	if g, ok := k.plic.(interface{ InitHart(hart int) }); ok {
		k.printf("plicinithart...  ")
		g.InitHart(h.ID())
		k.printf("OK\n")
	}

	w_sie(h, r_sie(h)|SIE_SEIE|SIE_STIE)
	k.timer.SetNextTimer(h)
}
