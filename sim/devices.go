package sim

import (
	"bytes"
	"io"
	"math"
	"sync"

	"xv6-ktrap/kernel"
)

// Clint is the timer. Every hart has its own clock, in cycles, and its own
// compare register, which only that hart writes.
type Clint struct {
	m        *Machine
	mtimecmp []uint64
}

func newClint(m *Machine, harts int) *Clint {
	c := &Clint{m: m, mtimecmp: make([]uint64, harts)}
	for i := range c.mtimecmp {
		c.mtimecmp[i] = math.MaxUint64
	}
	return c
}

func (c *Clint) hartOf(addr uintptr) (int, bool) {
	off := addr - kernel.CLINT_MTIMECMP(0)
	if addr < kernel.CLINT_MTIMECMP(0) || off%8 != 0 || int(off/8) >= len(c.mtimecmp) {
		return 0, false
	}
	return int(off / 8), true
}

// Read64 returns the mtimecmp register at addr.
func (c *Clint) Read64(addr uintptr) uint64 {
	if hart, ok := c.hartOf(addr); ok {
		return c.mtimecmp[hart]
	}
	return 0
}

// Write64 sets the mtimecmp register at addr. Like an SBI set_timer call, it
// also clears the hart's pending timer interrupt.
func (c *Clint) Write64(addr uintptr, val uint64) {
	hart, ok := c.hartOf(addr)
	if !ok {
		return
	}
	c.mtimecmp[hart] = val
	c.m.harts[hart].sip &^= kernel.SIP_STIP
}

func (c *Clint) update(h *Hart) {
	if h.cycles >= c.mtimecmp[h.id] {
		h.sip |= kernel.SIP_STIP
	}
}

// UART is the console device. Input raises UART0_IRQ until the driver's
// interrupt handler has drained it.
type UART struct {
	plic *PLIC

	mu       sync.Mutex
	rx       []byte
	received bytes.Buffer
	intrs    int
}

// Receive queues console input.
func (u *UART) Receive(data []byte) {
	u.mu.Lock()
	u.rx = append(u.rx, data...)
	u.mu.Unlock()
	u.plic.Raise(kernel.UART0_IRQ)
}

// Intr implements kernel.ConsoleDevice.
func (u *UART) Intr() {
	// Lower first: input arriving after this re-raises the line.
	u.plic.Lower(kernel.UART0_IRQ)

	u.mu.Lock()
	defer u.mu.Unlock()
	u.received.Write(u.rx)
	u.rx = u.rx[:0]
	u.intrs++
}

// Received returns all input handled by the driver so far.
func (u *UART) Received() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.received.String()
}

// Console collects kernel printf output, optionally copying it to out.
type Console struct {
	mu  sync.Mutex
	buf bytes.Buffer
	out io.Writer
}

func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.out != nil {
		if _, err := c.out.Write(p); err != nil {
			return 0, err
		}
	}
	return c.buf.Write(p)
}

func (c *Console) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}
