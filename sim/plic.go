package sim

import (
	"sync"

	"github.com/google/btree"
	"github.com/sirupsen/logrus"

	"xv6-ktrap/kernel"
)

// nsources is the number of interrupt sources, source 0 meaning none.
const nsources = 32

type source struct {
	irq      uint32
	priority uint32
}

// Highest priority first, lowest id breaking ties, as the PLIC arbitrates.
func lessSource(a, b source) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return a.irq < b.irq
}

// PLIC models the supervisor contexts of the qemu virt PLIC. It is shared by
// all harts.
type PLIC struct {
	harts int

	mu        sync.Mutex
	priority  [nsources]uint32
	level     [nsources]bool // device line asserted
	claimed   [nsources]bool // claimed and not yet completed
	enable    []uint32       // per hart S-mode enable bits
	threshold []uint32       // per hart S-mode threshold
	pending   *btree.BTreeG[source]
	inPending [nsources]bool
}

func NewPLIC(harts int) *PLIC {
	return &PLIC{
		harts:     harts,
		enable:    make([]uint32, harts),
		threshold: make([]uint32, harts),
		pending:   btree.NewG[source](2, lessSource),
	}
}

// Raise asserts the interrupt line of irq.
func (p *PLIC) Raise(irq uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level[irq] = true
	if !p.claimed[irq] {
		p.pend(irq)
	}
}

// Lower deasserts the interrupt line of irq.
func (p *PLIC) Lower(irq uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level[irq] = false
	p.unpend(irq)
}

func (p *PLIC) pend(irq uint32) {
	if p.inPending[irq] {
		return
	}
	p.pending.ReplaceOrInsert(source{irq: irq, priority: p.priority[irq]})
	p.inPending[irq] = true
}

func (p *PLIC) unpend(irq uint32) {
	if !p.inPending[irq] {
		return
	}
	p.pending.Delete(source{irq: irq, priority: p.priority[irq]})
	p.inPending[irq] = false
}

// best returns the source hart would be handed by a claim.
func (p *PLIC) best(hart int) (source, bool) {
	var (
		found source
		ok    bool
	)
	p.pending.Ascend(func(s source) bool {
		if s.priority <= p.threshold[hart] {
			return false
		}
		if p.enable[hart]&(1<<s.irq) != 0 {
			found, ok = s, true
			return false
		}
		return true
	})
	return found, ok
}

// HasPending reports whether hart has a claimable interrupt, which is what
// drives its SEIP bit.
func (p *PLIC) HasPending(hart int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.best(hart)
	return ok
}

func (p *PLIC) claim(hart int) uint32 {
	s, ok := p.best(hart)
	if !ok {
		return 0
	}
	p.unpend(s.irq)
	p.claimed[s.irq] = true
	return s.irq
}

func (p *PLIC) complete(hart int, irq uint32) {
	if irq == 0 || irq >= nsources || !p.claimed[irq] {
		return
	}
	p.claimed[irq] = false
	if p.level[irq] {
		p.pend(irq)
	}
}

func (p *PLIC) setPriority(irq int, prio uint32) {
	wasPending := p.inPending[irq]
	p.unpend(uint32(irq))
	p.priority[irq] = prio
	if wasPending {
		p.pend(uint32(irq))
	}
}

func sourceOf(addr uintptr) (int, bool) {
	if addr < kernel.PLIC_SOURCE_PRIORITY(0) || addr >= kernel.PLIC_SOURCE_PRIORITY(nsources) {
		return 0, false
	}
	return int(addr-kernel.PLIC_PRIORITY) / 4, true
}

// Read32 implements kernel.MMIO for the PLIC register window.
func (p *PLIC) Read32(addr uintptr) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if irq, ok := sourceOf(addr); ok {
		return p.priority[irq]
	}
	for hart := 0; hart < p.harts; hart++ {
		switch addr {
		case kernel.PLIC_SENABLE(hart):
			return p.enable[hart]
		case kernel.PLIC_SPRIORITY(hart):
			return p.threshold[hart]
		case kernel.PLIC_SCLAIM(hart):
			return p.claim(hart)
		}
	}
	return 0
}

// Write32 implements kernel.MMIO for the PLIC register window.
func (p *PLIC) Write32(addr uintptr, val uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if irq, ok := sourceOf(addr); ok {
		if irq != 0 {
			p.setPriority(irq, val)
		}
		return
	}
	for hart := 0; hart < p.harts; hart++ {
		switch addr {
		case kernel.PLIC_SENABLE(hart):
			p.enable[hart] = val &^ 1
			return
		case kernel.PLIC_SPRIORITY(hart):
			p.threshold[hart] = val
			return
		case kernel.PLIC_SCLAIM(hart):
			p.complete(hart, val)
			return
		}
	}
}

// Bus routes kernel MMIO to the simulated devices: 32-bit accesses to the
// PLIC and 64-bit accesses to the CLINT.
type Bus struct {
	plic  *PLIC
	clint *Clint
	log   *logrus.Entry
}

func (b *Bus) Read32(addr uintptr) uint32 {
	if addr >= kernel.PLIC && addr < kernel.PLIC+kernel.PLIC_SIZE {
		return b.plic.Read32(addr)
	}
	b.log.Warnf("read32 from unmapped address %#x", addr)
	return 0
}

func (b *Bus) Write32(addr uintptr, val uint32) {
	if addr >= kernel.PLIC && addr < kernel.PLIC+kernel.PLIC_SIZE {
		b.plic.Write32(addr, val)
		return
	}
	b.log.Warnf("write32 %#x to unmapped address %#x", val, addr)
}

func inCLINT(addr uintptr) bool {
	return addr >= kernel.CLINT && addr < kernel.CLINT+kernel.CLINT_SIZE
}

func (b *Bus) Read64(addr uintptr) uint64 {
	if b.clint != nil && inCLINT(addr) {
		return b.clint.Read64(addr)
	}
	b.log.Warnf("read64 from unmapped address %#x", addr)
	return 0
}

func (b *Bus) Write64(addr uintptr, val uint64) {
	if b.clint != nil && inCLINT(addr) {
		b.clint.Write64(addr, val)
		return
	}
	b.log.Warnf("write64 %#x to unmapped address %#x", val, addr)
}
