package kernel

// InterruptController hands out pending external interrupts one at a time.
// Claim returns 0 when nothing is pending. Every non-zero claim must be
// completed exactly once before the source can be delivered again.
type InterruptController interface {
	Claim(hart int) uint32
	Complete(hart int, irq uint32)
}

// ConsoleDevice is the interrupt entry point of the console driver.
type ConsoleDevice interface {
	Intr()
}

// MMIO is 32-bit device register access.
type MMIO interface {
	Read32(addr uintptr) uint32
	Write32(addr uintptr, val uint32)
}

// PLICGateway drives the supervisor context of the qemu virt PLIC.
type PLICGateway struct {
	bus MMIO
}

func NewPLICGateway(bus MMIO) *PLICGateway {
	return &PLICGateway{bus: bus}
}

// Init sets the priority of the devices the kernel handles. Run once.
func (g *PLICGateway) Init() {
	// set desired IRQ priorities non-zero (otherwise disabled).
	g.bus.Write32(PLIC_SOURCE_PRIORITY(UART0_IRQ), 1)
	g.bus.Write32(PLIC_SOURCE_PRIORITY(VIRTIO0_IRQ), 1)
}

// InitHart enables the kernel's devices for the S-mode context of hart.
func (g *PLICGateway) InitHart(hart int) {
	g.bus.Write32(PLIC_SENABLE(hart), (1<<UART0_IRQ)|(1<<VIRTIO0_IRQ))
	g.bus.Write32(PLIC_SPRIORITY(hart), 0)
}

// Claim asks the PLIC what interrupt hart should serve.
func (g *PLICGateway) Claim(hart int) uint32 {
	return g.bus.Read32(PLIC_SCLAIM(hart))
}

// Complete tells the PLIC hart has served irq.
func (g *PLICGateway) Complete(hart int, irq uint32) {
	g.bus.Write32(PLIC_SCLAIM(hart), irq)
}

func (k *Kernel) plic_handle(h Hart) {
	irq := k.plic.Claim(h.ID())
	switch {
	case irq == UART0_IRQ:
		k.uart.Intr()
	case irq != 0:
		k.hartLog(h).Warnf("unexpected interrupt irq=%d", irq)
	}

	if irq != 0 {
		k.plic.Complete(h.ID(), irq)
	}
}
