package sim

import (
	"errors"
	"fmt"

	"xv6-ktrap/kernel"
)

// KernelTrapEntry is the address of kernel_trap_entry in the simulated
// kernel image.
const KernelTrapEntry = kernel.KERNBASE + 0x1000

// ErrNoTrapVector is returned when a hart takes a trap before stvec points
// at kernel_trap_entry.
var ErrNoTrapVector = errors.New("stvec does not point at kernel_trap_entry")

type priv int

const (
	userMode       priv = 0
	supervisorMode priv = 1
)

// Hart is one simulated RISC-V hardware thread running kernel code.
type Hart struct {
	id int
	m  *Machine

	priv   priv
	pc     uint64
	regs   [32]uint64
	cycles uint64

	sstatus uint64
	sie     uint64
	stvec   uint64
	sepc    uint64
	scause  uint64
	stval   uint64
	sip     uint64
	satp    uint64

	// brokenEntry makes the entry stub turn interrupts back on before
	// calling the dispatcher.
	brokenEntry bool
	// yielding is set while the scheduler runs another task on this hart.
	yielding bool
	halted   bool
	traps    int
}

func newHart(m *Machine, id int) *Hart {
	h := &Hart{
		id:   id,
		m:    m,
		priv: supervisorMode,
		pc:   uint64(kernel.KERNBASE),
	}
	h.regs[kernel.REG_TP] = uint64(id)
	h.regs[kernel.REG_SP] = uint64(kernel.KERNBASE) + 0x10000*uint64(id+1)
	return h
}

// ID implements kernel.Hart.
func (h *Hart) ID() int { return h.id }

// ReadCSR implements kernel.Hart.
func (h *Hart) ReadCSR(csr kernel.CSR) uint64 {
	switch csr {
	case kernel.CSR_SSTATUS:
		return h.sstatus
	case kernel.CSR_SIE:
		return h.sie
	case kernel.CSR_STVEC:
		return h.stvec
	case kernel.CSR_SEPC:
		return h.sepc
	case kernel.CSR_SCAUSE:
		return h.scause
	case kernel.CSR_STVAL:
		return h.stval
	case kernel.CSR_SIP:
		return h.sip
	case kernel.CSR_SATP:
		return h.satp
	case kernel.CSR_TIME:
		return h.cycles
	}
	panic(fmt.Sprintf("hart %d: read of unimplemented %v", h.id, csr))
}

// WriteCSR implements kernel.Hart.
func (h *Hart) WriteCSR(csr kernel.CSR, val uint64) {
	switch csr {
	case kernel.CSR_SSTATUS:
		h.sstatus = val
	case kernel.CSR_SIE:
		h.sie = val
	case kernel.CSR_STVEC:
		h.stvec = val
	case kernel.CSR_SEPC:
		h.sepc = val
	case kernel.CSR_SCAUSE:
		h.scause = val
	case kernel.CSR_STVAL:
		h.stval = val
	case kernel.CSR_SIP:
		h.sip = val
	case kernel.CSR_SATP:
		h.satp = val
	default:
		panic(fmt.Sprintf("hart %d: write of unimplemented %v", h.id, csr))
	}
}

func intr_on(h *Hart) { h.sstatus |= kernel.SSTATUS_SIE }
func intr_off(h *Hart) { h.sstatus &^= kernel.SSTATUS_SIE }

// Trap takes a trap with the given cause the way the hardware does, runs
// kernel_trap_entry and, unless the kernel halts the hart, returns from it
// with sret.
func (h *Hart) Trap(cause, tval uint64) (kernel.Disposition, error) {
	if h.halted {
		return kernel.Halt, nil
	}
	if h.stvec&kernel.STVEC_MODE_MASK != kernel.STVEC_MODE_DIRECT ||
		uintptr(h.stvec&^kernel.STVEC_MODE_MASK) != KernelTrapEntry {
		return kernel.Halt, fmt.Errorf("hart %d: %w (stvec %#x)", h.id, ErrNoTrapVector, h.stvec)
	}

	// Hardware trap entry.
	if h.sstatus&kernel.SSTATUS_SIE != 0 {
		h.sstatus |= kernel.SSTATUS_SPIE
	} else {
		h.sstatus &^= kernel.SSTATUS_SPIE
	}
	intr_off(h)
	if h.priv == supervisorMode {
		h.sstatus |= kernel.SSTATUS_SPP
	} else {
		h.sstatus &^= kernel.SSTATUS_SPP
	}
	h.priv = supervisorMode
	h.scause = cause
	h.sepc = h.pc
	h.stval = tval
	h.pc = uint64(KernelTrapEntry)
	h.traps++

	// kernel_trap_entry saves the registers and calls the dispatcher.
	ktf := kernel.Ktrapframe{X: h.regs}
	if h.brokenEntry {
		intr_on(h)
	}
	d := h.m.k.Kerneltrap(h, &ktf)
	if d == kernel.Halt || h.halted {
		h.halted = true
		return kernel.Halt, nil
	}

	// sret
	if h.sstatus&kernel.SSTATUS_SPP != 0 {
		h.priv = supervisorMode
	} else {
		h.priv = userMode
	}
	if h.sstatus&kernel.SSTATUS_SPIE != 0 {
		intr_on(h)
	} else {
		intr_off(h)
	}
	h.sstatus |= kernel.SSTATUS_SPIE
	h.sstatus &^= kernel.SSTATUS_SPP
	h.pc = h.sepc
	return kernel.Resume, nil
}

// Inject provokes a fatal trap of class f.
func (h *Hart) Inject(f Fault) (kernel.Disposition, error) {
	switch f {
	case FaultException:
		return h.Trap(kernel.LoadPageFault, 0xdeadbeef)
	case FaultUserOrigin:
		h.priv = userMode
		return h.Trap(kernel.SCAUSE_INTERRUPT|kernel.SupervisorTimer, 0)
	case FaultUnknownIRQ:
		return h.Trap(kernel.SCAUSE_INTERRUPT|kernel.SupervisorSoftware, 0)
	case FaultInterruptsEnabled:
		h.brokenEntry = true
		defer func() { h.brokenEntry = false }()
		return h.Trap(kernel.SCAUSE_INTERRUPT|kernel.SupervisorTimer, 0)
	}
	return kernel.Resume, fmt.Errorf("hart %d: unknown fault %q", h.id, f)
}

// advance runs kernel code for n cycles and latches pending interrupts.
func (h *Hart) advance(n uint64) {
	h.cycles += n
	h.pc += 4 * (n / 8)
	h.regs[kernel.REG_A0] = h.cycles
	h.m.clint.update(h)
	if h.m.plic.HasPending(h.id) {
		h.sip |= kernel.SIP_SEIP
	} else {
		h.sip &^= kernel.SIP_SEIP
	}
}

// interrupt takes the highest priority enabled pending interrupt, if
// interrupts are on.
func (h *Hart) interrupt() (kernel.Disposition, bool, error) {
	if h.sstatus&kernel.SSTATUS_SIE == 0 {
		return kernel.Resume, false, nil
	}
	pending := h.sip & h.sie
	switch {
	case pending&kernel.SIP_SEIP != 0:
		d, err := h.Trap(kernel.SCAUSE_INTERRUPT|kernel.SupervisorExternal, 0)
		return d, true, err
	case pending&kernel.SIP_STIP != 0:
		d, err := h.Trap(kernel.SCAUSE_INTERRUPT|kernel.SupervisorTimer, 0)
		return d, true, err
	}
	return kernel.Resume, false, nil
}

const maxInterruptsPerStep = 8

// step runs one tick of kernel code and takes every interrupt that becomes
// pending.
func (h *Hart) step() error {
	h.advance(h.m.cfg.CyclesPerTick)
	for i := 0; i < maxInterruptsPerStep && !h.halted; i++ {
		_, took, err := h.interrupt()
		if err != nil || !took {
			return err
		}
		h.advance(0)
	}
	return nil
}
