package kernel

import "fmt"

// trapCSRs are the trap related registers a context switch clobbers. They
// are captured before yielding and written back verbatim on resume.
type trapCSRs struct {
	sstatus uint64
	sie     uint64
	scause  uint64
	sepc    uint64
	stval   uint64
	sip     uint64
	satp    uint64
}

func saveTrapCSRs(h Hart) trapCSRs {
	return trapCSRs{
		sstatus: r_sstatus(h),
		sie:     r_sie(h),
		scause:  r_scause(h),
		sepc:    r_sepc(h),
		stval:   r_stval(h),
		sip:     r_sip(h),
		satp:    r_satp(h),
	}
}

func (s *trapCSRs) restore(h Hart) {
	w_sstatus(h, s.sstatus)
	w_sie(h, s.sie)
	w_scause(h, s.scause)
	w_sepc(h, s.sepc)
	w_stval(h, s.stval)
	w_sip(h, s.sip)
	w_satp(h, s.satp)
}

// Kerneltrap handles a trap taken while h was running kernel code. It is
// called by kernel_trap_entry with interrupts off and the interrupted
// registers saved in ktf.
//
// Interrupts are the only traps the kernel expects: any exception, any trap
// that did not come from supervisor mode and any nested kernel interrupt is
// a kernel bug and halts the machine.
func (k *Kernel) Kerneltrap(h Hart, ktf *Ktrapframe) Disposition {
	if intr_get(h) {
		k.errorf(h, "kerneltrap: interrupts enabled")
		return k.kernelPanic(h, ktf)
	}

	if r_sstatus(h)&SSTATUS_SPP == 0 {
		k.errorf(h, "kerneltrap: not from supervisor mode")
		return k.kernelPanic(h, ktf)
	}

	c := k.mycpu(h)
	c.inkernelTrap++

	cause := r_scause(h)
	code := cause & SCAUSE_EXCEPTION_CODE_MASK
	if cause&SCAUSE_INTERRUPT == 0 {
		// kernel exception, unexpected.
		k.errorf(h, "kerneltrap: %s (scause %#x) sepc=%#x stval=%#x",
			exceptionName(code), cause, r_sepc(h), r_stval(h))
		return k.kernelPanic(h, ktf)
	}

	// should never have nested interrupt
	if c.inkernelTrap > 1 {
		k.errorf(h, "nested kerneltrap, depth %d", c.inkernelTrap)
		return k.kernelPanic(h, ktf)
	}
	if k.panicked.Load() {
		return k.fatalHalt(h, "other CPU has panicked")
	}

	switch code {
	case SupervisorTimer:
		k.tracef(h, "s-timer interrupt, cycle: %d", r_time(h))
		k.timer.SetNextTimer(h)
		// kernel threads are never preempted, only processes.
		if p := k.curr_proc(h); p != nil {
			if d, ok := k.preempt(h, c, p); !ok {
				return d
			}
		}
	case SupervisorExternal:
		k.tracef(h, "s-external interrupt")
		k.plic_handle(h)
	default:
		k.errorf(h, "unhandled interrupt: %d", cause)
		return k.kernelPanic(h, ktf)
	}

	if intr_get(h) {
		k.errorf(h, "kerneltrap: interrupts enabled on return")
		return k.kernelPanic(h, ktf)
	}
	if c.inkernelTrap != 1 {
		k.errorf(h, "kerneltrap: depth %d on return", c.inkernelTrap)
		return k.kernelPanic(h, ktf)
	}
	c.inkernelTrap--

	return Resume
}

// preempt yields the hart on behalf of p. Whatever runs on the hart during
// the yield owns the trap CSRs and the nesting counter; both are put back
// exactly as they were before returning to the interrupted trap.
//
// ok is false if the machine panicked during the yield. The interrupted
// trap must not resume then, and d is what it returns instead.
func (k *Kernel) preempt(h Hart, c *cpu, p *Proc) (d Disposition, ok bool) {
	depth := c.inkernelTrap
	saved := saveTrapCSRs(h)
	c.inkernelTrap = 0

	k.sched.Yield(h, p)

	c.inkernelTrap = depth
	saved.restore(h)

	switch {
	case c.halted:
		// A trap taken during the yield already halted this hart.
		return Halt, false
	case k.panicked.Load():
		return k.fatalHalt(h, "other CPU has panicked"), false
	}
	return Resume, true
}

// Trapinithart points stvec at kernel_trap_entry in direct mode, so that
// every trap taken by h lands on it.
func (k *Kernel) Trapinithart(h Hart, kernelTrapEntry uintptr) {
	if kernelTrapEntry&uintptr(STVEC_MODE_MASK) != 0 {
		panic(fmt.Sprintf("trapinithart: kernel_trap_entry %#x not 4-byte aligned", kernelTrapEntry))
	}
	w_stvec(h, uint64(kernelTrapEntry)|STVEC_MODE_DIRECT)
}
