package kernel

// Disposition is what the trap entry stub does once the dispatcher is done.
type Disposition int

const (
	// Resume returns to the interrupted kernel instruction stream with sret.
	Resume Disposition = iota
	// Halt stops the hart for good. The machine has panicked.
	Halt
)

func (d Disposition) String() string {
	switch d {
	case Resume:
		return "resume"
	case Halt:
		return "halt"
	default:
		return "unknown"
	}
}

const (
	panicBanner = "=========== Kernel Panic ==========="
	panicRule   = "===================================="
)

// Panicked reports whether any hart has panicked.
func (k *Kernel) Panicked() bool {
	return k.panicked.Load()
}

// kernelPanic prints a complete register dump under kpPrintLock, so dumps
// from harts that panic together do not interleave, then halts the hart.
func (k *Kernel) kernelPanic(h Hart, ktf *Ktrapframe) Disposition {
	acquire(&k.kpPrintLock)

	k.printf("%s\n", panicBanner)
	k.print_sysregs(h, true)
	k.print_ktrapframe(ktf)
	k.printf("%s\n", panicRule)

	release(&k.kpPrintLock)

	return k.fatalHalt(h, "kernel panic")
}

// fatalHalt marks the machine panicked and stops this hart.
func (k *Kernel) fatalHalt(h Hart, msg string) Disposition {
	k.mycpu(h).halted = true
	k.panicked.Store(true)
	k.printf("panic: hart %d: %s\n", h.ID(), msg)
	k.hartLog(h).Error("panic: " + msg)
	return Halt
}
