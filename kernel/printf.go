package kernel

import (
	"fmt"
)

// Ktrapframe holds the general purpose registers saved by kernel_trap_entry,
// indexed by register number. x0 is not saved.
type Ktrapframe struct {
	X [32]uint64
}

var regNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// Register numbers of the ABI names that show up in diagnostics.
const (
	REG_SP = 2
	REG_TP = 4
	REG_A0 = 10
)

func (k *Kernel) printf(format string, args ...any) {
	fmt.Fprintf(k.console, format, args...)
}

// print_sysregs dumps the supervisor CSRs of h. full adds the registers
// that are not trap related.
func (k *Kernel) print_sysregs(h Hart, full bool) {
	k.printf("hart %d system registers:\n", h.ID())
	k.printf("  sstatus: %#018x  sie:   %#018x  sip:    %#018x\n", r_sstatus(h), r_sie(h), r_sip(h))
	k.printf("  scause:  %#018x  sepc:  %#018x  stval:  %#018x\n", r_scause(h), r_sepc(h), r_stval(h))
	if !full {
		return
	}
	k.printf("  satp:    %#018x  stvec: %#018x  time:   %d\n", r_satp(h), r_stvec(h), r_time(h))
	c := k.mycpu(h)
	if c.proc != nil {
		k.printf("  nesting: %d  proc: %d (%s) %v\n", c.inkernelTrap, c.proc.Pid, c.proc.Name, c.proc.State)
	} else {
		k.printf("  nesting: %d  proc: none\n", c.inkernelTrap)
	}
}

func (k *Kernel) print_ktrapframe(ktf *Ktrapframe) {
	if ktf == nil {
		k.printf("ktrapframe: nil\n")
		return
	}
	k.printf("ktrapframe:\n")
	for i := 1; i < len(ktf.X); i += 4 {
		for j := i; j < i+4 && j < len(ktf.X); j++ {
			k.printf("  %-4s %#018x", regNames[j], ktf.X[j])
		}
		k.printf("\n")
	}
}
