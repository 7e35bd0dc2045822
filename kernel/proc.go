package kernel

import "fmt"

type procstate int

const (
	UNUSED   procstate = iota // 0
	USED                      // 1
	SLEEPING                  // 2
	RUNNABLE                  // 3
	RUNNING                   // 4
	ZOMBIE                    // 5
)

var procstateNames = [...]string{"unused", "used", "sleeping", "runnable", "running", "zombie"}

func (s procstate) String() string {
	if s >= 0 && int(s) < len(procstateNames) {
		return procstateNames[s]
	}
	return fmt.Sprintf("procstate(%d)", int(s))
}

// Proc is the handle of a task scheduled on a hart. Process management owns
// everything else about it.
type Proc struct {
	State procstate
	Pid   int
	Name  string
}

// Scheduler gives up the hart on behalf of a preempted process. Yield may
// run any other kernel code on h, including further traps, and returns on
// the same hart once p is scheduled again.
type Scheduler interface {
	Yield(h Hart, p *Proc)
}

// Per-CPU state.
type cpu struct {
	inkernelTrap int   // depth of kernel traps on this hart
	proc         *Proc // The process running on this cpu, or nil.
	halted       bool  // set by fatalHalt, never cleared
}

func (k *Kernel) mycpu(h Hart) *cpu {
	id := h.ID()
	if id < 0 || id >= len(k.cpus) {
		panic(fmt.Sprintf("mycpu: hart %d out of range [0, %d)", id, len(k.cpus)))
	}
	return &k.cpus[id]
}

func (k *Kernel) curr_proc(h Hart) *Proc {
	return k.mycpu(h).proc
}

// CurrentProc returns the process running on hart id, or nil.
func (k *Kernel) CurrentProc(hartid int) *Proc {
	return k.cpus[hartid].proc
}

// SetCurrentProc records p as the process running on hart id. Only that
// hart may call it.
func (k *Kernel) SetCurrentProc(hartid int, p *Proc) {
	k.cpus[hartid].proc = p
}

// NestingDepth returns the kernel trap depth of hart id.
func (k *Kernel) NestingDepth(hartid int) int {
	return k.cpus[hartid].inkernelTrap
}
