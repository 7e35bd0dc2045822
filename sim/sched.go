package sim

import (
	"xv6-ktrap/kernel"
)

// task is a process together with the hart state it runs with.
type task struct {
	proc *kernel.Proc
	pc   uint64
	satp uint64
}

// Scheduler is a round-robin scheduler with one run queue per hart.
// Processes never migrate.
type Scheduler struct {
	m        *Machine
	queues   [][]*task
	switches []int
	nextPid  int
}

func newScheduler(m *Machine, harts int) *Scheduler {
	return &Scheduler{
		m:        m,
		queues:   make([][]*task, harts),
		switches: make([]int, harts),
		nextPid:  1,
	}
}

func (s *Scheduler) add(hart int, name string) *kernel.Proc {
	p := &kernel.Proc{Pid: s.nextPid, Name: name, State: kernel.RUNNABLE}
	s.nextPid++
	// Each process gets its own page table and text.
	pagetable := uint64(kernel.PHYSTOP) - uint64(p.Pid)*kernel.PGSIZE*16
	s.queues[hart] = append(s.queues[hart], &task{
		proc: p,
		pc:   uint64(kernel.KERNBASE) + 0x100000*uint64(p.Pid),
		satp: kernel.MAKE_SATP(pagetable),
	})
	return p
}

// start makes the first process of every hart current.
func (s *Scheduler) start() {
	for hart, q := range s.queues {
		if len(q) == 0 {
			continue
		}
		q[0].proc.State = kernel.RUNNING
		s.m.k.SetCurrentProc(hart, q[0].proc)
	}
}

func (s *Scheduler) find(hart int, p *kernel.Proc) int {
	for i, t := range s.queues[hart] {
		if t.proc == p {
			return i
		}
	}
	return -1
}

// pick returns the next runnable task after position i, or nil.
func (s *Scheduler) pick(hart, i int) *task {
	q := s.queues[hart]
	for n := 1; n < len(q); n++ {
		t := q[(i+n)%len(q)]
		if t.proc.State == kernel.RUNNABLE {
			return t
		}
	}
	return nil
}

// Yield implements kernel.Scheduler. It switches to the next runnable task
// on the hart, lets it run a time slice and switches back. A trap taken
// during that slice does not switch again.
func (s *Scheduler) Yield(kh kernel.Hart, p *kernel.Proc) {
	h := s.m.harts[kh.ID()]
	if h.yielding {
		return
	}
	next := s.pick(h.id, s.find(h.id, p))
	if next == nil {
		return
	}

	h.yielding = true
	defer func() { h.yielding = false }()

	p.State = kernel.RUNNABLE
	next.proc.State = kernel.RUNNING
	s.m.k.SetCurrentProc(h.id, next.proc)
	s.switches[h.id]++

	s.run(h, next)

	next.proc.State = kernel.RUNNABLE
	p.State = kernel.RUNNING
	s.m.k.SetCurrentProc(h.id, p)
}

// run lets t execute on h for one slice with interrupts on. It owns the trap
// registers while it runs.
func (s *Scheduler) run(h *Hart, t *task) {
	h.satp = t.satp
	h.pc = t.pc
	h.sie |= kernel.SIE_SEIE | kernel.SIE_STIE
	intr_on(h)

	h.advance(s.m.cfg.SliceCycles)
	if _, _, err := h.interrupt(); err != nil {
		s.m.log.WithField("hart", h.id).WithError(err).Error("trap during time slice")
	}

	t.pc = h.pc
	intr_off(h)
}
