package kernel

// Timer arms the next supervisor timer interrupt of a hart.
type Timer interface {
	SetNextTimer(h Hart)
}

// MMIO64 is 64-bit device register access, as the CLINT needs.
type MMIO64 interface {
	Read64(addr uintptr) uint64
	Write64(addr uintptr, val uint64)
}

// CLINTTimer programs the CLINT compare register of each hart. Writing
// mtimecmp also clears the hart's pending timer interrupt, as the SBI
// set_timer call does.
type CLINTTimer struct {
	bus      MMIO64
	interval uint64
}

// NewCLINTTimer returns a timer that fires every interval ticks of the
// time CSR.
func NewCLINTTimer(bus MMIO64, interval uint64) *CLINTTimer {
	return &CLINTTimer{bus: bus, interval: interval}
}

// SetNextTimer implements Timer.
func (t *CLINTTimer) SetNextTimer(h Hart) {
	t.bus.Write64(CLINT_MTIMECMP(h.ID()), r_time(h)+t.interval)
}

// Deadline returns when the next timer interrupt of hart is due.
func (t *CLINTTimer) Deadline(hart int) uint64 {
	return t.bus.Read64(CLINT_MTIMECMP(hart))
}
