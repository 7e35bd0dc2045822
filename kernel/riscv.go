package kernel

import "fmt"

const PGSIZE = uint64(4096)

// CSR is a supervisor control and status register number.
type CSR uint16

const (
	CSR_SSTATUS CSR = 0x100
	CSR_SIE     CSR = 0x104
	CSR_STVEC   CSR = 0x105
	CSR_SEPC    CSR = 0x141
	CSR_SCAUSE  CSR = 0x142
	CSR_STVAL   CSR = 0x143
	CSR_SIP     CSR = 0x144
	CSR_SATP    CSR = 0x180
	CSR_TIME    CSR = 0xC01
)

var csrNames = map[CSR]string{
	CSR_SSTATUS: "sstatus",
	CSR_SIE:     "sie",
	CSR_STVEC:   "stvec",
	CSR_SEPC:    "sepc",
	CSR_SCAUSE:  "scause",
	CSR_STVAL:   "stval",
	CSR_SIP:     "sip",
	CSR_SATP:    "satp",
	CSR_TIME:    "time",
}

func (c CSR) String() string {
	if n, ok := csrNames[c]; ok {
		return n
	}
	return fmt.Sprintf("csr%#x", uint16(c))
}

// Supervisor Status Register, sstatus
const (
	SSTATUS_SPP  = uint64(1) << 8 // Previous mode, 1=Supervisor, 0=User
	SSTATUS_SPIE = uint64(1) << 5 // Supervisor Previous Interrupt Enable
	SSTATUS_SIE  = uint64(1) << 1 // Supervisor Interrupt Enable
)

// Supervisor Interrupt Enable / Pending, sie and sip
const (
	SIE_SEIE = uint64(1) << 9 // external
	SIE_STIE = uint64(1) << 5 // timer

	SIP_SEIP = SIE_SEIE
	SIP_STIP = SIE_STIE
)

// Supervisor Trap Cause, scause
const (
	SCAUSE_INTERRUPT           = uint64(1) << 63
	SCAUSE_EXCEPTION_CODE_MASK = SCAUSE_INTERRUPT - 1
)

// Supervisor interrupt codes.
const (
	SupervisorSoftware = 1
	SupervisorTimer    = 5
	SupervisorExternal = 9
)

// Exception codes.
const (
	InstructionMisaligned  = 0
	InstructionAccessFault = 1
	IllegalInstruction     = 2
	Breakpoint             = 3
	LoadMisaligned         = 4
	LoadAccessFault        = 5
	StoreMisaligned        = 6
	StoreAccessFault       = 7
	UserEnvCall            = 8
	SupervisorEnvCall      = 9
	InstructionPageFault   = 12
	LoadPageFault          = 13
	StorePageFault         = 15
)

var exceptionNames = map[uint64]string{
	InstructionMisaligned:  "instruction address misaligned",
	InstructionAccessFault: "instruction access fault",
	IllegalInstruction:     "illegal instruction",
	Breakpoint:             "breakpoint",
	LoadMisaligned:         "load address misaligned",
	LoadAccessFault:        "load access fault",
	StoreMisaligned:        "store/amo address misaligned",
	StoreAccessFault:       "store/amo access fault",
	UserEnvCall:            "environment call from U-mode",
	SupervisorEnvCall:      "environment call from S-mode",
	InstructionPageFault:   "instruction page fault",
	LoadPageFault:          "load page fault",
	StorePageFault:         "store/amo page fault",
}

func exceptionName(code uint64) string {
	if n, ok := exceptionNames[code]; ok {
		return n
	}
	return "unknown exception"
}

// Supervisor Trap-Vector Base Address, stvec. The low two bits select the mode.
const (
	STVEC_MODE_DIRECT   = uint64(0)
	STVEC_MODE_VECTORED = uint64(1)
	STVEC_MODE_MASK     = uint64(3)
)

// use riscv's sv39 page table scheme.
const SATP_SV39 = uint64(8) << 60

// MAKE_SATP returns the satp value selecting the page table at physical
// address pagetable.
func MAKE_SATP(pagetable uint64) uint64 { return SATP_SV39 | (pagetable >> 12) }

// Hart is the CSR file of one hardware thread, as seen from supervisor mode.
type Hart interface {
	// ID returns the hart id, as found in tp.
	ID() int
	ReadCSR(csr CSR) uint64
	WriteCSR(csr CSR, val uint64)
}

func r_sstatus(h Hart) uint64 { return h.ReadCSR(CSR_SSTATUS) }
func w_sstatus(h Hart, x uint64) { h.WriteCSR(CSR_SSTATUS, x) }
func r_sie(h Hart) uint64 { return h.ReadCSR(CSR_SIE) }
func w_sie(h Hart, x uint64) { h.WriteCSR(CSR_SIE, x) }
func r_sepc(h Hart) uint64 { return h.ReadCSR(CSR_SEPC) }
func w_sepc(h Hart, x uint64) { h.WriteCSR(CSR_SEPC, x) }
func r_scause(h Hart) uint64 { return h.ReadCSR(CSR_SCAUSE) }
func w_scause(h Hart, x uint64) { h.WriteCSR(CSR_SCAUSE, x) }
func r_stval(h Hart) uint64 { return h.ReadCSR(CSR_STVAL) }
func w_stval(h Hart, x uint64) { h.WriteCSR(CSR_STVAL, x) }
func r_sip(h Hart) uint64 { return h.ReadCSR(CSR_SIP) }
func w_sip(h Hart, x uint64) { h.WriteCSR(CSR_SIP, x) }
func r_satp(h Hart) uint64 { return h.ReadCSR(CSR_SATP) }
func w_satp(h Hart, x uint64) { h.WriteCSR(CSR_SATP, x) }
func r_stvec(h Hart) uint64 { return h.ReadCSR(CSR_STVEC) }
func w_stvec(h Hart, x uint64) { h.WriteCSR(CSR_STVEC, x) }
func r_time(h Hart) uint64 { return h.ReadCSR(CSR_TIME) }

// are device interrupts enabled?
func intr_get(h Hart) bool {
	return r_sstatus(h)&SSTATUS_SIE != 0
}

// IntrGet reports whether supervisor interrupts are enabled on h.
func IntrGet(h Hart) bool { return intr_get(h) }
