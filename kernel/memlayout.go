package kernel

// Physical addresses of the qemu virt machine (hw/riscv/virt.c) that the
// trap path touches. The kernel image is loaded at KERNBASE.

// Interrupt sources wired to the PLIC.
const (
	VIRTIO0_IRQ = 1
	UART0_IRQ   = 10
)

// CLINT holds one 64-bit timer compare register per hart.
const (
	CLINT      = uintptr(0x2000000)
	CLINT_SIZE = uintptr(0x10000)
)

func CLINT_MTIMECMP(hartid int) uintptr { return CLINT + 0x4000 + 8*uintptr(hartid) }

// PLIC registers, supervisor contexts only.
const (
	PLIC          = uintptr(0x0c000000)
	PLIC_SIZE     = uintptr(0x400000)
	PLIC_PRIORITY = PLIC + 0x0
)

func PLIC_SOURCE_PRIORITY(irq int) uintptr { return PLIC_PRIORITY + 4*uintptr(irq) }
func PLIC_SENABLE(hart int) uintptr { return PLIC + 0x2080 + uintptr(hart)*0x100 }
func PLIC_SPRIORITY(hart int) uintptr { return PLIC + 0x201000 + uintptr(hart)*0x2000 }
func PLIC_SCLAIM(hart int) uintptr { return PLIC + 0x201004 + uintptr(hart)*0x2000 }

// RAM runs from KERNBASE to PHYSTOP.
const (
	KERNBASE = uintptr(0x80000000)
	PHYSTOP  = KERNBASE + 128*1024*1024
)
