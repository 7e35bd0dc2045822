package kernel

import (
	"runtime"
	"sync/atomic"
)

// spinlock is a test-and-set lock. It never sleeps and never times out.
type spinlock struct {
	locked atomic.Uint32
}

func initlock(lk *spinlock) {
	lk.locked.Store(0)
}

func acquire(lk *spinlock) {
	for lk.locked.Swap(1) == 1 {
		runtime.Gosched()
	}
}

func release(lk *spinlock) {
	lk.locked.Store(0)
}

func holding(lk *spinlock) bool {
	return lk.locked.Load() == 1
}
