package alloc

import (
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/benz9527/xcontainer/lib/infra"
)

const (
	spinLockFree = uint32(0)
	spinLockHeld = uint32(1)
)

// spinLock guards the short critical sections of the arena. Allocation
// from a bump pointer is a handful of instructions, so spinning with
// progressive backoff beats parking the goroutine.
type spinLock uint32

func (l *spinLock) lock() {
	backoff := uint8(1)
	for !atomic.CompareAndSwapUint32((*uint32)(l), spinLockFree, spinLockHeld) {
		if backoff <= 32 {
			for i := uint8(0); i < backoff; i++ {
				infra.ProcYield(20)
			}
			backoff <<= 1
		} else {
			runtime.Gosched()
		}
	}
}

func (l *spinLock) unlock() {
	atomic.StoreUint32((*uint32)(l), spinLockFree)
}

// Translated into runtime.memclrNoHeapPointers by the compiler.
// go/src/runtime/memclr_$GOARCH.s (since https://codereview.appspot.com/137880043)
func memclr(ptr unsafe.Pointer, size uintptr) {
	bytes := unsafe.Slice((*byte)(ptr), size)
	for i := range bytes {
		bytes[i] = 0
	}
}

func alignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}
