package alloc

import (
	"fmt"
	"io"
	"reflect"
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/benz9527/xcontainer/lib/infra"
)

const defaultLeakCheckStackDepth = 6

// LeakCheckAllocator wraps another allocator and keeps a record of
// every live block, including the call site that produced it. Closing
// it reports each block that was never released, one error per block,
// plus every release of a pointer it never handed out. Wrap the
// allocator under test, run the workload, Close, and assert nil.
type LeakCheckAllocator interface {
	Allocator
	io.Closer
	LiveAllocations() int
	LiveBytes() uintptr
}

type allocRecord struct {
	size uintptr
	site []infra.Frame
}

type xLeakCheckAllocator struct {
	inner        Allocator
	logger       *zap.Logger
	stats        *allocStats
	name         string
	stackDepth   int
	statsEnabled bool
	untracked    atomic.Int64
	closed       atomic.Bool

	// Registry of live blocks keyed by address. Addresses are stable,
	// the Go heap does not move objects.
	lock    sync.RWMutex
	records map[uintptr]allocRecord
}

var _ LeakCheckAllocator = (*xLeakCheckAllocator)(nil)

type LeakCheckOption func(*xLeakCheckAllocator)

func WithLeakCheckName(name string) LeakCheckOption {
	return func(a *xLeakCheckAllocator) {
		if name != "" {
			a.name = name
		}
	}
}

func WithLeakCheckLogger(logger *zap.Logger) LeakCheckOption {
	return func(a *xLeakCheckAllocator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithLeakCheckStackDepth sets how many frames of the allocation site
// are captured per block. Zero disables site capture, which roughly
// halves the tracking cost.
func WithLeakCheckStackDepth(depth int) LeakCheckOption {
	return func(a *xLeakCheckAllocator) {
		if depth >= 0 {
			a.stackDepth = depth
		}
	}
}

func NewLeakCheckAllocator(inner Allocator, opts ...LeakCheckOption) LeakCheckAllocator {
	if inner == nil {
		inner = Std()
	}
	a := &xLeakCheckAllocator{
		inner:      inner,
		logger:     zap.NewNop(),
		name:       "default",
		stackDepth: defaultLeakCheckStackDepth,
		records:    make(map[uintptr]allocRecord, 64),
	}
	for _, o := range opts {
		if o != nil {
			o(a)
		}
	}
	if a.statsEnabled {
		a.stats = newAllocStats(a)
	}
	return a
}

func (a *xLeakCheckAllocator) track(ptr unsafe.Pointer, size uintptr) {
	var site []infra.Frame
	if a.stackDepth > 0 {
		// Skip track and its caller, the exported method.
		site = infra.Callers(2, a.stackDepth)
	}
	a.lock.Lock()
	a.records[uintptr(ptr)] = allocRecord{size: size, site: site}
	a.lock.Unlock()
	a.stats.IncreaseAllocatedCount()
	a.stats.RecordLiveBytes(int64(size))
	a.stats.RecordAllocatedSize(int64(size))
}

func (a *xLeakCheckAllocator) untrack(ptr unsafe.Pointer) (allocRecord, bool) {
	a.lock.Lock()
	record, ok := a.records[uintptr(ptr)]
	if ok {
		delete(a.records, uintptr(ptr))
	}
	a.lock.Unlock()
	return record, ok
}

func (a *xLeakCheckAllocator) Allocate(size uintptr) (unsafe.Pointer, bool) {
	ptr, ok := a.inner.Allocate(size)
	if !ok {
		a.stats.IncreaseFailedCount()
		return nil, false
	}
	a.track(ptr, size)
	return ptr, true
}

func (a *xLeakCheckAllocator) AllocateTyped(typ reflect.Type) (unsafe.Pointer, bool) {
	if typ == nil {
		return nil, false
	}
	ptr, ok := a.inner.AllocateTyped(typ)
	if !ok {
		a.stats.IncreaseFailedCount()
		return nil, false
	}
	if typ.Size() > 0 {
		// Zero sized types share one address, tracking them would
		// collide.
		a.track(ptr, typ.Size())
	}
	return ptr, true
}

func (a *xLeakCheckAllocator) Reallocate(ptr unsafe.Pointer, oldSize, newSize uintptr) (unsafe.Pointer, bool) {
	if ptr == nil {
		return a.Allocate(newSize)
	}
	record, ok := a.untrack(ptr)
	if !ok {
		a.untracked.Add(1)
		a.logger.Warn("reallocate of untracked pointer",
			zap.String("allocator", a.name),
			zap.Uintptr("addr", uintptr(ptr)),
		)
		return nil, false
	}
	grown, ok := a.inner.Reallocate(ptr, oldSize, newSize)
	if !ok {
		// The old block is still live, keep its record.
		a.lock.Lock()
		a.records[uintptr(ptr)] = record
		a.lock.Unlock()
		a.stats.IncreaseFailedCount()
		return nil, false
	}
	a.track(grown, newSize)
	a.stats.RecordLiveBytes(-int64(record.size))
	a.stats.IncreaseReleasedCount()
	return grown, true
}

func (a *xLeakCheckAllocator) Release(ptr unsafe.Pointer, size uintptr) {
	if ptr == nil {
		return
	}
	record, ok := a.untrack(ptr)
	if !ok {
		// Never forwarded: handing an unknown pointer to the inner
		// allocator could corrupt its free lists.
		a.untracked.Add(1)
		a.logger.Warn("release of untracked pointer",
			zap.String("allocator", a.name),
			zap.Uintptr("addr", uintptr(ptr)),
			zap.Uint64("size", uint64(size)),
		)
		return
	}
	if size != record.size {
		a.logger.Warn("release size mismatch",
			zap.String("allocator", a.name),
			zap.Uintptr("addr", uintptr(ptr)),
			zap.Uint64("released", uint64(size)),
			zap.Uint64("allocated", uint64(record.size)),
		)
	}
	a.inner.Release(ptr, record.size)
	a.stats.IncreaseReleasedCount()
	a.stats.RecordLiveBytes(-int64(record.size))
}

func (a *xLeakCheckAllocator) Unmanaged() bool {
	return a.inner.Unmanaged()
}

func (a *xLeakCheckAllocator) LiveAllocations() int {
	a.lock.RLock()
	defer a.lock.RUnlock()
	return len(a.records)
}

func (a *xLeakCheckAllocator) LiveBytes() uintptr {
	a.lock.RLock()
	defer a.lock.RUnlock()
	total := uintptr(0)
	for _, record := range a.records {
		total += record.size
	}
	return total
}

// Close reports every leaked block and every untracked release, then
// closes the inner allocator if it is closable. Safe to call once.
func (a *xLeakCheckAllocator) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	a.lock.Lock()
	records := a.records
	a.records = make(map[uintptr]allocRecord)
	a.lock.Unlock()

	var err error
	leakedBytes := uintptr(0)
	for addr, record := range records {
		leakedBytes += record.size
		a.logger.Error("allocation leaked",
			zap.String("allocator", a.name),
			zap.Uintptr("addr", addr),
			zap.Uint64("size", uint64(record.size)),
			zap.Strings("site", infra.FrameStrings(record.site)),
		)
		err = multierr.Append(err, fmt.Errorf("%w: %d bytes at address %#x",
			ErrAllocatorLeak, record.size, addr))
	}
	if n := a.untracked.Load(); n > 0 {
		err = multierr.Append(err, fmt.Errorf("%w: %d times",
			ErrAllocatorUntrackedPtr, n))
	}
	if len(records) > 0 {
		a.logger.Error("leak check summary",
			zap.String("allocator", a.name),
			zap.Int("leakedAllocations", len(records)),
			zap.Uint64("leakedBytes", uint64(leakedBytes)),
		)
	}
	if closer, ok := a.inner.(io.Closer); ok {
		err = multierr.Append(err, closer.Close())
	}
	return err
}
