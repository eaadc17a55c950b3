package alloc

import (
	"fmt"
	"reflect"
	"unsafe"

	"go.uber.org/multierr"
)

// References:
// https://github.com/ortuman/nuke
// https://github.com/dgraph-io/badger/blob/master/skl/arena.go

const (
	// Covers the alignment of every Go type, and chunk bases are
	// re-aligned per allocation so the chunk source never matters.
	arenaBlockAlign = uintptr(16)

	// DefaultArenaChunkCap is the chunk size used when the caller
	// passes zero.
	DefaultArenaChunkCap = uintptr(64 << 10)
)

// ArenaAllocator is an unmanaged bump allocator over a list of equally
// sized chunks. Released blocks land on per-size-class free lists and
// are handed out again before any chunk is consumed, so a steady
// insert/remove workload settles into reuse without growth.
//
// The memory is invisible to the Go garbage collector: only
// pointer-free payloads may be stored in it. Containers enforce that at
// construction.
type ArenaAllocator interface {
	Allocator
	// Reset forgets every live block and rewinds all chunks for reuse.
	// Outstanding pointers into the arena become dangling.
	Reset()
	// Close unmaps or drops every chunk. Allocation after Close fails.
	Close() error
	AllocatedBytes() uintptr
	ChunkCount() int
}

type arenaChunk struct {
	buf    []byte
	offset uintptr
	unmap  func() error
}

func (chunk *arenaChunk) availableBytes() uintptr {
	return uintptr(len(chunk.buf)) - chunk.offset
}

func (chunk *arenaChunk) allocate(size uintptr) (unsafe.Pointer, bool) {
	base := uintptr(unsafe.Pointer(unsafe.SliceData(chunk.buf)))
	start := alignUp(base+chunk.offset, arenaBlockAlign) - base
	if start+size > uintptr(len(chunk.buf)) {
		return nil, false
	}
	ptr := unsafe.Pointer(&chunk.buf[start])
	chunk.offset = start + size
	return ptr, true
}

func (chunk *arenaChunk) free() error {
	chunk.buf = nil
	chunk.offset = 0
	if chunk.unmap != nil {
		unmap := chunk.unmap
		chunk.unmap = nil
		return unmap()
	}
	return nil
}

func newArenaChunk(size uintptr, osReserve bool) *arenaChunk {
	if osReserve {
		if buf, unmap, ok := mmapChunk(size); ok {
			return &arenaChunk{buf: buf, unmap: unmap}
		}
	}
	return &arenaChunk{buf: make([]byte, size)}
}

type xArenaAllocator struct {
	lock      spinLock
	chunks    []*arenaChunk
	recycled  map[uintptr][]unsafe.Pointer // size class => released blocks
	chunkCap  uintptr
	allocated uintptr
	osReserve bool
	fixedCap  bool
	closed    bool
}

var _ ArenaAllocator = (*xArenaAllocator)(nil)

type ArenaOption func(*xArenaAllocator)

// WithArenaFixedCapacity pins the arena to its initial chunk. Once the
// chunk and the free lists are exhausted, Allocate reports failure
// instead of growing. This is the configuration for bounded-memory
// hosts and for forcing allocation-failure paths in tests.
func WithArenaFixedCapacity() ArenaOption {
	return func(arena *xArenaAllocator) {
		arena.fixedCap = true
	}
}

// WithArenaOSReserve sources chunks from anonymous OS mappings instead
// of the Go heap, keeping the arena entirely outside the collected
// heap. On platforms without mmap support chunks silently fall back to
// the heap.
func WithArenaOSReserve() ArenaOption {
	return func(arena *xArenaAllocator) {
		arena.osReserve = true
	}
}

func NewArenaAllocator(chunkCap uintptr, opts ...ArenaOption) ArenaAllocator {
	if chunkCap == 0 {
		chunkCap = DefaultArenaChunkCap
	}
	chunkCap = alignUp(chunkCap, arenaBlockAlign)
	arena := &xArenaAllocator{
		chunkCap: chunkCap,
		recycled: make(map[uintptr][]unsafe.Pointer, 8),
	}
	for _, o := range opts {
		if o != nil {
			o(arena)
		}
	}
	arena.chunks = append(arena.chunks, newArenaChunk(chunkCap, arena.osReserve))
	return arena
}

func (arena *xArenaAllocator) Allocate(size uintptr) (unsafe.Pointer, bool) {
	if size == 0 {
		return nil, false
	}
	arena.lock.lock()
	defer arena.lock.unlock()
	return arena.allocateLocked(size)
}

func (arena *xArenaAllocator) allocateLocked(size uintptr) (unsafe.Pointer, bool) {
	if arena.closed {
		return nil, false
	}
	class := alignUp(size, arenaBlockAlign)
	if blocks := arena.recycled[class]; len(blocks) > 0 {
		ptr := blocks[len(blocks)-1]
		arena.recycled[class] = blocks[:len(blocks)-1]
		memclr(ptr, class)
		arena.allocated += class
		return ptr, true
	}
	for _, chunk := range arena.chunks {
		if chunk.availableBytes() < class {
			continue
		}
		if ptr, ok := chunk.allocate(class); ok {
			memclr(ptr, class)
			arena.allocated += class
			return ptr, true
		}
	}
	if arena.fixedCap {
		return nil, false
	}
	chunkCap := arena.chunkCap
	if class+arenaBlockAlign > chunkCap {
		chunkCap = class + arenaBlockAlign
	}
	chunk := newArenaChunk(chunkCap, arena.osReserve)
	arena.chunks = append(arena.chunks, chunk)
	ptr, ok := chunk.allocate(class)
	if !ok {
		return nil, false
	}
	memclr(ptr, class)
	arena.allocated += class
	return ptr, true
}

func (arena *xArenaAllocator) AllocateTyped(typ reflect.Type) (unsafe.Pointer, bool) {
	if typ == nil {
		return nil, false
	}
	size := typ.Size()
	if size == 0 {
		size = 1
	}
	return arena.Allocate(size)
}

func (arena *xArenaAllocator) Reallocate(ptr unsafe.Pointer, oldSize, newSize uintptr) (unsafe.Pointer, bool) {
	if ptr == nil {
		return arena.Allocate(newSize)
	}
	if newSize == 0 {
		return nil, false
	}
	oldClass, newClass := alignUp(oldSize, arenaBlockAlign), alignUp(newSize, arenaBlockAlign)
	if oldClass == newClass {
		// Same class, the block already fits.
		return ptr, true
	}
	arena.lock.lock()
	defer arena.lock.unlock()
	grown, ok := arena.allocateLocked(newSize)
	if !ok {
		return nil, false
	}
	copy(
		unsafe.Slice((*byte)(grown), newClass),
		unsafe.Slice((*byte)(ptr), min(oldSize, newSize)),
	)
	arena.releaseLocked(ptr, oldSize)
	return grown, true
}

func (arena *xArenaAllocator) Release(ptr unsafe.Pointer, size uintptr) {
	if ptr == nil || size == 0 {
		return
	}
	arena.lock.lock()
	defer arena.lock.unlock()
	arena.releaseLocked(ptr, size)
}

func (arena *xArenaAllocator) releaseLocked(ptr unsafe.Pointer, size uintptr) {
	if arena.closed {
		return
	}
	class := alignUp(size, arenaBlockAlign)
	arena.recycled[class] = append(arena.recycled[class], ptr)
	if arena.allocated >= class {
		arena.allocated -= class
	}
}

func (arena *xArenaAllocator) Unmanaged() bool {
	return true
}

func (arena *xArenaAllocator) Reset() {
	arena.lock.lock()
	defer arena.lock.unlock()
	if arena.closed {
		return
	}
	for _, chunk := range arena.chunks {
		chunk.offset = 0
	}
	clear(arena.recycled)
	arena.allocated = 0
}

func (arena *xArenaAllocator) Close() error {
	arena.lock.lock()
	defer arena.lock.unlock()
	if arena.closed {
		return nil
	}
	arena.closed = true
	var err error
	for _, chunk := range arena.chunks {
		if unmapErr := chunk.free(); unmapErr != nil {
			err = multierr.Append(err, fmt.Errorf("%w: %v", ErrAllocatorChunkUnmap, unmapErr))
		}
	}
	arena.chunks = nil
	arena.recycled = nil
	arena.allocated = 0
	return err
}

func (arena *xArenaAllocator) AllocatedBytes() uintptr {
	arena.lock.lock()
	defer arena.lock.unlock()
	return arena.allocated
}

func (arena *xArenaAllocator) ChunkCount() int {
	arena.lock.lock()
	defer arena.lock.unlock()
	return len(arena.chunks)
}
