package alloc

import (
	"math/rand"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaAllocator_AllocateAlignedZeroed(t *testing.T) {
	arena := NewArenaAllocator(0)
	defer func() { require.NoError(t, arena.Close()) }()
	require.True(t, arena.Unmanaged())

	sizes := []uintptr{1, 8, 15, 16, 17, 64, 100, 1024}
	total := uintptr(0)
	for _, size := range sizes {
		ptr, ok := arena.Allocate(size)
		require.True(t, ok)
		require.Zero(t, uintptr(ptr)%arenaBlockAlign)
		requireZeroed(t, ptr, size)
		bytes := unsafe.Slice((*byte)(ptr), size)
		for i := range bytes {
			bytes[i] = 0xEE
		}
		total += alignUp(size, arenaBlockAlign)
	}
	assert.Equal(t, total, arena.AllocatedBytes())

	_, ok := arena.Allocate(0)
	require.False(t, ok)
}

func TestArenaAllocator_RecycleReuse(t *testing.T) {
	arena := NewArenaAllocator(0)
	defer func() { require.NoError(t, arena.Close()) }()

	first, ok := arena.Allocate(24)
	require.True(t, ok)
	bytes := unsafe.Slice((*byte)(first), 24)
	for i := range bytes {
		bytes[i] = 0xFF
	}
	arena.Release(first, 24)
	assert.Zero(t, arena.AllocatedBytes())

	// Same size class comes back off the free list, zeroed again.
	second, ok := arena.Allocate(17)
	require.True(t, ok)
	assert.Equal(t, first, second)
	requireZeroed(t, second, 17)
	arena.Release(second, 17)
}

func TestArenaAllocator_ChunkGrowth(t *testing.T) {
	arena := NewArenaAllocator(128)
	defer func() { require.NoError(t, arena.Close()) }()
	require.Equal(t, 1, arena.ChunkCount())

	for i := 0; i < 10; i++ {
		_, ok := arena.Allocate(48)
		require.True(t, ok)
	}
	assert.Greater(t, arena.ChunkCount(), 1)

	// Oversize allocations get a chunk of their own.
	big, ok := arena.Allocate(4096)
	require.True(t, ok)
	requireZeroed(t, big, 4096)
}

func TestArenaAllocator_FixedCapacityExhausted(t *testing.T) {
	arena := NewArenaAllocator(128, WithArenaFixedCapacity())
	defer func() { require.NoError(t, arena.Close()) }()

	first, ok := arena.Allocate(48)
	require.True(t, ok)
	_, ok = arena.Allocate(48)
	require.True(t, ok)
	_, ok = arena.Allocate(48)
	require.False(t, ok)
	require.Equal(t, 1, arena.ChunkCount())

	// Releasing makes the class available again.
	arena.Release(first, 48)
	again, ok := arena.Allocate(48)
	require.True(t, ok)
	assert.Equal(t, first, again)
}

func TestArenaAllocator_ResetAndClose(t *testing.T) {
	arena := NewArenaAllocator(256)
	ptr, ok := arena.Allocate(64)
	require.True(t, ok)
	bytes := unsafe.Slice((*byte)(ptr), 64)
	bytes[0] = 0x7F

	chunks := arena.ChunkCount()
	arena.Reset()
	assert.Zero(t, arena.AllocatedBytes())
	assert.Equal(t, chunks, arena.ChunkCount())

	reused, ok := arena.Allocate(64)
	require.True(t, ok)
	requireZeroed(t, reused, 64)

	require.NoError(t, arena.Close())
	_, ok = arena.Allocate(16)
	require.False(t, ok)
	require.NoError(t, arena.Close())
}

func TestArenaAllocator_Reallocate(t *testing.T) {
	arena := NewArenaAllocator(0)
	defer func() { require.NoError(t, arena.Close()) }()

	ptr, ok := arena.Allocate(24)
	require.True(t, ok)
	bytes := unsafe.Slice((*byte)(ptr), 24)
	for i := range bytes {
		bytes[i] = byte(i + 1)
	}

	// Same size class is satisfied in place.
	same, ok := arena.Reallocate(ptr, 24, 30)
	require.True(t, ok)
	assert.Equal(t, ptr, same)

	// Crossing the class boundary moves and copies.
	moved, ok := arena.Reallocate(same, 30, 128)
	require.True(t, ok)
	assert.NotEqual(t, same, moved)
	movedBytes := unsafe.Slice((*byte)(moved), 128)
	for i := 0; i < 24; i++ {
		assert.Equal(t, byte(i+1), movedBytes[i])
	}

	// The old block went back to its free list.
	reused, ok := arena.Allocate(24)
	require.True(t, ok)
	assert.Equal(t, ptr, reused)
}

func TestArenaAllocator_OSReserve(t *testing.T) {
	arena := NewArenaAllocator(1<<16, WithArenaOSReserve())
	ptr, ok := arena.Allocate(512)
	require.True(t, ok)
	requireZeroed(t, ptr, 512)
	bytes := unsafe.Slice((*byte)(ptr), 512)
	bytes[0], bytes[511] = 0x01, 0x02
	arena.Release(ptr, 512)
	require.NoError(t, arena.Close())
}

func TestArenaAllocator_TypedAllocate(t *testing.T) {
	type flat struct {
		seq   int64
		score float64
	}
	arena := NewArenaAllocator(0)
	defer func() { require.NoError(t, arena.Close()) }()

	obj, ok := New[flat](arena)
	require.True(t, ok)
	obj.seq, obj.score = 11, 0.5
	Free(arena, obj)

	// Zero sized types are padded to a single byte.
	empty, ok := New[struct{}](arena)
	require.True(t, ok)
	require.NotNil(t, empty)

	_, ok = arena.AllocateTyped(nil)
	require.False(t, ok)
}

func TestArenaAllocator_ConcurrentAllocate(t *testing.T) {
	arena := NewArenaAllocator(1 << 12)
	defer func() { require.NoError(t, arena.Close()) }()

	const (
		workers       = 8
		roundsPerUnit = 200
	)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(seed uint64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(seed)))
			for i := 0; i < roundsPerUnit; i++ {
				size := uintptr(rng.Intn(200) + 1)
				ptr, ok := arena.Allocate(size)
				if !ok {
					continue
				}
				bytes := unsafe.Slice((*byte)(ptr), size)
				mark := byte(seed)
				for j := range bytes {
					bytes[j] = mark
				}
				for j := range bytes {
					if bytes[j] != mark {
						panic("arena handed out overlapping blocks")
					}
				}
				arena.Release(ptr, size)
			}
		}(uint64(w + 1))
	}
	wg.Wait()
	assert.Zero(t, arena.AllocatedBytes())
}
