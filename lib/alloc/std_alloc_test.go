package alloc

import (
	"reflect"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireZeroed(tt *testing.T, ptr unsafe.Pointer, size uintptr) {
	tt.Helper()
	bytes := unsafe.Slice((*byte)(ptr), size)
	for i := range bytes {
		if bytes[i] != 0 {
			tt.Fatalf("byte %d not zeroed", i)
		}
	}
}

func TestStdAllocator_RawRoundTrip(t *testing.T) {
	a := Std()
	require.False(t, a.Unmanaged())

	ptr, ok := a.Allocate(64)
	require.True(t, ok)
	require.NotNil(t, ptr)
	requireZeroed(t, ptr, 64)

	bytes := unsafe.Slice((*byte)(ptr), 64)
	bytes[0], bytes[63] = 0xA5, 0x5A
	a.Release(ptr, 64)

	_, ok = a.Allocate(0)
	require.False(t, ok)
}

func TestStdAllocator_Reallocate(t *testing.T) {
	a := Std()

	ptr, ok := a.Allocate(16)
	require.True(t, ok)
	bytes := unsafe.Slice((*byte)(ptr), 16)
	for i := range bytes {
		bytes[i] = byte(i + 1)
	}

	grown, ok := a.Reallocate(ptr, 16, 64)
	require.True(t, ok)
	require.NotNil(t, grown)
	grownBytes := unsafe.Slice((*byte)(grown), 64)
	for i := 0; i < 16; i++ {
		assert.Equal(t, byte(i+1), grownBytes[i])
	}
	for i := 16; i < 64; i++ {
		assert.Zero(t, grownBytes[i])
	}
	a.Release(grown, 64)

	// nil pointer degenerates to a fresh allocation.
	fresh, ok := a.Reallocate(nil, 0, 32)
	require.True(t, ok)
	a.Release(fresh, 32)

	// Memory the allocator never handed out cannot be resized.
	var foreign int64
	_, ok = a.Reallocate(unsafe.Pointer(&foreign), 8, 16)
	require.False(t, ok)
}

func TestStdAllocator_TypedAllocate(t *testing.T) {
	type payload struct {
		seq  int64
		name string
		tags []string
	}
	a := Std()

	obj, ok := New[payload](a)
	require.True(t, ok)
	require.NotNil(t, obj)
	assert.Zero(t, obj.seq)
	assert.Empty(t, obj.name)
	assert.Nil(t, obj.tags)

	obj.seq, obj.name, obj.tags = 7, "typed", []string{"a", "b"}
	assert.Equal(t, int64(7), obj.seq)
	Free(a, obj)

	_, ok = a.AllocateTyped(nil)
	require.False(t, ok)
}

func TestSliceHelpers(t *testing.T) {
	a := Std()

	s, ok := MakeSlice[int64](a, 4)
	require.True(t, ok)
	require.Len(t, s, 4)
	for i := range s {
		require.Zero(t, s[i])
		s[i] = int64(i + 1)
	}

	s, ok = ResizeSlice(a, s, 8)
	require.True(t, ok)
	require.Len(t, s, 8)
	for i := 0; i < 4; i++ {
		assert.Equal(t, int64(i+1), s[i])
	}
	for i := 4; i < 8; i++ {
		assert.Zero(t, s[i])
	}

	s, ok = ResizeSlice(a, s, 2)
	require.True(t, ok)
	require.Len(t, s, 2)
	assert.Equal(t, int64(1), s[0])
	assert.Equal(t, int64(2), s[1])

	FreeSlice(a, s)

	empty, ok := MakeSlice[int64](a, 0)
	require.True(t, ok)
	require.Nil(t, empty)

	gone, ok := ResizeSlice(a, empty, 0)
	require.True(t, ok)
	require.Nil(t, gone)

	require.Panics(t, func() { _, _ = MakeSlice[int64](a, -1) })
}

func TestTypeHasGoPointers(t *testing.T) {
	type flat struct {
		A int64
		B float64
		C [4]byte
	}
	type nested struct {
		Flat flat
		Tag  string
	}
	testcases := []struct {
		name string
		typ  reflect.Type
		want bool
	}{
		{"int", reflect.TypeOf(int(0)), false},
		{"float64", reflect.TypeOf(float64(0)), false},
		{"string", reflect.TypeOf(""), true},
		{"pointer", reflect.TypeOf((*int)(nil)), true},
		{"slice", reflect.TypeOf([]int{}), true},
		{"map", reflect.TypeOf(map[int]int{}), true},
		{"chan", reflect.TypeOf(make(chan int)), true},
		{"func", reflect.TypeOf(func() {}), true},
		{"flat struct", reflect.TypeOf(flat{}), false},
		{"nested with string", reflect.TypeOf(nested{}), true},
		{"array of strings", reflect.TypeOf([4]string{}), true},
		{"empty array of strings", reflect.TypeOf([0]string{}), false},
		{"array of ints", reflect.TypeOf([8]int{}), false},
		{"nil type", nil, false},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			assert.Equal(tt, tc.want, TypeHasGoPointers(tc.typ))
		})
	}
}
