//go:build linux

package alloc

import (
	"golang.org/x/sys/unix"
)

func mmapChunk(size uintptr) ([]byte, func() error, bool) {
	buf, err := unix.Mmap(
		-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE,
	)
	if err != nil {
		return nil, nil, false
	}
	return buf, func() error {
		return unix.Munmap(buf)
	}, true
}
