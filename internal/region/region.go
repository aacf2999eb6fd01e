// Package region manages the POSIX shared-memory file that backs a
// bus: creating it, attaching to an existing one, and handing callers
// a 128-byte-aligned byte slice over the mapping. It knows nothing
// about what lives inside the region — that's internal/abi and
// internal/allocator's job.
package region

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/neerajchowdary889/DMXP-MPMC/internal/abi"
)

// shmDir is where region files live. Linux mounts /dev/shm as tmpfs;
// the package has no build constraint and uses this path on every
// platform it is built for.
const shmDir = "/dev/shm"

// NameFor returns the filesystem path backing the named region.
func NameFor(name string) string {
	return filepath.Join(shmDir, name)
}

// Handle is a mapped, 128-byte-aligned view onto a region file.
type Handle struct {
	file    *os.File
	raw     []byte // full mmap, as returned by unix.Mmap; needed to unmap
	aligned []byte // raw[slack:slack+size], 128-byte aligned
	owner   bool   // true if this process created the region (O_EXCL succeeded)
}

// Create makes a new region file whose usable size is size rounded up
// to a multiple of abi.Alignment (the file also carries internal
// alignment slack) and maps it. It fails with ErrAlreadyExists if a
// region of that name already exists.
func Create(name string, size uint64) (*Handle, error) {
	if size == 0 {
		return nil, fmt.Errorf("region: create %q: size must be > 0: %w", name, ErrInvalidInput)
	}
	size = abi.AlignUp128(size)

	path := NameFor(name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("region: create %q: %w", name, ErrAlreadyExists)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("region: create %q: %w", name, ErrPermissionDenied)
		}
		return nil, fmt.Errorf("region: create %q: open: %w", name, err)
	}

	mapSize := size + abi.Alignment - 1
	if err := f.Truncate(int64(mapSize)); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("region: create %q: truncate: %w", name, err)
	}

	h, err := mapHandle(f, mapSize, size)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	h.owner = true
	return h, nil
}

// Attach maps an existing region file. If expectedSize is nonzero, the
// mapped region's usable size must be at least expectedSize, else
// ErrInvalidData is returned. Passing 0 skips the check.
func Attach(name string, expectedSize uint64) (*Handle, error) {
	path := NameFor(name)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("region: attach %q: %w", name, ErrNotFound)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("region: attach %q: %w", name, ErrPermissionDenied)
		}
		return nil, fmt.Errorf("region: attach %q: open: %w", name, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("region: attach %q: stat: %w", name, err)
	}
	mapSize := uint64(info.Size())
	if mapSize < abi.Alignment {
		f.Close()
		return nil, fmt.Errorf("region: attach %q: file too small to be a region: %w", name, ErrInvalidData)
	}
	usable := mapSize - (abi.Alignment - 1)
	if expectedSize != 0 && usable < expectedSize {
		f.Close()
		return nil, fmt.Errorf("region: attach %q: file smaller than expected size %d: %w", name, expectedSize, ErrInvalidData)
	}

	h, err := mapHandle(f, mapSize, usable)
	if err != nil {
		f.Close()
		return nil, err
	}
	return h, nil
}

func mapHandle(f *os.File, mapSize, usableSize uint64) (*Handle, error) {
	raw, err := unix.Mmap(int(f.Fd()), 0, int(mapSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("region: mmap: %w", err)
	}

	base := uintptr(0)
	if len(raw) > 0 {
		base = uintptr(ptrOf(raw))
	}
	alignedBase := abi.AlignUp128(uint64(base))
	slack := alignedBase - uint64(base)

	return &Handle{
		file:    f,
		raw:     raw,
		aligned: raw[slack : slack+usableSize],
	}, nil
}

// Bytes returns the 128-byte-aligned mapped region.
func (h *Handle) Bytes() []byte {
	return h.aligned
}

// Size returns the usable (aligned) size of the mapping.
func (h *Handle) Size() uint64 {
	return uint64(len(h.aligned))
}

// Owner reports whether this handle created the region (as opposed to
// attaching to one another process created).
func (h *Handle) Owner() bool {
	return h.owner
}

// RawHandle returns the underlying file descriptor, e.g. for passing
// to another process via SCM_RIGHTS. Returns -1 for an in-memory
// handle created by NewAnonymous, which has no backing file.
func (h *Handle) RawHandle() uintptr {
	if h.file == nil {
		return ^uintptr(0)
	}
	return h.file.Fd()
}

// Close unmaps the region and closes the backing file. It does not
// remove the /dev/shm file; use Remove for that.
func (h *Handle) Close() error {
	if h.file == nil {
		return nil // in-memory handle: nothing to unmap or close
	}
	if err := unix.Munmap(h.raw); err != nil {
		h.file.Close()
		return fmt.Errorf("region: munmap: %w", err)
	}
	return h.file.Close()
}

// NewAnonymous returns a Handle backed by plain process memory rather
// than a mapped /dev/shm file, for unit tests that want a region
// without touching the filesystem. The memory is not shared with any
// other process.
func NewAnonymous(size uint64) *Handle {
	buf := make([]byte, size+abi.Alignment-1)
	base := uintptr(ptrOf(buf))
	alignedBase := abi.AlignUp128(uint64(base))
	slack := alignedBase - uint64(base)
	return &Handle{
		raw:     buf,
		aligned: buf[slack : slack+size],
		owner:   true,
	}
}

// Remove unlinks a region's backing file by name. Safe to call after
// all handles are closed; harmless if the file doesn't exist.
func Remove(name string) error {
	err := os.Remove(NameFor(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("region: remove %q: %w", name, err)
	}
	return nil
}
