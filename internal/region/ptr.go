package region

import "unsafe"

// ptrOf returns the address of b's backing array. mmap always returns
// page-aligned (hence 128-byte-aligned) memory on every platform this
// package targets, but we compute the alignment slack explicitly
// rather than assume it, since nothing about Go's mmap wrapper
// documents that guarantee.
func ptrOf(b []byte) unsafe.Pointer {
	return unsafe.Pointer(&b[0])
}
