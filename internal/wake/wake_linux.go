//go:build linux

// Package wake provides the cross-process blocking primitive built on
// top of each channel's signal word: a futex-backed wait/wake pair so
// a blocked consumer sleeps in the kernel instead of spinning.
// x/sys/unix exposes the FUTEX_* operation constants but no typed
// Futex() wrapper, so the syscall is invoked with its raw number, the
// same way undocumented Linux primitives get wrapped elsewhere in
// this codebase.
package wake

import (
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// System call number for futex(2); x/sys/unix exposes the FUTEX_*
// operation constants but no Futex() wrapper, so it's invoked raw.
const __NR_futex = 202

const (
	futexWait = 0
	futexWake = 1
)

// Signal wraps a pointer to a channel's shared signal word
// (ChannelEntry.Signal). Producers Add to announce new data; consumers
// Wait to block until the word changes from the value they last
// observed.
type Signal struct {
	addr *uint32
}

// New wraps the signal word at addr. addr must point into the mapped
// region and must outlive the Signal.
func New(addr *uint32) *Signal {
	return &Signal{addr: addr}
}

// Add increments the signal word and wakes one waiter, returning the
// new value. Producers call this after publishing a message.
func (s *Signal) Add(delta uint32) uint32 {
	next := atomic.AddUint32(s.addr, delta)
	s.wake(1)
	return next
}

// Load returns the current value of the signal word.
func (s *Signal) Load() uint32 {
	return atomic.LoadUint32(s.addr)
}

// Wait blocks until the signal word no longer equals expected, or
// until timeout elapses (zero means wait forever). It returns early
// and without error if the word has already changed by the time Wait
// is called, matching futex's check-then-sleep contract.
func (s *Signal) Wait(expected uint32, timeout time.Duration) error {
	if atomic.LoadUint32(s.addr) != expected {
		return nil
	}

	var ts *unix.Timespec
	if timeout > 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}

	_, _, errno := syscall.Syscall6(
		__NR_futex,
		uintptr(unsafe.Pointer(s.addr)),
		futexWait,
		uintptr(expected),
		uintptr(unsafe.Pointer(ts)),
		0, 0,
	)
	switch errno {
	case 0, syscall.EAGAIN, syscall.EINTR, syscall.ETIMEDOUT:
		return nil
	default:
		return errno
	}
}

func (s *Signal) wake(n int32) {
	syscall.Syscall6(
		__NR_futex,
		uintptr(unsafe.Pointer(s.addr)),
		futexWake,
		uintptr(n),
		0, 0, 0,
	)
}
