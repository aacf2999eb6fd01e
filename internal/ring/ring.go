// Package ring implements the bounded Vyukov-style MPMC ring buffer
// that backs every channel's data band: a slot array with a
// sequence-number token per slot, so any number of producers and
// consumers can race on Enqueue/Dequeue without a lock, each slot
// acting as its own single-writer mailbox between one producer and
// one consumer at a time.
//
// A View never owns the memory it operates on — it's handed a slice
// into the mapped region (the same unsafe.Pointer-overlay approach
// AlephTX's seqlock.go uses to publish struct fields directly onto
// mmap'd bytes) plus the ChannelEntry whose Tail/Head/Signal cursors
// coordinate access to that slice.
package ring

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/neerajchowdary889/DMXP-MPMC/internal/abi"
	"github.com/neerajchowdary889/DMXP-MPMC/internal/constants"
	"github.com/neerajchowdary889/DMXP-MPMC/internal/wake"
)

// View is a bound, in-process handle onto one channel's ring.
type View struct {
	entry    *abi.ChannelEntry
	base     unsafe.Pointer // &band[0], i.e. the first Slot
	capacity uint64         // power of two
	mask     uint64
	signal   *wake.Signal
}

// Open binds a View to entry's data band. band must be exactly
// entry.Capacity*abi.SlotStride bytes, 64-byte aligned (the region
// allocator guarantees both). If fresh is true, every slot's sequence
// number is initialized — callers must only pass fresh=true once, from
// the process that just placed this channel, never on attach.
func Open(entry *abi.ChannelEntry, band []byte, fresh bool) (*View, error) {
	capacity := entry.Capacity
	if capacity == 0 || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("ring: capacity %d is not a power of two", capacity)
	}
	want := capacity * abi.SlotStride
	if uint64(len(band)) < want {
		return nil, fmt.Errorf("ring: band too small: have %d bytes, want %d", len(band), want)
	}

	v := &View{
		entry:    entry,
		base:     unsafe.Pointer(&band[0]),
		capacity: capacity,
		mask:     capacity - 1,
		signal:   wake.New(&entry.Signal),
	}

	if fresh {
		for i := uint64(0); i < capacity; i++ {
			atomic.StoreUint64(&v.slotAt(i).Sequence, i)
		}
		atomic.StoreUint64(&entry.Tail, 0)
		atomic.StoreUint64(&entry.Head, 0)
	}
	return v, nil
}

func (v *View) slotAt(i uint64) *abi.Slot {
	return (*abi.Slot)(unsafe.Pointer(uintptr(v.base) + uintptr(i)*abi.SlotStride))
}

// Capacity returns the ring's fixed slot count.
func (v *View) Capacity() uint64 {
	return v.capacity
}

// Len estimates the number of occupied slots. It is inherently racy
// under concurrent producers/consumers and is meant for metrics and
// diagnostics, not correctness.
func (v *View) Len() uint64 {
	tail := atomic.LoadUint64(&v.entry.Tail)
	head := atomic.LoadUint64(&v.entry.Head)
	if tail < head {
		return 0
	}
	return tail - head
}

// TailValue returns the current producer-side cursor, for consumers
// that want to detect producer activity without dequeuing (e.g. a
// liveness heuristic).
func (v *View) TailValue() uint64 {
	return atomic.LoadUint64(&v.entry.Tail)
}

// HeadValue returns the current consumer-side cursor, for producers
// that want to detect consumer activity without enqueuing (e.g. a
// liveness heuristic).
func (v *View) HeadValue() uint64 {
	return atomic.LoadUint64(&v.entry.Head)
}

// Enqueue reserves the next slot, copies meta and payload into it, and
// publishes it to consumers. It returns false if the ring is full.
// payload must be at most abi.MsgInline bytes; callers are expected to
// have validated this already (the root package does, checking
// len(payload) against abi.MsgInline before calling in).
func (v *View) Enqueue(meta abi.MessageMeta, payload []byte) bool {
	var slot *abi.Slot
	var tail uint64
	spins := 0

	for {
		tail = atomic.LoadUint64(&v.entry.Tail)
		slot = v.slotAt(tail & v.mask)
		seq := atomic.LoadUint64(&slot.Sequence)
		diff := int64(seq) - int64(tail)

		switch {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&v.entry.Tail, tail, tail+1) {
				goto reserved
			}
		case diff < 0:
			return false
		default:
			spins++
			if spins > constants.SpinRetries {
				runtime.Gosched()
				spins = 0
			}
		}
	}

reserved:
	meta.PayloadLen = uint32(len(payload))
	slot.Meta = meta
	copy(slot.Payload[:], payload)

	atomic.StoreUint64(&slot.Sequence, tail+1)
	v.signal.Add(1)
	return true
}

// EnqueueBatch reserves len(metas) consecutive sequence numbers with a
// single CAS on the tail cursor, so no interleaving producer can claim
// a slot anywhere in that range, then publishes each slot and signals
// consumers once. len(metas) must equal len(payloads). It returns
// false without reserving anything if the ring doesn't currently have
// that many free slots in a row (including when len(metas) exceeds the
// ring's capacity, which can never be satisfied).
func (v *View) EnqueueBatch(metas []abi.MessageMeta, payloads [][]byte) bool {
	n := uint64(len(metas))
	if n == 0 {
		return true
	}
	if n > v.capacity {
		return false
	}

	spins := 0
	var tail uint64
	for {
		tail = atomic.LoadUint64(&v.entry.Tail)

		ready := true
		for i := uint64(0); i < n; i++ {
			seq := atomic.LoadUint64(&v.slotAt((tail + i) & v.mask).Sequence)
			diff := int64(seq) - int64(tail+i)
			if diff < 0 {
				return false
			}
			if diff != 0 {
				ready = false
				break
			}
		}
		if !ready {
			spins++
			if spins > constants.SpinRetries {
				runtime.Gosched()
				spins = 0
			}
			continue
		}
		if atomic.CompareAndSwapUint64(&v.entry.Tail, tail, tail+n) {
			break
		}
	}

	for i := uint64(0); i < n; i++ {
		slot := v.slotAt((tail + i) & v.mask)
		meta := metas[i]
		meta.PayloadLen = uint32(len(payloads[i]))
		slot.Meta = meta
		copy(slot.Payload[:], payloads[i])
		atomic.StoreUint64(&slot.Sequence, tail+i+1)
	}
	v.signal.Add(1)
	return true
}

// Dequeue claims the next ready slot and copies its contents out,
// returning false if the ring is empty. dst receives the payload
// bytes; it is re-sliced to the message's length and must have
// capacity >= abi.MsgInline.
func (v *View) Dequeue(dst []byte) (abi.MessageMeta, []byte, bool) {
	var slot *abi.Slot
	var head uint64
	spins := 0

	for {
		head = atomic.LoadUint64(&v.entry.Head)
		slot = v.slotAt(head & v.mask)
		seq := atomic.LoadUint64(&slot.Sequence)
		diff := int64(seq) - int64(head+1)

		switch {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&v.entry.Head, head, head+1) {
				goto claimed
			}
		case diff < 0:
			return abi.MessageMeta{}, nil, false
		default:
			spins++
			if spins > constants.SpinRetries {
				runtime.Gosched()
				spins = 0
			}
		}
	}

claimed:
	meta := slot.Meta
	n := meta.PayloadLen
	if uint64(n) > uint64(len(dst)) {
		n = uint32(len(dst))
	}
	out := dst[:n]
	copy(out, slot.Payload[:n])

	atomic.StoreUint64(&slot.Sequence, head+v.capacity)
	return meta, out, true
}

// SignalValue returns the current value of the channel's wake word,
// for consumers computing what to Wait on next.
func (v *View) SignalValue() uint32 {
	return v.signal.Load()
}

// Wait blocks the caller until the channel's signal word changes from
// last, or timeout elapses (0 means wait forever).
func (v *View) Wait(last uint32, timeout time.Duration) error {
	return v.signal.Wait(last, timeout)
}
