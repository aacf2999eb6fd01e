// Package allocator owns the region's GlobalHeader and channel
// table: creating or validating the header, bump-placing each new
// channel's data band, and handing back ring.View handles bound to
// live channels. Placement never reclaims a removed channel's band —
// matching the region's fixed, ever-growing layout, the table slot and
// band a removed channel held stay permanently spent.
package allocator

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/neerajchowdary889/DMXP-MPMC/internal/abi"
	"github.com/neerajchowdary889/DMXP-MPMC/internal/constants"
	"github.com/neerajchowdary889/DMXP-MPMC/internal/region"
	"github.com/neerajchowdary889/DMXP-MPMC/internal/ring"
)

// claimingChannelID marks a table slot as reserved mid-placement: not
// free, but not yet a valid, lookup-able channel id either.
const claimingChannelID uint32 = 0xFFFFFFFE

// Channel is a live, bound handle to one channel's entry and ring.
type Channel struct {
	ID       uint32
	Capacity uint64
	Entry    *abi.ChannelEntry
	Ring     *ring.View
}

// Allocator manages the channel table of a single mapped region.
type Allocator struct {
	h      *region.Handle
	header *abi.GlobalHeader

	mu       sync.Mutex // serializes placement within this process
	cacheMu  sync.RWMutex
	channels map[uint32]*Channel
}

func headerOf(h *region.Handle) *abi.GlobalHeader {
	b := h.Bytes()
	return (*abi.GlobalHeader)(unsafe.Pointer(&b[0]))
}

// New initializes a freshly created region's header and channel
// table. Callers must only call this once, immediately after
// region.Create, before any other process attaches.
func New(h *region.Handle) (*Allocator, error) {
	want := uint64(abi.HeaderSize) + uint64(len(abi.GlobalHeader{}.Channels))*abi.ChannelEntrySize
	if h.Size() < want {
		return nil, fmt.Errorf("allocator: region too small for channel table: have %d, want >= %d: %w", h.Size(), want, ErrInvalidData)
	}

	header := headerOf(h)
	header.Magic = constants.Magic
	header.Version = constants.LayoutVersion
	header.MaxChannels = constants.MaxChannels
	header.ChannelCount = 0
	for i := range header.Channels {
		header.Channels[i].ChannelID = constants.FreeChannelID
	}

	return &Allocator{h: h, header: header, channels: make(map[uint32]*Channel)}, nil
}

// Attach validates an existing region's header and binds an Allocator
// to it without modifying anything.
func Attach(h *region.Handle) (*Allocator, error) {
	want := uint64(abi.HeaderSize) + uint64(len(abi.GlobalHeader{}.Channels))*abi.ChannelEntrySize
	if h.Size() < want {
		return nil, fmt.Errorf("allocator: region too small for channel table: %w", ErrInvalidData)
	}

	header := headerOf(h)
	if header.Magic != constants.Magic {
		return nil, fmt.Errorf("allocator: bad magic 0x%x: %w", header.Magic, ErrInvalidData)
	}
	if header.Version != constants.LayoutVersion {
		return nil, fmt.Errorf("allocator: unsupported layout version %d: %w", header.Version, ErrInvalidData)
	}

	return &Allocator{h: h, header: header, channels: make(map[uint32]*Channel)}, nil
}

// bandTableEnd is the byte offset immediately following the fixed
// GlobalHeader + channel table region, where the first channel's data
// band may begin.
func (a *Allocator) bandTableEnd() uint64 {
	return abi.AlignUp128(uint64(abi.HeaderSize) + uint64(len(a.header.Channels))*abi.ChannelEntrySize)
}

// nextBandOffset scans the table for the current bump high-water
// mark: the end of the highest-placed band among channels that have
// ever held a real id (including removed ones, since their bands are
// never reclaimed), rounded up to abi.Alignment.
func (a *Allocator) nextBandOffset() uint64 {
	offset := a.bandTableEnd()
	for i := range a.header.Channels {
		e := &a.header.Channels[i]
		id := atomic.LoadUint32(&e.ChannelID)
		if id == constants.FreeChannelID || id == claimingChannelID {
			continue
		}
		end := e.BandOffset + e.Capacity*abi.SlotStride
		if end > offset {
			offset = end
		}
	}
	return abi.AlignUp128(offset)
}

// CreateChannel places and initializes a new channel with the given
// power-of-two capacity, returning a bound handle to it.
func (a *Allocator) CreateChannel(capacity uint64) (*Channel, error) {
	if capacity == 0 || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("allocator: capacity %d is not a power of two: %w", capacity, ErrInvalidInput)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	idx := -1
	for i := range a.header.Channels {
		e := &a.header.Channels[i]
		if atomic.CompareAndSwapUint32(&e.ChannelID, constants.FreeChannelID, claimingChannelID) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("allocator: all %d channel slots in use: %w", len(a.header.Channels), ErrOutOfMemory)
	}

	entry := &a.header.Channels[idx]
	bandOffset := a.nextBandOffset()
	bandSize := capacity * abi.SlotStride
	if bandOffset+bandSize > a.h.Size() {
		atomic.StoreUint32(&entry.ChannelID, constants.FreeChannelID)
		return nil, fmt.Errorf("allocator: region has no room for a %d-slot band: %w", capacity, ErrOutOfMemory)
	}

	entry.Capacity = capacity
	entry.BandOffset = bandOffset
	entry.Flags = 0
	atomic.StoreUint64(&entry.Tail, 0)
	atomic.StoreUint64(&entry.Head, 0)
	atomic.StoreUint32(&entry.Signal, 0)

	band := a.h.Bytes()[bandOffset : bandOffset+bandSize]
	v, err := ring.Open(entry, band, true)
	if err != nil {
		atomic.StoreUint32(&entry.ChannelID, constants.FreeChannelID)
		return nil, fmt.Errorf("allocator: %w", err)
	}

	// Publish last: ChannelID moving from claimingChannelID to idx is
	// what makes the channel visible to GetChannel/GetChannels in any
	// process, including this one.
	atomic.StoreUint32(&entry.ChannelID, uint32(idx))
	atomic.AddUint32(&a.header.ChannelCount, 1)

	ch := &Channel{ID: uint32(idx), Capacity: capacity, Entry: entry, Ring: v}
	a.cacheMu.Lock()
	a.channels[ch.ID] = ch
	a.cacheMu.Unlock()
	return ch, nil
}

// GetChannel returns a bound handle to a live channel by id.
func (a *Allocator) GetChannel(id uint32) (*Channel, error) {
	if id >= uint32(len(a.header.Channels)) {
		return nil, fmt.Errorf("allocator: channel id %d out of range: %w", id, ErrNotFound)
	}

	a.cacheMu.RLock()
	if ch, ok := a.channels[id]; ok {
		a.cacheMu.RUnlock()
		return ch, nil
	}
	a.cacheMu.RUnlock()

	entry := &a.header.Channels[id]
	if atomic.LoadUint32(&entry.ChannelID) != id {
		return nil, fmt.Errorf("allocator: channel %d: %w", id, ErrNotFound)
	}
	if entry.Flags&abi.FlagRemoved != 0 {
		return nil, fmt.Errorf("allocator: channel %d was removed: %w", id, ErrNotFound)
	}

	bandSize := entry.Capacity * abi.SlotStride
	band := a.h.Bytes()[entry.BandOffset : entry.BandOffset+bandSize]
	v, err := ring.Open(entry, band, false)
	if err != nil {
		return nil, fmt.Errorf("allocator: channel %d: %w", id, err)
	}

	ch := &Channel{ID: id, Capacity: entry.Capacity, Entry: entry, Ring: v}
	a.cacheMu.Lock()
	a.channels[id] = ch
	a.cacheMu.Unlock()
	return ch, nil
}

// GetChannels returns every currently live (non-removed) channel.
func (a *Allocator) GetChannels() []*Channel {
	var out []*Channel
	for i := range a.header.Channels {
		e := &a.header.Channels[i]
		id := atomic.LoadUint32(&e.ChannelID)
		if id != uint32(i) || e.Flags&abi.FlagRemoved != 0 {
			continue
		}
		ch, err := a.GetChannel(id)
		if err == nil {
			out = append(out, ch)
		}
	}
	return out
}

// ChannelCount returns the number of channels ever created in this
// region, including removed ones (removal doesn't free the slot).
func (a *Allocator) ChannelCount() uint32 {
	return atomic.LoadUint32(&a.header.ChannelCount)
}

// RemoveChannel marks a channel removed. Its table slot and data band
// are not reused, and RemoveChannel does not wake any consumer
// currently blocked waiting on the channel; callers that need that
// must notify out of band.
func (a *Allocator) RemoveChannel(id uint32) error {
	if id >= uint32(len(a.header.Channels)) {
		return fmt.Errorf("allocator: channel id %d out of range: %w", id, ErrNotFound)
	}
	entry := &a.header.Channels[id]
	if atomic.LoadUint32(&entry.ChannelID) != id {
		return fmt.Errorf("allocator: channel %d: %w", id, ErrNotFound)
	}

	a.mu.Lock()
	entry.Flags |= abi.FlagRemoved
	a.mu.Unlock()

	a.cacheMu.Lock()
	delete(a.channels, id)
	a.cacheMu.Unlock()
	return nil
}
