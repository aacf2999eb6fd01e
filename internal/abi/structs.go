// Package abi defines the binary, repr(C)-equivalent layout shared by
// every process attached to a region: GlobalHeader, ChannelEntry,
// Slot, and MessageMeta. Field order, sizes, and padding are
// load-bearing — this is the cross-process (and, via MessageMeta, the
// cross-language) ABI surface.
//
// Every field that participates in the hot-path atomic protocol
// (Slot.Sequence, ChannelEntry.Signal/Tail/Head, GlobalHeader.ChannelCount)
// is a plain fixed-width integer, never a sync/atomic wrapper type:
// wrapper types carry their own alignment directives that are free to
// differ from a strict repr(C) layout. Callers take the field's
// address with the & operator and hand it to sync/atomic directly,
// the same pattern used to publish AlephTX's cache-line-aligned
// seqlock messages over /dev/shm.
package abi

import "unsafe"

// Alignment is the byte alignment required of the region base
// pointer, each ChannelEntry, and each channel's band offset.
const Alignment = 128

// AlignUp128 rounds n up to the next multiple of Alignment.
func AlignUp128(n uint64) uint64 {
	return (n + Alignment - 1) &^ (Alignment - 1)
}

// GlobalHeader sits at offset 0 of the region. Its fixed fields take
// exactly 128 bytes (HeaderSize); the ChannelEntry table is embedded
// after them as its final field, so that the table itself starts
// 128-byte aligned.
type GlobalHeader struct {
	Magic         uint64
	Version       uint32
	MaxChannels   uint32
	ChannelCount  uint32 // mutated only while the allocator's placement mutex is held
	Reserved      uint32 // reserved for a future band free-list
	_             [104]byte
	Channels      [256]ChannelEntry
}

// HeaderSize is sizeof(GlobalHeader) minus the embedded channel
// table, i.e. the byte offset at which Channels[0] begins.
const HeaderSize = 128

// ChannelEntrySize is the stride between consecutive channel entries.
// 256 is required here because Tail and Head
// each need their own cache line in addition to the static fields, and
// 128 bytes isn't enough to isolate three producer/consumer-touched
// regions from one another.
const ChannelEntrySize = 256

// ChannelEntry describes one channel's placement and cursors.
// Layout: cache line 0 holds identity/placement fields and the
// signal word; Tail occupies cache line 1 alone; Head occupies cache
// line 2 alone. This keeps concurrent producer CAS traffic on Tail
// from invalidating cache lines consumers spin-read for Head, and
// vice versa.
type ChannelEntry struct {
	ChannelID  uint32
	Flags      uint32
	Capacity   uint64
	BandOffset uint64
	Signal     uint32
	_          [36]byte // pad cache line 0 to 64 bytes
	Tail       uint64
	_          [56]byte // pad cache line 1 to 64 bytes
	Head       uint64
	_          [120]byte // pad cache lines 2-3 to 64*2 bytes
}

// MessageMeta is the cross-language ABI surface: 40 bytes, field
// order and sizes fixed by the cross-language wire contract.
type MessageMeta struct {
	MessageID     uint64
	TimestampNs   uint64
	ChannelID     uint32
	MessageType   uint32
	SenderPID     uint32
	SenderRuntime uint16
	Flags         uint16
	PayloadLen    uint32
	_             [4]byte
}

// MsgInline is the fixed inline payload budget per slot.
const MsgInline = 1024

// Slot is one ring cell: a sequence token, metadata, and an inline
// payload, repr(C, align(64)).
type Slot struct {
	Sequence uint64
	Meta     MessageMeta
	Payload  [MsgInline]byte
	_        [16]byte // rounds sizeof(Slot) up to a multiple of 64
}

// SlotStride is sizeof(Slot); every channel's data band is an array
// of this stride.
const SlotStride = 1088

// RuntimeNative is the sender_runtime tag for this implementation.
const RuntimeNative = 1

// ChannelEntry.Flags bit meanings. Stable across processes since
// Flags is part of the region's binary layout.
const (
	// FlagRemoved marks a channel as logically removed. Its table slot
	// and data band are never reused (bump-only allocation has no
	// reclamation), so removal just hides the channel from lookups.
	FlagRemoved uint32 = 1 << 0
)

// Compile-time layout assertions. A failing assertion here means the
// Go compiler chose padding this package didn't account for — fix the
// struct, never the constant.
var (
	_ [40]byte   = [unsafe.Sizeof(MessageMeta{})]byte{}
	_ [1088]byte = [unsafe.Sizeof(Slot{})]byte{}
	_ [256]byte  = [unsafe.Sizeof(ChannelEntry{})]byte{}
)

func init() {
	if unsafe.Sizeof(GlobalHeader{}) != HeaderSize+256*ChannelEntrySize {
		panic("abi: GlobalHeader size does not match HeaderSize + channel table")
	}
	if SlotStride%8 != 0 {
		panic("abi: SlotStride must be a multiple of 8")
	}
	if SlotStride%64 != 0 {
		panic("abi: SlotStride must be a multiple of 64 (align(64) on Slot)")
	}
}
