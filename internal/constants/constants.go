// Package constants holds compile-time sizes, defaults, and timing
// budgets shared across the bus, ring, allocator, and region layers.
package constants

import (
	"time"

	"github.com/neerajchowdary889/DMXP-MPMC/internal/abi"
)

// Region format identity.
const (
	// Magic identifies and versions the region's binary layout.
	// "DMXP_MEM" read as a big-endian u64.
	Magic uint64 = 0x444D58505F4D454D

	// LayoutVersion bumps on any incompatible change to GlobalHeader,
	// ChannelEntry, Slot, or MessageMeta.
	LayoutVersion uint32 = 1

	// MaxChannels is the fixed number of channel table entries.
	MaxChannels uint32 = 256

	// FreeChannelID is the sentinel stored in ChannelEntry.ChannelID
	// when the entry does not back a live channel.
	FreeChannelID uint32 = 0xFFFFFFFF

	// DefaultRegionName is the conventional shared-memory name used
	// when callers don't supply one.
	DefaultRegionName = "dmxp_alloc"
)

// Alignment and MsgInline are re-exported from internal/abi so callers
// outside the ABI layer don't need to import it just for these.
const (
	Alignment = abi.Alignment
	MsgInline = abi.MsgInline
)

// Timing budgets.
const (
	// LivenessWindow is how recently a consumer must have received a
	// message for the producer to be considered alive absent an
	// explicit keep-alive flag. Hard-coded rather than exposed as a
	// tunable.
	LivenessWindow = 5 * time.Second

	// ReceiveTimeoutMinBackoff is the first sleep in ReceiveTimeout's
	// exponential backoff.
	ReceiveTimeoutMinBackoff = 50 * time.Microsecond

	// ReceiveTimeoutMaxBackoff caps the per-sleep backoff at 10ms.
	ReceiveTimeoutMaxBackoff = 10 * time.Millisecond

	// SpinRetries bounds how many times Enqueue/Dequeue spin-hint on
	// diff > 0 (another side mid-publish) before yielding the
	// scheduler via runtime.Gosched.
	SpinRetries = 64
)
