// Package dmxp is a cross-process, lock-free, multi-producer
// multi-consumer message bus over a single shared-memory region: up
// to 256 independently sized channels, each a bounded Vyukov-style
// ring buffer, attachable from any process that knows the region's
// name.
package dmxp

import (
	"sync"

	"github.com/neerajchowdary889/DMXP-MPMC/internal/allocator"
	"github.com/neerajchowdary889/DMXP-MPMC/internal/interfaces"
	"github.com/neerajchowdary889/DMXP-MPMC/internal/region"
)

// Bus is a handle onto one shared-memory region. Multiple Bus values
// in the same or different processes can attach to the same named
// region concurrently; each owns its own local caches and metrics,
// but all observe the same channel table and ring buffers.
type Bus struct {
	Name string

	region *region.Handle
	alloc  *allocator.Allocator
	logger interfaces.Logger
	Metrics *Metrics

	mu            sync.Mutex
	liveProducers map[uint32]int32 // channel id -> open Producer handles in this process
	liveConsumers map[uint32]int32 // channel id -> open Consumer handles in this process
}

// Options configures Create and Attach.
type Options struct {
	// RegionSize is the total size in bytes to allocate for a newly
	// created region, including the header, channel table, and every
	// channel's data band. Ignored by Attach. Zero means
	// DefaultRegionSize.
	RegionSize uint64
	Logger     interfaces.Logger
}

// DefaultRegionSize is used when Options.RegionSize is 0.
const DefaultRegionSize = 64 << 20

func (o Options) withDefaults() Options {
	if o.RegionSize == 0 {
		o.RegionSize = DefaultRegionSize
	}
	return o
}

// Create creates a brand-new named region and initializes its
// channel table. It fails if a region of that name already exists.
func Create(name string, opts Options) (*Bus, error) {
	opts = opts.withDefaults()

	h, err := region.Create(name, opts.RegionSize)
	if err != nil {
		return nil, WrapError("Create", err)
	}
	a, err := allocator.New(h)
	if err != nil {
		h.Close()
		region.Remove(name)
		return nil, WrapError("Create", err)
	}
	return newBus(name, h, a, opts), nil
}

// Attach attaches to an existing named region.
func Attach(name string, opts Options) (*Bus, error) {
	h, err := region.Attach(name, 0)
	if err != nil {
		return nil, WrapError("Attach", err)
	}
	a, err := allocator.Attach(h)
	if err != nil {
		h.Close()
		return nil, WrapError("Attach", err)
	}
	return newBus(name, h, a, opts), nil
}

func newBus(name string, h *region.Handle, a *allocator.Allocator, opts Options) *Bus {
	return &Bus{
		Name:          name,
		region:        h,
		alloc:         a,
		logger:        opts.Logger,
		Metrics:       &Metrics{},
		liveProducers: make(map[uint32]int32),
		liveConsumers: make(map[uint32]int32),
	}
}

// CreateChannel places a new channel with the given power-of-two
// capacity and returns its id.
func (b *Bus) CreateChannel(capacity uint64) (uint32, error) {
	ch, err := b.alloc.CreateChannel(capacity)
	if err != nil {
		return 0, WrapError("CreateChannel", err)
	}
	return ch.ID, nil
}

// RemoveChannel marks channelID removed. It does not wake any
// consumer currently blocked on it.
func (b *Bus) RemoveChannel(channelID uint32) error {
	if err := b.alloc.RemoveChannel(channelID); err != nil {
		return WrapError("RemoveChannel", err)
	}
	return nil
}

// ChannelCount returns the number of channels ever created in this
// region (removed channels still count; their slots aren't reused).
func (b *Bus) ChannelCount() uint32 {
	return b.alloc.ChannelCount()
}

// Channels returns the ids of every currently live channel.
func (b *Bus) Channels() []uint32 {
	chans := b.alloc.GetChannels()
	ids := make([]uint32, len(chans))
	for i, c := range chans {
		ids[i] = c.ID
	}
	return ids
}

// NewProducer returns a Producer bound to channelID.
func (b *Bus) NewProducer(channelID uint32) (*Producer, error) {
	ch, err := b.alloc.GetChannel(channelID)
	if err != nil {
		return nil, WrapError("NewProducer", err)
	}
	b.markProducerOpen(channelID)
	return &Producer{bus: b, channel: ch}, nil
}

// NewConsumer returns a Consumer bound to channelID.
func (b *Bus) NewConsumer(channelID uint32) (*Consumer, error) {
	ch, err := b.alloc.GetChannel(channelID)
	if err != nil {
		return nil, WrapError("NewConsumer", err)
	}
	b.markConsumerOpen(channelID)
	return &Consumer{bus: b, channel: ch}, nil
}

func (b *Bus) markProducerOpen(channelID uint32) {
	b.mu.Lock()
	b.liveProducers[channelID]++
	b.mu.Unlock()
}

func (b *Bus) markProducerClosed(channelID uint32) {
	b.mu.Lock()
	if b.liveProducers[channelID] > 0 {
		b.liveProducers[channelID]--
	}
	b.mu.Unlock()
}

func (b *Bus) hasLocalProducer(channelID uint32) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.liveProducers[channelID] > 0
}

func (b *Bus) markConsumerOpen(channelID uint32) {
	b.mu.Lock()
	b.liveConsumers[channelID]++
	b.mu.Unlock()
}

func (b *Bus) markConsumerClosed(channelID uint32) {
	b.mu.Lock()
	if b.liveConsumers[channelID] > 0 {
		b.liveConsumers[channelID]--
	}
	b.mu.Unlock()
}

func (b *Bus) hasLocalConsumer(channelID uint32) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.liveConsumers[channelID] > 0
}

// Close unmaps the region. It does not remove the /dev/shm file or
// affect other processes attached to it; use Remove for that.
func (b *Bus) Close() error {
	if err := b.region.Close(); err != nil {
		return WrapError("Close", err)
	}
	return nil
}

// Remove unlinks a region's backing file by name. All Bus handles
// attached to it should be closed first.
func Remove(name string) error {
	if err := region.Remove(name); err != nil {
		return WrapError("Remove", err)
	}
	return nil
}
