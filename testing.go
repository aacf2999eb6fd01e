package dmxp

import (
	"github.com/neerajchowdary889/DMXP-MPMC/internal/allocator"
	"github.com/neerajchowdary889/DMXP-MPMC/internal/region"
)

// NewAnonymousBus creates a Bus over plain process memory instead of
// a /dev/shm-backed region. It behaves identically to a real Bus for
// anything within this process, but is never visible to any other
// process. Useful for unit tests that want real ring semantics
// without touching the filesystem.
func NewAnonymousBus(regionSize uint64) (*Bus, error) {
	if regionSize == 0 {
		regionSize = DefaultRegionSize
	}
	h := region.NewAnonymous(regionSize)
	a, err := allocator.New(h)
	if err != nil {
		return nil, WrapError("NewAnonymousBus", err)
	}
	return newBus("", h, a, Options{}), nil
}
