package ring

import (
	"sync"

	"github.com/neerajchowdary889/DMXP-MPMC/internal/abi"
)

// scratchPool hands out reusable abi.MsgInline-sized buffers for
// Dequeue's copy-out, so a tight receive loop doesn't allocate per
// message. Sized for the single inline payload budget this ring ever
// deals in, unlike a bucketed multi-size pool.
var scratchPool = sync.Pool{
	New: func() any {
		b := make([]byte, abi.MsgInline)
		return &b
	},
}

// GetScratch returns a pooled buffer of at least abi.MsgInline bytes.
// Callers must return it with PutScratch when done.
func GetScratch() []byte {
	p := scratchPool.Get().(*[]byte)
	return (*p)[:abi.MsgInline]
}

// PutScratch returns a buffer obtained from GetScratch to the pool.
func PutScratch(buf []byte) {
	if cap(buf) < abi.MsgInline {
		return
	}
	buf = buf[:abi.MsgInline]
	scratchPool.Put(&buf)
}
