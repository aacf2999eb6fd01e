package dmxp

import "github.com/neerajchowdary889/DMXP-MPMC/internal/ring"

// Message is a received message, copied out of shared memory. Payload
// is backed by a pooled scratch buffer; call Release when done with
// it to let Receive reuse the buffer for the next message.
type Message struct {
	ChannelID   uint32
	MessageID   uint64
	TimestampNs uint64
	SenderPID   uint32
	MessageType uint32
	Payload     []byte

	scratch []byte
}

// Release returns Payload's backing buffer to the internal pool.
// Payload must not be used after calling Release.
func (m *Message) Release() {
	if m.scratch != nil {
		ring.PutScratch(m.scratch)
		m.scratch = nil
		m.Payload = nil
	}
}
