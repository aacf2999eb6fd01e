package dmxp

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/neerajchowdary889/DMXP-MPMC/internal/abi"
	"github.com/neerajchowdary889/DMXP-MPMC/internal/allocator"
	"github.com/neerajchowdary889/DMXP-MPMC/internal/constants"
)

var messageIDSeq atomic.Uint64

// nextMessageID returns a process-wide unique message id. Uniqueness
// only needs to hold within a single sender's stream of messages, but
// a process-wide counter is simpler and cheap enough to just always
// use.
func nextMessageID() uint64 {
	return messageIDSeq.Add(1)
}

// Producer sends messages into one channel.
type Producer struct {
	bus     *Bus
	channel *allocator.Channel
	closed  bool

	mu           sync.Mutex
	lastHead     uint64
	lastActivity time.Time
	sawActivity  bool
}

// Send enqueues payload as a new message. It returns a *Error with
// code ErrCodeChannelFull if the ring has no free slot and the
// channel's consumer still looks alive, or ErrCodeBrokenPipe if the
// consumer looks dead.
func (p *Producer) Send(payload []byte) error {
	return p.sendOne(payload)
}

// SendBatch reserves n = len(payloads) consecutive ring slots in one
// atomic step — no interleaving producer can claim a slot in that
// range — and publishes all of them with a single wake signal. It
// either enqueues every payload or none; a partial batch never lands.
// Returns the number enqueued (0 or len(payloads)) and, on failure,
// ErrCodeInvalidInput if any payload exceeds the inline budget,
// ErrCodeChannelFull if the ring lacks n free slots in a row, or
// ErrCodeBrokenPipe if the consumer looks dead.
func (p *Producer) SendBatch(payloads [][]byte) (int, error) {
	if p.closed {
		return 0, NewChannelError("SendBatch", p.channel.ID, ErrCodeClosed, "producer closed")
	}
	if len(payloads) == 0 {
		return 0, nil
	}

	metas := make([]abi.MessageMeta, len(payloads))
	var totalBytes uint32
	for i, payload := range payloads {
		if len(payload) > abi.MsgInline {
			return 0, NewChannelError("SendBatch", p.channel.ID, ErrCodeInvalidInput,
				fmt.Sprintf("payload %d bytes exceeds inline budget %d", len(payload), abi.MsgInline))
		}
		totalBytes += uint32(len(payload))
		metas[i] = abi.MessageMeta{
			MessageID:     nextMessageID(),
			TimestampNs:   uint64(time.Now().UnixNano()),
			ChannelID:     p.channel.ID,
			SenderPID:     uint32(os.Getpid()),
			SenderRuntime: abi.RuntimeNative,
		}
	}

	start := time.Now()
	ok := p.channel.Ring.EnqueueBatch(metas, payloads)
	latency := uint64(time.Since(start).Nanoseconds())

	p.bus.Metrics.ObserveSend(p.channel.ID, totalBytes, latency, ok)
	if !ok {
		p.bus.Metrics.ObserveFull(p.channel.ID)
		if p.bus.logger != nil {
			p.bus.logger.Debugf("channel %d has no %d consecutive free slots, dropping batch", p.channel.ID, len(payloads))
		}
		if !p.IsConsumerAlive() {
			p.bus.Metrics.ObserveBrokenPipe(p.channel.ID)
			return 0, NewChannelError("SendBatch", p.channel.ID, ErrCodeBrokenPipe, "consumer has terminated")
		}
		return 0, NewChannelError("SendBatch", p.channel.ID, ErrCodeChannelFull, "ring buffer lacks enough consecutive free slots")
	}
	return len(payloads), nil
}

func (p *Producer) sendOne(payload []byte) error {
	if p.closed {
		return NewChannelError("Send", p.channel.ID, ErrCodeClosed, "producer closed")
	}
	if len(payload) > abi.MsgInline {
		return NewChannelError("Send", p.channel.ID, ErrCodeInvalidInput,
			fmt.Sprintf("payload %d bytes exceeds inline budget %d", len(payload), abi.MsgInline))
	}

	start := time.Now()
	meta := abi.MessageMeta{
		MessageID:     nextMessageID(),
		TimestampNs:   uint64(start.UnixNano()),
		ChannelID:     p.channel.ID,
		SenderPID:     uint32(os.Getpid()),
		SenderRuntime: abi.RuntimeNative,
	}

	ok := p.channel.Ring.Enqueue(meta, payload)
	latency := uint64(time.Since(start).Nanoseconds())

	p.bus.Metrics.ObserveSend(p.channel.ID, uint32(len(payload)), latency, ok)
	if !ok {
		p.bus.Metrics.ObserveFull(p.channel.ID)
		if p.bus.logger != nil {
			p.bus.logger.Debugf("channel %d full, dropping send", p.channel.ID)
		}
		if !p.IsConsumerAlive() {
			p.bus.Metrics.ObserveBrokenPipe(p.channel.ID)
			return NewChannelError("Send", p.channel.ID, ErrCodeBrokenPipe, "consumer has terminated")
		}
		return NewChannelError("Send", p.channel.ID, ErrCodeChannelFull, "ring buffer is full")
	}
	return nil
}

// IsConsumerAlive reports whether some consumer for this channel looks
// alive: either a Consumer handle is still open in this process, or a
// message has been dequeued from the channel within LivenessWindow.
// Mirrors Consumer.IsProducerAlive and carries the same caveat: it's a
// heuristic, not a guarantee.
func (p *Producer) IsConsumerAlive() bool {
	if p.bus.hasLocalConsumer(p.channel.ID) {
		return true
	}

	head := p.channel.Ring.HeadValue()

	p.mu.Lock()
	defer p.mu.Unlock()
	if head != p.lastHead {
		p.lastHead = head
		p.lastActivity = time.Now()
		p.sawActivity = true
	}
	if !p.sawActivity {
		return false
	}
	return time.Since(p.lastActivity) < constants.LivenessWindow
}

// Close marks the producer closed. Sends after Close return
// ErrCodeClosed; it does not affect other producers on the same
// channel.
func (p *Producer) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.bus.markProducerClosed(p.channel.ID)
	return nil
}
