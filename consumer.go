package dmxp

import (
	"context"
	"sync"
	"time"

	"github.com/neerajchowdary889/DMXP-MPMC/internal/allocator"
	"github.com/neerajchowdary889/DMXP-MPMC/internal/constants"
	"github.com/neerajchowdary889/DMXP-MPMC/internal/ring"
)

// Consumer receives messages from one channel.
type Consumer struct {
	bus     *Bus
	channel *allocator.Channel
	closed  bool

	mu           sync.Mutex
	lastTail     uint64
	lastActivity time.Time
	sawActivity  bool
}

// Receive returns the next message without blocking. A nil Message
// with a nil error means the channel is currently empty but its
// producer still looks alive. A nil Message with a non-nil error of
// code ErrCodeBrokenPipe means the channel is empty and its producer
// looks dead, per IsProducerAlive.
func (c *Consumer) Receive() (*Message, error) {
	start := time.Now()
	dst := ring.GetScratch()
	meta, payload, ok := c.channel.Ring.Dequeue(dst)
	latency := uint64(time.Since(start).Nanoseconds())

	if !ok {
		ring.PutScratch(dst)
		c.bus.Metrics.ObserveReceive(c.channel.ID, 0, latency, false)
		c.bus.Metrics.ObserveEmpty(c.channel.ID)
		if !c.IsProducerAlive() {
			c.bus.Metrics.ObserveBrokenPipe(c.channel.ID)
			return nil, NewChannelError("Receive", c.channel.ID, ErrCodeBrokenPipe, "producer has terminated")
		}
		return nil, nil
	}

	c.noteActivity()
	c.bus.Metrics.ObserveReceive(c.channel.ID, uint32(len(payload)), latency, true)
	return &Message{
		ChannelID:   meta.ChannelID,
		MessageID:   meta.MessageID,
		TimestampNs: meta.TimestampNs,
		SenderPID:   meta.SenderPID,
		MessageType: meta.MessageType,
		Payload:     payload,
		scratch:     dst,
	}, nil
}

// ReceiveTimeout blocks until a message arrives or timeout elapses,
// backing off between polls from ReceiveTimeoutMinBackoff up to
// ReceiveTimeoutMaxBackoff.
func (c *Consumer) ReceiveTimeout(timeout time.Duration) (*Message, error) {
	deadline := time.Now().Add(timeout)
	backoff := constants.ReceiveTimeoutMinBackoff

	for {
		msg, err := c.Receive()
		if err != nil {
			return nil, err
		}
		if msg != nil {
			return msg, nil
		}
		if timeout > 0 && time.Now().After(deadline) {
			return nil, NewChannelError("ReceiveTimeout", c.channel.ID, ErrCodeTimeout, "no message before deadline")
		}

		wait := backoff
		if remaining := time.Until(deadline); timeout > 0 && remaining < wait {
			wait = remaining
		}
		last := c.channel.Ring.SignalValue()
		c.channel.Ring.Wait(last, wait)

		backoff *= 2
		if backoff > constants.ReceiveTimeoutMaxBackoff {
			backoff = constants.ReceiveTimeoutMaxBackoff
		}
	}
}

// ReceiveBlocking blocks until a message arrives, ctx is canceled, or
// the channel's producer looks dead (ErrCodeBrokenPipe).
func (c *Consumer) ReceiveBlocking(ctx context.Context) (*Message, error) {
	backoff := constants.ReceiveTimeoutMinBackoff
	for {
		msg, err := c.Receive()
		if err != nil {
			return nil, err
		}
		if msg != nil {
			return msg, nil
		}
		select {
		case <-ctx.Done():
			return nil, NewChannelError("ReceiveBlocking", c.channel.ID, ErrCodeTimeout, ctx.Err().Error())
		default:
		}

		wait := backoff
		if dl, ok := ctx.Deadline(); ok {
			remaining := time.Until(dl)
			if remaining <= 0 {
				return nil, NewChannelError("ReceiveBlocking", c.channel.ID, ErrCodeTimeout, ctx.Err().Error())
			}
			if remaining < wait {
				wait = remaining
			}
		}
		last := c.channel.Ring.SignalValue()
		c.channel.Ring.Wait(last, wait)

		backoff *= 2
		if backoff > constants.ReceiveTimeoutMaxBackoff {
			backoff = constants.ReceiveTimeoutMaxBackoff
		}
	}
}

func (c *Consumer) noteActivity() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.sawActivity = true
	c.mu.Unlock()
}

// IsProducerAlive reports whether some producer for this channel
// looks alive: either a Producer handle is still open in this process,
// or a message has moved through the channel within LivenessWindow.
// This is a heuristic, not a guarantee — a producer in another
// process that's merely idle looks indistinguishable from one that
// crashed.
func (c *Consumer) IsProducerAlive() bool {
	if c.bus.hasLocalProducer(c.channel.ID) {
		return true
	}

	tail := c.channel.Ring.TailValue()

	c.mu.Lock()
	defer c.mu.Unlock()
	if tail != c.lastTail {
		c.lastTail = tail
		c.lastActivity = time.Now()
		c.sawActivity = true
	}
	if !c.sawActivity {
		return false
	}
	return time.Since(c.lastActivity) < constants.LivenessWindow
}

// Close releases the consumer. It has no effect on the channel or
// other consumers attached to it.
func (c *Consumer) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.bus.markConsumerClosed(c.channel.ID)
	return nil
}
