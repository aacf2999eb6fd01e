package dmxp

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var busTestSeq int64

func testBusName(t *testing.T) string {
	t.Helper()
	n := atomic.AddInt64(&busTestSeq, 1)
	return fmt.Sprintf("dmxp_bus_test_%d_%d", os.Getpid(), n)
}

func TestSingleThreadSanity(t *testing.T) {
	bus, err := NewAnonymousBus(1 << 20)
	if err != nil {
		t.Fatalf("NewAnonymousBus: %v", err)
	}
	defer bus.Close()

	chID, err := bus.CreateChannel(8)
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	prod, err := bus.NewProducer(chID)
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	cons, err := bus.NewConsumer(chID)
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}

	if err := prod.Send([]byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	msg, err := cons.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if msg == nil {
		t.Fatalf("Receive returned no message")
	}
	defer msg.Release()
	if string(msg.Payload) != "hello" {
		t.Errorf("Payload = %q, want %q", msg.Payload, "hello")
	}
	if msg, err := cons.Receive(); msg != nil || err != nil {
		t.Errorf("Receive on an empty channel with a live producer = (%v, %v), want (nil, nil)", msg, err)
	}
}

func TestFillDrainRefillViaBus(t *testing.T) {
	bus, err := NewAnonymousBus(1 << 20)
	if err != nil {
		t.Fatalf("NewAnonymousBus: %v", err)
	}
	defer bus.Close()

	chID, err := bus.CreateChannel(4)
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	prod, _ := bus.NewProducer(chID)
	cons, _ := bus.NewConsumer(chID)

	for round := 0; round < 5; round++ {
		for i := 0; i < 4; i++ {
			if err := prod.Send([]byte{byte(i)}); err != nil {
				t.Fatalf("round %d send %d: %v", round, i, err)
			}
		}
		if err := prod.Send([]byte{0}); !errors.Is(err, NewChannelError("", 0, ErrCodeChannelFull, "")) {
			t.Fatalf("round %d: expected ErrCodeChannelFull, got %v", round, err)
		}
		for i := 0; i < 4; i++ {
			msg, err := cons.Receive()
			if err != nil {
				t.Fatalf("round %d receive %d: %v", round, i, err)
			}
			if msg == nil {
				t.Fatalf("round %d receive %d: channel unexpectedly empty", round, i)
			}
			msg.Release()
		}
	}
}

func TestMPMCViaBus(t *testing.T) {
	const (
		capacity     = 4096
		numProducers = 4
		perProducer  = 10000
		numConsumers = 4
	)
	bus, err := NewAnonymousBus(16 << 20)
	if err != nil {
		t.Fatalf("NewAnonymousBus: %v", err)
	}
	defer bus.Close()

	chID, err := bus.CreateChannel(capacity)
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}

	type pair struct {
		producer uint32
		id       uint64
	}

	var wg sync.WaitGroup
	for p := 0; p < numProducers; p++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			prod, err := bus.NewProducer(chID)
			if err != nil {
				t.Errorf("NewProducer: %v", err)
				return
			}
			defer prod.Close()
			for i := 0; i < perProducer; i++ {
				payload := []byte(fmt.Sprintf("%d:%d", pid, i))
				for prod.Send(payload) != nil {
					// ring momentarily full; retry
				}
			}
		}(p)
	}

	total := numProducers * perProducer
	var consumed int64
	seenCh := make(chan pair, total)
	var cwg sync.WaitGroup
	for c := 0; c < numConsumers; c++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			cons, err := bus.NewConsumer(chID)
			if err != nil {
				t.Errorf("NewConsumer: %v", err)
				return
			}
			for {
				msg, err := cons.Receive()
				if err == nil && msg != nil {
					var pid, id uint64
					fmt.Sscanf(string(msg.Payload), "%d:%d", &pid, &id)
					seenCh <- pair{producer: uint32(pid), id: id}
					msg.Release()
					if atomic.AddInt64(&consumed, 1) >= int64(total) {
						return
					}
					continue
				}
				if atomic.LoadInt64(&consumed) >= int64(total) {
					return
				}
			}
		}()
	}

	wg.Wait()
	cwg.Wait()
	close(seenCh)

	seen := make(map[pair]int)
	for p := range seenCh {
		seen[p]++
	}
	if len(seen) != total {
		t.Fatalf("got %d distinct pairs, want %d", len(seen), total)
	}
	for p := 0; p < numProducers; p++ {
		for i := 0; i < perProducer; i++ {
			key := pair{producer: uint32(p), id: uint64(i)}
			if seen[key] != 1 {
				t.Fatalf("pair %+v seen %d times, want 1", key, seen[key])
			}
		}
	}
}

func TestAttachThenConsumeWithChecksum(t *testing.T) {
	name := testBusName(t)
	defer Remove(name)

	writer, err := Create(name, Options{RegionSize: 4 << 20})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer writer.Close()

	chID, err := writer.CreateChannel(16)
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	prod, err := writer.NewProducer(chID)
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}

	payloads := make([][]byte, 50)
	sums := make([][32]byte, 50)
	for i := range payloads {
		payloads[i] = []byte(fmt.Sprintf("payload-%03d-%s", i, "abcdefghijklmnopqrstuvwxyz"))
		sums[i] = sha256.Sum256(payloads[i])
	}

	reader, err := Attach(name, Options{})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer reader.Close()

	cons, err := reader.NewConsumer(chID)
	if err != nil {
		t.Fatalf("NewConsumer on attached bus: %v", err)
	}

	for i, p := range payloads {
		if err := prod.Send(p); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}

	for i := range payloads {
		msg, err := cons.ReceiveTimeout(2 * time.Second)
		if err != nil {
			t.Fatalf("ReceiveTimeout %d: %v", i, err)
		}
		got := sha256.Sum256(msg.Payload)
		if got != sums[i] {
			t.Errorf("message %d: checksum mismatch", i)
		}
		msg.Release()
	}
}

func TestFullChannelUnderContention(t *testing.T) {
	bus, err := NewAnonymousBus(1 << 20)
	if err != nil {
		t.Fatalf("NewAnonymousBus: %v", err)
	}
	defer bus.Close()

	chID, err := bus.CreateChannel(16)
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	// A consumer that never drains keeps IsConsumerAlive true, so a
	// full ring reports ErrCodeChannelFull rather than ErrCodeBrokenPipe.
	cons, err := bus.NewConsumer(chID)
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}
	defer cons.Close()

	var wg sync.WaitGroup
	var fullCount int64
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prod, err := bus.NewProducer(chID)
			if err != nil {
				t.Errorf("NewProducer: %v", err)
				return
			}
			defer prod.Close()
			for i := 0; i < 200; i++ {
				if err := prod.Send([]byte{byte(i)}); err != nil {
					var de *Error
					if errors.As(err, &de) && de.Code == ErrCodeChannelFull {
						atomic.AddInt64(&fullCount, 1)
						continue
					}
					t.Errorf("unexpected send error: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	if fullCount == 0 {
		t.Errorf("expected at least one ErrCodeChannelFull under contention on a 16-slot ring with 8*200 sends")
	}
	if bus.Metrics.Snapshot().FullEvents == 0 {
		t.Errorf("expected FullEvents metric to be incremented")
	}
}

func TestAllocatorLimitViaBus(t *testing.T) {
	bus, err := NewAnonymousBus(8 << 20)
	if err != nil {
		t.Fatalf("NewAnonymousBus: %v", err)
	}
	defer bus.Close()

	for i := 0; i < 256; i++ {
		if _, err := bus.CreateChannel(4); err != nil {
			t.Fatalf("CreateChannel #%d: %v", i, err)
		}
	}
	_, err = bus.CreateChannel(4)
	var de *Error
	if !errors.As(err, &de) || de.Code != ErrCodeOutOfMemory {
		t.Fatalf("257th CreateChannel err = %v, want ErrCodeOutOfMemory", err)
	}
	if bus.ChannelCount() != 256 {
		t.Errorf("ChannelCount() = %d, want 256", bus.ChannelCount())
	}
}

func TestConsumerLivenessHeuristic(t *testing.T) {
	bus, err := NewAnonymousBus(1 << 20)
	if err != nil {
		t.Fatalf("NewAnonymousBus: %v", err)
	}
	defer bus.Close()

	chID, err := bus.CreateChannel(4)
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	cons, err := bus.NewConsumer(chID)
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}

	if cons.IsProducerAlive() {
		t.Errorf("expected no producer alive before any producer exists")
	}

	prod, err := bus.NewProducer(chID)
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	if !cons.IsProducerAlive() {
		t.Errorf("expected producer alive once a Producer handle is open in-process")
	}

	prod.Close()
	if err := prod.Send([]byte("x")); !errors.Is(err, NewChannelError("", 0, ErrCodeClosed, "")) {
		t.Errorf("Send after Close err = %v, want ErrCodeClosed", err)
	}
}

func TestReceiveBlockingCancel(t *testing.T) {
	bus, err := NewAnonymousBus(1 << 20)
	if err != nil {
		t.Fatalf("NewAnonymousBus: %v", err)
	}
	defer bus.Close()

	chID, err := bus.CreateChannel(4)
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	cons, err := bus.NewConsumer(chID)
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}
	// Keep a producer open so IsProducerAlive stays true and the wait
	// actually runs out the clock instead of bailing with BrokenPipe.
	prod, err := bus.NewProducer(chID)
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	defer prod.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = cons.ReceiveBlocking(ctx)
	if !errors.Is(err, NewChannelError("", 0, ErrCodeTimeout, "")) {
		t.Fatalf("ReceiveBlocking err = %v, want ErrCodeTimeout", err)
	}
}

func TestSendBatchAtomicReservation(t *testing.T) {
	bus, err := NewAnonymousBus(1 << 20)
	if err != nil {
		t.Fatalf("NewAnonymousBus: %v", err)
	}
	defer bus.Close()

	chID, err := bus.CreateChannel(8)
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	prod, err := bus.NewProducer(chID)
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	cons, err := bus.NewConsumer(chID)
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}

	batch := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d"), []byte("e")}
	n, err := prod.SendBatch(batch)
	if err != nil {
		t.Fatalf("SendBatch: %v", err)
	}
	if n != len(batch) {
		t.Fatalf("SendBatch enqueued %d, want %d", n, len(batch))
	}

	for i, want := range batch {
		msg, err := cons.Receive()
		if err != nil {
			t.Fatalf("receive %d: %v", i, err)
		}
		if msg == nil {
			t.Fatalf("receive %d: channel unexpectedly empty", i)
		}
		if string(msg.Payload) != string(want) {
			t.Errorf("message %d payload = %q, want %q", i, msg.Payload, want)
		}
		if msg.MessageType != 0 {
			t.Errorf("message %d MessageType = %d, want 0 (must not carry the batch index)", i, msg.MessageType)
		}
		msg.Release()
	}

	// A batch that doesn't fit in one contiguous reservation must not
	// partially land: nothing should be dequeuable afterward.
	big := make([][]byte, 9)
	for i := range big {
		big[i] = []byte{byte(i)}
	}
	if _, err := prod.SendBatch(big); err == nil {
		t.Fatalf("SendBatch of 9 into an 8-slot ring succeeded, want ErrCodeChannelFull")
	}
	if msg, err := cons.Receive(); msg != nil || err != nil {
		t.Fatalf("Receive after failed batch = (%v, %v), want (nil, nil): batch must not partially land", msg, err)
	}
}

func TestSendBrokenPipeWhenConsumerDead(t *testing.T) {
	bus, err := NewAnonymousBus(1 << 20)
	if err != nil {
		t.Fatalf("NewAnonymousBus: %v", err)
	}
	defer bus.Close()

	chID, err := bus.CreateChannel(2)
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	cons, err := bus.NewConsumer(chID)
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}
	cons.Close() // no Consumer handle open anywhere, and nothing ever dequeued

	prod, err := bus.NewProducer(chID)
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	defer prod.Close()

	for i := 0; i < 2; i++ {
		if err := prod.Send([]byte{byte(i)}); err != nil {
			t.Fatalf("fill send %d: %v", i, err)
		}
	}

	var de *Error
	if err := prod.Send([]byte("overflow")); !errors.As(err, &de) || de.Code != ErrCodeBrokenPipe {
		t.Fatalf("Send on a full channel with no live consumer = %v, want ErrCodeBrokenPipe", err)
	}
}

func TestReceiveBlockingBrokenPipe(t *testing.T) {
	bus, err := NewAnonymousBus(1 << 20)
	if err != nil {
		t.Fatalf("NewAnonymousBus: %v", err)
	}
	defer bus.Close()

	chID, err := bus.CreateChannel(4)
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	cons, err := bus.NewConsumer(chID)
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}

	prod, err := bus.NewProducer(chID)
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	prod.Close() // no Producer handle open anywhere, and no message ever sent

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	_, err = cons.ReceiveBlocking(ctx)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("ReceiveBlocking took %v, want a prompt BrokenPipe bail", elapsed)
	}
	var de *Error
	if !errors.As(err, &de) || de.Code != ErrCodeBrokenPipe {
		t.Fatalf("ReceiveBlocking err = %v, want ErrCodeBrokenPipe", err)
	}
}
