package allocator

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"testing"

	"github.com/neerajchowdary889/DMXP-MPMC/internal/abi"
	"github.com/neerajchowdary889/DMXP-MPMC/internal/region"
)

var testSeq int64

func newTestRegion(t *testing.T, size uint64) (*region.Handle, string) {
	t.Helper()
	name := fmt.Sprintf("dmxp_alloc_test_%d_%d", os.Getpid(), atomic.AddInt64(&testSeq, 1))
	h, err := region.Create(name, size)
	if err != nil {
		t.Fatalf("region.Create: %v", err)
	}
	t.Cleanup(func() {
		h.Close()
		region.Remove(name)
	})
	return h, name
}

func TestNewAndAttach(t *testing.T) {
	h, name := newTestRegion(t, 1<<20)

	a, err := New(h)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.ChannelCount() != 0 {
		t.Fatalf("ChannelCount() = %d, want 0", a.ChannelCount())
	}

	h2, err := region.Attach(name, 0)
	if err != nil {
		t.Fatalf("Attach region: %v", err)
	}
	defer h2.Close()

	a2, err := Attach(h2)
	if err != nil {
		t.Fatalf("Attach allocator: %v", err)
	}
	if a2.ChannelCount() != 0 {
		t.Fatalf("attached ChannelCount() = %d, want 0", a2.ChannelCount())
	}
}

func TestCreateChannelAndLookup(t *testing.T) {
	h, _ := newTestRegion(t, 1<<20)
	a, err := New(h)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ch, err := a.CreateChannel(8)
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	if ch.ID != 0 {
		t.Errorf("first channel id = %d, want 0", ch.ID)
	}
	if a.ChannelCount() != 1 {
		t.Errorf("ChannelCount() = %d, want 1", a.ChannelCount())
	}

	got, err := a.GetChannel(ch.ID)
	if err != nil {
		t.Fatalf("GetChannel: %v", err)
	}
	if got.Capacity != 8 {
		t.Errorf("Capacity = %d, want 8", got.Capacity)
	}

	if !got.Ring.Enqueue(abi.MessageMeta{MessageID: 1}, []byte("hi")) {
		t.Fatalf("Enqueue failed on new channel")
	}
}

func TestCreateChannelRejectsNonPowerOfTwo(t *testing.T) {
	h, _ := newTestRegion(t, 1<<20)
	a, err := New(h)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := a.CreateChannel(3); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("CreateChannel(3) err = %v, want ErrInvalidInput", err)
	}
}

func TestRemoveChannelHidesIt(t *testing.T) {
	h, _ := newTestRegion(t, 1<<20)
	a, err := New(h)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ch, err := a.CreateChannel(4)
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	if err := a.RemoveChannel(ch.ID); err != nil {
		t.Fatalf("RemoveChannel: %v", err)
	}
	if _, err := a.GetChannel(ch.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetChannel after remove err = %v, want ErrNotFound", err)
	}
	if a.ChannelCount() != 1 {
		t.Errorf("ChannelCount() after remove = %d, want 1 (no reclamation)", a.ChannelCount())
	}
}

func TestAllocatorChannelLimit(t *testing.T) {
	h, _ := newTestRegion(t, 8<<20)
	a, err := New(h)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 256; i++ {
		if _, err := a.CreateChannel(4); err != nil {
			t.Fatalf("CreateChannel #%d: %v", i, err)
		}
	}
	if _, err := a.CreateChannel(4); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("257th CreateChannel err = %v, want ErrOutOfMemory", err)
	}
}
