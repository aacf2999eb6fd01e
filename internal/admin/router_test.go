package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/neerajchowdary889/DMXP-MPMC"
)

func newTestBus(t *testing.T) *dmxp.Bus {
	t.Helper()
	bus, err := dmxp.NewAnonymousBus(1 << 20)
	if err != nil {
		t.Fatalf("NewAnonymousBus: %v", err)
	}
	t.Cleanup(func() { bus.Close() })
	return bus
}

func TestHandleChannelsListsCreatedChannels(t *testing.T) {
	bus := newTestBus(t)
	if _, err := bus.CreateChannel(8); err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	if _, err := bus.CreateChannel(8); err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}

	router, _ := NewRouter(bus, DefaultConfig())
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/channels")
	if err != nil {
		t.Fatalf("GET /channels: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var views []channelView
	if err := json.NewDecoder(resp.Body).Decode(&views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d channels, want 2", len(views))
	}
}

func TestHandleMetricsExposesPrometheusFormat(t *testing.T) {
	bus := newTestBus(t)
	chID, err := bus.CreateChannel(4)
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	prod, err := bus.NewProducer(chID)
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	if err := prod.Send([]byte("x")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	router, _ := NewRouter(bus, DefaultConfig())
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestHandleHealthz(t *testing.T) {
	bus := newTestBus(t)
	router, _ := NewRouter(bus, DefaultConfig())
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
