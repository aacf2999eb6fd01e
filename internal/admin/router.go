// Package admin exposes a small HTTP surface for inspecting a running
// bus from outside the process: a JSON channel listing, a Prometheus
// scrape endpoint, and a WebSocket feed that streams the live channel
// ids and bus metrics at a fixed cadence so an operator can watch a
// bus live without polling.
package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/neerajchowdary889/DMXP-MPMC"
)

// Config controls the router's CORS policy and broadcast cadence.
type Config struct {
	AllowedOrigins  []string
	BroadcastPeriod time.Duration
}

// DefaultConfig returns a permissive, localhost-friendly policy
// suitable for an operator dashboard running on the same host.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins:  []string{"http://localhost:*", "http://127.0.0.1:*"},
		BroadcastPeriod: 500 * time.Millisecond,
	}
}

// NewRouter builds the admin HTTP surface for bus. It is pure: no
// listener is opened and no goroutine runs until the hub returned
// alongside it is started with Run, and that server is given to
// http.Serve by the caller.
func NewRouter(bus *dmxp.Bus, cfg Config) (*chi.Mux, *Hub) {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))

	hub := newHub(bus, cfg.BroadcastPeriod)

	r.Get("/channels", handleChannels(bus))
	r.Handle("/metrics", metricsHandler(bus))
	r.Get("/healthz", handleHealthz)
	r.Get("/ws/channels", hub.handleWebSocket)

	return r, hub
}

type channelView struct {
	ChannelID uint32 `json:"channel_id"`
	Capacity  uint32 `json:"capacity"`
}

func handleChannels(bus *dmxp.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := bus.Channels()
		views := make([]channelView, 0, len(ids))
		for _, id := range ids {
			views = append(views, channelView{ChannelID: id})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(views)
	}
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
