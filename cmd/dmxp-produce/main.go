// Command dmxp-produce attaches to (or creates) a dmxp region and
// sends messages into one channel, either a single payload from a
// flag or a stream of synthetic payloads at a bounded rate.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/neerajchowdary889/DMXP-MPMC"
)

var (
	regionName string
	regionSize int64
	channelID  uint32
	create     bool
	capacity   uint64
	payload    string
	count      int
	ratePerSec float64
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dmxp-produce",
		Short: "Send messages into a dmxp channel",
		RunE:  runProduce,
	}

	cmd.Flags().StringVar(&regionName, "region", "dmxp_alloc", "shared memory region name")
	cmd.Flags().Int64Var(&regionSize, "region-size", dmxp.DefaultRegionSize, "region size in bytes, used only with --create")
	cmd.Flags().Uint32Var(&channelID, "channel", 0, "target channel id")
	cmd.Flags().BoolVar(&create, "create", false, "create the region instead of attaching to an existing one")
	cmd.Flags().Uint64Var(&capacity, "capacity", 1024, "channel capacity (power of two), used only with --create")
	cmd.Flags().StringVar(&payload, "payload", "", "payload to send; if empty, a synthetic payload is generated for each send")
	cmd.Flags().IntVar(&count, "count", 1, "number of messages to send")
	cmd.Flags().Float64Var(&ratePerSec, "rate", 0, "maximum sends per second; 0 means unlimited")

	return cmd
}

func runProduce(cmd *cobra.Command, args []string) error {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "dmxp-produce"})

	bus, chID, err := openBus(logger)
	if err != nil {
		return err
	}
	defer bus.Close()

	prod, err := bus.NewProducer(chID)
	if err != nil {
		return fmt.Errorf("new producer on channel %d: %w", chID, err)
	}
	defer prod.Close()

	var limiter *rate.Limiter
	if ratePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	instanceID := uuid.New().String()
	for i := 0; i < count; i++ {
		select {
		case <-sigCh:
			logger.Info("interrupted, stopping early", "sent", i)
			return nil
		default:
		}

		if limiter != nil {
			if err := limiter.Wait(cmd.Context()); err != nil {
				return err
			}
		}

		body := payload
		if body == "" {
			body = fmt.Sprintf("%s-%06d-%d", instanceID, i, time.Now().UnixNano())
		}
		if err := prod.Send([]byte(body)); err != nil {
			logger.Error("send failed", "channel", chID, "index", i, "error", err)
			continue
		}
		logger.Debug("sent", "channel", chID, "index", i, "bytes", len(body))
	}

	snap := bus.Metrics.Snapshot()
	logger.Info("done", "sent", snap.SendOps, "errors", snap.SendErrors, "full_events", snap.FullEvents)
	return nil
}

func openBus(logger *log.Logger) (*dmxp.Bus, uint32, error) {
	opts := dmxp.Options{RegionSize: uint64(regionSize)}

	var bus *dmxp.Bus
	var err error
	if create {
		bus, err = dmxp.Create(regionName, opts)
	} else {
		bus, err = dmxp.Attach(regionName, opts)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open region %q: %w", regionName, err)
	}

	chID := channelID
	if create {
		chID, err = bus.CreateChannel(capacity)
		if err != nil {
			bus.Close()
			return nil, 0, fmt.Errorf("create channel: %w", err)
		}
		logger.Info("created channel", "channel", chID, "capacity", capacity)
	}
	return bus, chID, nil
}
