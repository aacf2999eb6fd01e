// Command dmxp-consume attaches to a dmxp region and drains messages
// from one channel, printing each payload until interrupted or a
// fixed count is reached.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/neerajchowdary889/DMXP-MPMC"
)

var (
	regionName string
	channelID  uint32
	count      int
	blocking   bool
	quiet      bool
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dmxp-consume",
		Short: "Drain messages from a dmxp channel",
		RunE:  runConsume,
	}

	cmd.Flags().StringVar(&regionName, "region", "dmxp_alloc", "shared memory region name")
	cmd.Flags().Uint32Var(&channelID, "channel", 0, "channel id to consume from")
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many messages; 0 means run until interrupted")
	cmd.Flags().BoolVar(&blocking, "blocking", true, "block waiting for messages instead of returning immediately when empty")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress per-message logging, printing only a final summary")

	return cmd
}

func runConsume(cmd *cobra.Command, args []string) error {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "dmxp-consume"})

	bus, err := dmxp.Attach(regionName, dmxp.Options{})
	if err != nil {
		return fmt.Errorf("attach region %q: %w", regionName, err)
	}
	defer bus.Close()

	cons, err := bus.NewConsumer(channelID)
	if err != nil {
		return fmt.Errorf("new consumer on channel %d: %w", channelID, err)
	}
	defer cons.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("interrupted, shutting down")
		cancel()
	}()

	received := 0
	for count == 0 || received < count {
		msg, err := receive(ctx, cons)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			var de *dmxp.Error
			if errors.As(err, &de) && de.Code == dmxp.ErrCodeBrokenPipe {
				logger.Warn("producer gone, stopping", "error", err)
				break
			}
			logger.Error("receive failed", "error", err)
			continue
		}
		if msg == nil {
			continue
		}
		received++
		if !quiet {
			fmt.Printf("[%d] channel=%d msg_id=%d bytes=%d payload=%q\n",
				received, msg.ChannelID, msg.MessageID, len(msg.Payload), string(msg.Payload))
		}
		msg.Release()
	}

	snap := bus.Metrics.Snapshot()
	logger.Info("done", "received", received, "empty_events", snap.EmptyEvents, "errors", snap.ReceiveErrors)
	return nil
}

func receive(ctx context.Context, cons *dmxp.Consumer) (*dmxp.Message, error) {
	if blocking {
		return cons.ReceiveBlocking(ctx)
	}
	msg, err := cons.Receive()
	if err != nil {
		return nil, err
	}
	if msg == nil {
		time.Sleep(10 * time.Millisecond)
		return nil, nil
	}
	return msg, nil
}
