// Command dmxp-admin serves the admin HTTP surface (channel listing,
// Prometheus metrics, and a live WebSocket feed) for an existing dmxp
// region. With --cleanup it instead sweeps stale region files from
// /dev/shm and exits without attaching.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/neerajchowdary889/DMXP-MPMC"
	"github.com/neerajchowdary889/DMXP-MPMC/internal/admin"
	"github.com/neerajchowdary889/DMXP-MPMC/internal/cleanup"
)

var (
	regionName string
	listenAddr string
	cleanupDir string
	doCleanup  bool
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dmxp-admin",
		Short: "Serve the dmxp admin HTTP and WebSocket surface",
		RunE:  runAdmin,
	}

	cmd.Flags().StringVar(&regionName, "region", "dmxp_alloc", "shared memory region name to attach to")
	cmd.Flags().StringVar(&listenAddr, "listen", "127.0.0.1:8089", "address to serve the admin HTTP surface on")
	cmd.Flags().StringVar(&cleanupDir, "cleanup-dir", cleanup.DefaultDir, "directory to sweep stale region files from")
	cmd.Flags().BoolVar(&doCleanup, "cleanup", false, "sweep stale region files from cleanup-dir and exit, without attaching to a region")

	return cmd
}

func runAdmin(cmd *cobra.Command, args []string) error {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "dmxp-admin"})

	if doCleanup {
		removed, err := cleanup.Sweep(cleanupDir)
		if err != nil {
			return err
		}
		logger.Info("swept stale region files", "dir", cleanupDir, "removed", len(removed), "files", removed)
		return nil
	}

	bus, err := dmxp.Attach(regionName, dmxp.Options{})
	if err != nil {
		return fmt.Errorf("attach region %q: %w", regionName, err)
	}
	defer bus.Close()

	router, hub := admin.NewRouter(bus, admin.DefaultConfig())

	done := make(chan struct{})
	go hub.Run(done)

	server := &http.Server{Addr: listenAddr, Handler: router}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("admin server listening", "addr", listenAddr, "region", regionName)
		serveErr <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-sigCh:
		logger.Info("shutting down")
		close(done)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}
	return nil
}
