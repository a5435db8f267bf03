package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jmptrader/shiplink/internal/config"
	"github.com/jmptrader/shiplink/internal/introspect"
	"github.com/jmptrader/shiplink/internal/logging"
	"github.com/jmptrader/shiplink/internal/offshoredispatch"
)

func offshoreCmd() *cobra.Command {
	var (
		listenPort  int
		metricsPort int
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "offshore",
		Short: "Run the internet-facing proxy node",
		Long: `Run the offshore: the node that accepts a ship's link and, per
inbound REQUEST frame, either fetches an origin server directly or
opens a raw TCP tunnel for a CONNECT target.

Reads OFFSHORE_PORT from the environment; flags below override it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOffshore(listenPort, metricsPort, verbose)
		},
	}

	defaults := config.OffshoreFromEnv()
	cmd.Flags().IntVar(&listenPort, "listen-port", defaults.ListenPort, "TCP port to accept ship links on")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", 0, "port to serve GET /links and GET /metrics on (0 disables)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	return cmd
}

func runOffshore(listenPort, metricsPort int, verbose bool) error {
	level := logrus.InfoLevel
	if verbose {
		level = logrus.DebugLevel
	}
	logger := logging.New("offshore", level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	listener := &offshoredispatch.Listener{Port: listenPort, Logger: logger}

	errc := make(chan error, 2)
	go func() {
		if err := listener.Serve(ctx); err != nil {
			errc <- fmt.Errorf("offshore listener: %w", err)
		}
	}()

	var metricsServer *http.Server
	if metricsPort != 0 {
		mux := http.NewServeMux()
		introspect.Mount(mux)
		controller := &introspect.OffshoreController{Listener: listener}
		mux.HandleFunc("/links", controller.Links)
		metricsServer = &http.Server{Addr: fmt.Sprintf(":%d", metricsPort), Handler: mux}
		go func() {
			logger.I("offshore metrics listening on :%d", metricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errc <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.I("shutting down")
	case err := <-errc:
		logger.E("fatal: %v", err)
		cancel()
		return err
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		metricsServer.Shutdown(shutdownCtx)
	}
	return nil
}
