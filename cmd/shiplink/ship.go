package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jmptrader/shiplink/internal/config"
	"github.com/jmptrader/shiplink/internal/introspect"
	"github.com/jmptrader/shiplink/internal/linkmgr"
	"github.com/jmptrader/shiplink/internal/logging"
	"github.com/jmptrader/shiplink/internal/shipsched"
)

func shipCmd() *cobra.Command {
	var (
		proxyPort    int
		offshoreHost string
		offshorePort int
		statusPort   int
		verbose      bool
	)

	cmd := &cobra.Command{
		Use:   "ship",
		Short: "Run the client-facing proxy node",
		Long: `Run the ship: the node HTTP clients point their proxy settings at.

The ship dials the offshore, queues client transactions FIFO over the
resulting link, and flips the link into raw tunnel mode for the
duration of any CONNECT request.

Reads OFFSHORE_HOST (required), SHIP_PROXY_PORT, OFFSHORE_PORT, and
SHIP_STATUS_PORT from the environment; flags below override them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShip(proxyPort, offshoreHost, offshorePort, statusPort, verbose)
		},
	}

	defaults, _ := config.ShipFromEnv()
	cmd.Flags().IntVar(&proxyPort, "proxy-port", firstNonZero(defaults.ProxyPort, config.DefaultShipProxyPort), "local HTTP proxy port")
	cmd.Flags().StringVar(&offshoreHost, "offshore-host", defaults.OffshoreHost, "offshore hostname or address (required)")
	cmd.Flags().IntVar(&offshorePort, "offshore-port", firstNonZero(defaults.OffshorePort, config.DefaultOffshorePort), "offshore TCP port")
	cmd.Flags().IntVar(&statusPort, "status-port", defaults.StatusPort, "port to serve GET /status and GET /metrics on (0 disables)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	return cmd
}

func firstNonZero(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

func runShip(proxyPort int, offshoreHost string, offshorePort, statusPort int, verbose bool) error {
	if offshoreHost == "" {
		return fmt.Errorf("--offshore-host (or OFFSHORE_HOST) is required")
	}

	level := logrus.InfoLevel
	if verbose {
		level = logrus.DebugLevel
	}
	logger := logging.New("ship", level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	link := linkmgr.NewShipLink(offshoreHost, offshorePort, config.DefaultReconnectDelay, 30*config.DefaultReconnectDelay, logger.WithField("subsystem", "shiplink"))
	go link.Run(ctx)

	sched := shipsched.New(link, logger.WithField("subsystem", "scheduler"), 0, config.DefaultUpstreamWaitTimeout)
	proxy := &shipsched.ProxyServer{Scheduler: sched}

	errc := make(chan error, 2)

	proxyServer := &http.Server{Addr: fmt.Sprintf(":%d", proxyPort), Handler: proxy}
	go func() {
		logger.I("ship proxy listening on :%d", proxyPort)
		if err := proxyServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- fmt.Errorf("proxy server: %w", err)
		}
	}()

	var statusServer *http.Server
	if statusPort != 0 {
		mux := http.NewServeMux()
		introspect.Mount(mux)
		controller := &introspect.ShipController{
			Scheduler: sched,
			LinkUp:    func() bool { return link.Current() != nil },
		}
		mux.HandleFunc("/status", controller.Status)
		statusServer = &http.Server{Addr: fmt.Sprintf(":%d", statusPort), Handler: mux}
		go func() {
			logger.I("ship status/metrics listening on :%d", statusPort)
			if err := statusServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errc <- fmt.Errorf("status server: %w", err)
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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.DefaultReconnectDelay*5)
	defer shutdownCancel()
	proxyServer.Shutdown(shutdownCtx)
	if statusServer != nil {
		statusServer.Shutdown(shutdownCtx)
	}
	return nil
}
