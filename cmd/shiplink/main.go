// Command shiplink runs either half of the two-node HTTP/HTTPS forward
// proxy: the ship (client-facing) or the offshore (internet-facing) node.
// This replaces the teacher's flag-based `-mode server|client` main with
// cobra subcommands, following the shape of vango-go-vango's cmd/vango:
// a root command with SilenceUsage/SilenceErrors and one file per verb.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "shiplink",
		Short: "A two-node HTTP/HTTPS forward proxy joined by a single TCP link",
		Long: `shiplink runs one of two roles:

  ship      the client-facing HTTP proxy, spoken to directly by browsers
            and other HTTP clients
  offshore  the internet-facing node that fetches origin servers and
            tunnels CONNECT traffic on the ship's behalf

Exactly one long-lived TCP link joins a ship to its offshore. The ship
dials out; the offshore listens.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(shipCmd(), offshoreCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "shiplink: %v\n", err)
		os.Exit(1)
	}
}
