package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ihs",
		Short: "Intelligent headset command-line client",
		Long: `Command-line client for intelligent headsets over Bluetooth Low Energy:

- Discover headsets advertising the IMU service
- Read device information and battery level
- Read orientation, acceleration, GPS and magnetometer data once
- Stream sensor events with optional orientation calibration

Settings come from a YAML config file, IHS_* environment variables and flags.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", formatVersion(version), commit, date),
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "Config file (default $HOME/.config/ihs/config.yaml)")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().String("format", "", "Output format (table, json)")
	root.PersistentFlags().Duration("device-timeout", 0, "Connection timeout")

	root.AddCommand(newScanCmd())
	root.AddCommand(newInfoCmd())
	root.AddCommand(newReadCmd())
	root.AddCommand(newMonitorCmd())
	root.AddCommand(newConfigCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Ctrl+C is a normal exit
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}
