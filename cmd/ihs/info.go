package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const exampleAddress = "AA:BB:CC:DD:EE:01"

// addConnectFlags registers the flags shared by commands that connect to a
// headset.
func addConnectFlags(cmd *cobra.Command, jsonFlag *bool) {
	cmd.Flags().BoolVar(jsonFlag, "json", false, "Print JSON")
	cmd.Flags().Int("auth-retries", 5, "Authentication attempts before giving up")
	cmd.Flags().Bool("reconnect", true, "Reconnect after link loss")
	cmd.Flags().Bool("verbose", false, "Debug logging")
}

func newInfoCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "info <address>",
		Short: "Show device information and battery level",
		Long: fmt.Sprintf(`Connect and authenticate, read the device information and battery
services, then disconnect.

Example:
  ihs info %s`, exampleAddress),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd, args[0], jsonOut)
		},
	}
	addConnectFlags(cmd, &jsonOut)
	return cmd
}

func runInfo(cmd *cobra.Command, address string, jsonOut bool) (err error) {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	progress := a.progress("Reading device information from "+address, "Connecting")
	progress.Start()
	defer progress.Stop()

	l, err := a.connect(ctx, address, false)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := l.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	progress.Stop()

	return printDeviceInfo(a.out, l.engine.DeviceHandle(), l.manager.DeviceInfo(), a.outputFormat(jsonOut), newPalette(a.color))
}
