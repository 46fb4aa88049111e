package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/srg/ihslink/internal/device"
	"github.com/srg/ihslink/scanner"
)

type scanFlags struct {
	json      bool
	allowList []string
	blockList []string
	services  []string
	all       bool
}

func newScanCmd() *cobra.Command {
	var f scanFlags
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for headsets",
		Long: `Scan for headsets advertising the IMU service and print their name,
address and signal strength, strongest first.

Examples:
  ihs scan
  ihs scan --timeout 5s --json
  ihs scan --allow AA:BB:CC:DD:EE:01,AA:BB:CC:DD:EE:02
  ihs scan --service 180f`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(f.services) > 0 {
				services, err := device.ValidateUUID(f.services...)
				if err != nil {
					return err
				}
				f.services = services
			}
			return runScan(cmd, f)
		},
	}
	cmd.Flags().Duration("timeout", 10*time.Second, "Scan duration")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print JSON")
	cmd.Flags().StringSliceVar(&f.allowList, "allow", nil, "Only show these addresses")
	cmd.Flags().StringSliceVar(&f.blockList, "block", nil, "Hide these addresses")
	cmd.Flags().StringSliceVar(&f.services, "service", nil, "Match these service UUIDs instead of the IMU service")
	cmd.Flags().BoolVar(&f.all, "all", false, "Show every peripheral, not only headsets")
	cmd.Flags().Bool("verbose", false, "Debug logging")
	return cmd
}

func runScan(cmd *cobra.Command, f scanFlags) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	opts := scanner.DefaultScanOptions()
	opts.Duration = a.cfg.ScanTimeout
	opts.AllowList = f.allowList
	opts.BlockList = f.blockList
	switch {
	case f.all:
		opts.ServiceUUIDs = nil
	case len(f.services) > 0:
		opts.ServiceUUIDs = f.services
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	progress := a.progress("Scanning for headsets", "Scanning", "Processing results").WithCountdown(opts.Duration)
	progress.Start()
	defer progress.Stop()

	a.logger.WithField("services", opts.ServiceUUIDs).Debug("Scanning for headsets...")
	found, err := scanner.NewScanner(a.logger).Scan(ctx, opts, progress.Callback())
	progress.Stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.WithField("error", err).Error("Scan failed")
		return err
	}
	return printDevices(a.out, found, a.outputFormat(f.json), newPalette(a.color))
}
