package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/srg/ihslink/internal/sensor"
	"github.com/srg/ihslink/pkg/config"
)

const defaultReadSensors = "gyro,accelerometer,gps"

func newReadCmd() *cobra.Command {
	var (
		jsonOut bool
		sensors string
	)
	cmd := &cobra.Command{
		Use:   "read <address>",
		Short: "Read sensors once",
		Long: fmt.Sprintf(`Connect without starting any stream, read each requested sensor once
and print the snapshot. Sensors that could not be read are listed.

Sensors: gyro (orientation), accelerometer, gps, magnetometer, all.

Examples:
  ihs read %s
  ihs read %s --sensors gyro,magnetometer --json`, exampleAddress, exampleAddress),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mask, err := sensor.ParseSensors(sensors)
			if err != nil {
				return err
			}
			if mask == sensor.None {
				return fmt.Errorf("no sensors selected")
			}
			return runRead(cmd, args[0], mask, jsonOut)
		},
	}
	addConnectFlags(cmd, &jsonOut)
	cmd.Flags().StringVar(&sensors, "sensors", defaultReadSensors, "Comma-separated sensors to read")
	return cmd
}

func runRead(cmd *cobra.Command, address string, mask sensor.Sensors, jsonOut bool) (err error) {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	progress := a.progress(fmt.Sprintf("Reading %s from %s", mask, address), "Connecting")
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

	progress.Callback()("Reading")
	result := l.engine.ReadOnce(ctx, mask)
	progress.Stop()
	if result.Err != nil {
		a.logger.WithField("error", result.Err).Warn("Some sensors could not be read")
	}
	if result.SensorsFailed == mask {
		return fmt.Errorf("no sensor could be read: %w", result.Err)
	}

	reading := l.engine.CurrentReading()
	if a.outputFormat(jsonOut) == config.FormatJSON {
		return writeJSON(a.out, newReadingView(reading, result.SensorsFailed))
	}
	return printReading(a.out, reading, result.SensorsFailed, newPalette(a.color))
}
