package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/ihslink/internal/events"
	"github.com/srg/ihslink/internal/sensor"
	"github.com/srg/ihslink/pkg/config"
)

type monitorFlags struct {
	json      bool
	sensors   string
	duration  time.Duration
	calibrate bool
}

func newMonitorCmd() *cobra.Command {
	var f monitorFlags
	cmd := &cobra.Command{
		Use:   "monitor <address>",
		Short: "Stream sensor events",
		Long: fmt.Sprintf(`Connect, start the requested sensor streams and print every event until
Ctrl+C or until --duration elapses. With --calibrate the first orientation
becomes the zero reference.

Without --sensors the configured headset.auto_start_sensors are streamed.

Examples:
  ihs monitor %s
  ihs monitor %s --sensors gyro --calibrate --duration 30s
  ihs monitor %s --json > session.jsonl`, exampleAddress, exampleAddress, exampleAddress),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(cmd, args[0], f)
		},
	}
	addConnectFlags(cmd, &f.json)
	cmd.Flags().StringVar(&f.sensors, "sensors", "", "Comma-separated sensors to stream")
	cmd.Flags().DurationVar(&f.duration, "duration", 0, "Stop after this long (0 streams until interrupted)")
	cmd.Flags().BoolVar(&f.calibrate, "calibrate", false, "Capture the current orientation as the zero reference")
	return cmd
}

func runMonitor(cmd *cobra.Command, address string, f monitorFlags) (err error) {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	list := f.sensors
	if list == "" {
		list = a.cfg.Headset.AutoStartSensors
	}
	mask, err := sensor.ParseSensors(list)
	if err != nil {
		return err
	}
	if mask == sensor.None {
		return fmt.Errorf("no sensors selected")
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	if f.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.duration)
		defer cancel()
	}

	progress := a.progress("Connecting to "+address, "Connecting")
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

	sub := l.bus.Subscribe()
	defer sub.Unsubscribe()

	if err := l.engine.StartListening(ctx, mask); err != nil {
		if l.engine.SensorsListenedTo() == sensor.None {
			return err
		}
		a.logger.WithField("error", err).Warn("Some sensors could not be started")
	}

	if f.calibrate {
		ok, err := l.engine.Calibrate(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil
		case err != nil:
			return err
		case !ok:
			fmt.Fprintln(a.errOut, "No orientation received, calibration skipped")
		}
	}

	a.logger.WithFields(logrus.Fields{
		"address": address,
		"sensors": l.engine.SensorsListenedTo(),
	}).Info("Streaming sensor events")
	return streamEvents(ctx, sub, a, f.json)
}

// streamEvents prints events until ctx ends. A dropped link ends the stream
// with ErrConnectionLost unless the adapter reconnects.
func streamEvents(ctx context.Context, sub *events.Subscription, a *app, jsonOut bool) error {
	pal := newPalette(a.color)
	asJSON := a.outputFormat(jsonOut) == config.FormatJSON
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-sub.C():
			if !ok {
				return nil
			}
			if asJSON {
				if err := writeJSONLine(a, newEventView(e)); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(a.out, formatEvent(e, pal))
			}
			if e.Kind == events.ConnectionChanged && !e.Connected && !a.cfg.Headset.Reconnect {
				return ErrConnectionLost
			}
		}
	}
}

func writeJSONLine(a *app, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}
