package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/srg/ihslink/internal/device"
	goble "github.com/srg/ihslink/internal/device/go-ble"
	"github.com/srg/ihslink/internal/events"
	"github.com/srg/ihslink/internal/headset"
	"github.com/srg/ihslink/internal/session"
	"github.com/srg/ihslink/pkg/config"
)

// app is the per-invocation wiring shared by every command.
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
	out    io.Writer
	errOut io.Writer
	color  bool
	// interactive enables the progress line on errOut.
	interactive bool
}

// newApp loads the configuration for cmd. --verbose means debug logging
// unless --log-level is given explicitly.
func newApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose && !cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logrus.DebugLevel.String()
	}

	// Arguments and configuration are valid from here on
	cmd.SilenceUsage = true

	logger := cfg.NewLogger()
	logger.SetOutput(cmd.ErrOrStderr())
	return &app{
		cfg:         cfg,
		logger:      logger,
		out:         cmd.OutOrStdout(),
		errOut:      cmd.ErrOrStderr(),
		color:       isTerminal(cmd.OutOrStdout()),
		interactive: isTerminal(cmd.ErrOrStderr()),
	}, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// outputFormat resolves --json against the configured output format.
func (a *app) outputFormat(jsonFlag bool) string {
	if jsonFlag {
		return config.FormatJSON
	}
	return a.cfg.OutputFormat
}

// progress returns a printer on errOut, or a silent one when errOut is not
// a terminal.
func (a *app) progress(prefix, phase string, stopPhases ...string) *ProgressPrinter {
	w := io.Discard
	if a.interactive {
		w = a.errOut
	}
	return NewProgressPrinter(w, prefix, phase, stopPhases...)
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// link is one connected headset together with the bus its events go to.
type link struct {
	manager *session.Manager
	engine  *headset.Engine
	bus     *events.Bus
}

// connect attaches to the headset at address. autoStart overrides the
// configured auto-start of sensors. On error nothing stays attached.
func (a *app) connect(ctx context.Context, address string, autoStart bool) (*link, error) {
	bus, err := events.NewBus(a.logger, a.cfg.BusOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}

	opts := a.cfg.SessionOptions()
	opts.Engine.AutoStart = opts.Engine.AutoStart && autoStart

	central := goble.NewCentral(a.logger, a.cfg.AdapterOptions())
	manager := session.NewManager(central, bus, a.logger, opts)

	cctx, cancel := context.WithTimeout(ctx, a.cfg.DeviceTimeout)
	defer cancel()

	handle := device.DeviceHandle{ID: address, Address: address}
	engine, err := manager.Connect(cctx, handle)
	if err != nil {
		if engine != nil {
			_ = manager.Disconnect(context.Background())
		}
		bus.Close()
		return nil, err
	}
	return &link{manager: manager, engine: engine, bus: bus}, nil
}

// Close detaches the headset and stops event delivery.
func (l *link) Close() error {
	err := l.manager.Disconnect(context.Background())
	l.bus.Close()
	if errors.Is(err, headset.ErrAlreadyDetached) {
		return nil
	}
	return err
}
