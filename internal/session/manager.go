// Package session is the consumer-side layer over headset.Engine: discovery,
// connect with bounded authentication retries, and disconnect.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/ihslink/internal/bledb"
	"github.com/srg/ihslink/internal/device"
	"github.com/srg/ihslink/internal/events"
	"github.com/srg/ihslink/internal/headset"
)

// ErrAuthenticationFailed is returned by Connect when every handshake attempt
// failed. The headset stays attached.
var ErrAuthenticationFailed = errors.New("authentication failed")

const (
	DefaultAuthRetries = 5
	DefaultReadTimeout = 5 * time.Second
)

// Options configures a Manager.
type Options struct {
	// AuthRetries is the total number of handshake attempts, including the
	// one the engine makes when the link comes up.
	AuthRetries int
	ReadTimeout time.Duration
	Engine      headset.Options
}

// DefaultOptions returns the manager defaults.
func DefaultOptions() Options {
	return Options{
		AuthRetries: DefaultAuthRetries,
		ReadTimeout: DefaultReadTimeout,
		Engine:      headset.DefaultOptions(),
	}
}

// Manager owns at most one attached headset.
type Manager struct {
	central   device.Central
	publisher events.Publisher
	logger    *logrus.Logger
	opts      Options

	mu     sync.Mutex
	engine *headset.Engine
	info   headset.DeviceInfo
}

// NewManager creates a manager that discovers and attaches headsets through central.
func NewManager(central device.Central, publisher events.Publisher, logger *logrus.Logger, opts Options) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	if publisher == nil {
		publisher = events.Discard
	}
	if opts.AuthRetries <= 0 {
		opts.AuthRetries = DefaultAuthRetries
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	return &Manager{
		central:   central,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
	}
}

// Discover lists peripherals advertising the IMU service.
func (m *Manager) Discover(ctx context.Context) ([]device.DeviceHandle, error) {
	m.logger.Debug("Discovering headsets...")
	handles, err := m.central.Discover(ctx, bledb.IMUService)
	if err != nil {
		m.logger.WithField("error", err).Error("Headset discovery failed")
		return nil, err
	}
	m.logger.WithField("count", len(handles)).Info("Headset discovery finished")
	return handles, nil
}

// Connect attaches to the headset, reads its device information and makes
// sure the link is authenticated. An ErrAuthenticationFailed result still
// leaves the engine attached, so the caller can retry or Disconnect.
func (m *Manager) Connect(ctx context.Context, handle device.DeviceHandle) (*headset.Engine, error) {
	m.mu.Lock()
	if m.engine != nil {
		current := m.engine.DeviceHandle()
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", headset.ErrAlreadyAttached, current.DisplayName())
	}
	e := headset.New(m.central, handle, m.publisher, m.logger, m.opts.Engine)
	m.engine = e
	m.mu.Unlock()

	if err := e.Attach(ctx); err != nil {
		m.mu.Lock()
		m.engine = nil
		m.mu.Unlock()
		return nil, err
	}

	m.readDeviceInfo(ctx, e)

	if err := m.ensureAuthenticated(ctx, e); err != nil {
		return e, err
	}
	return e, nil
}

func (m *Manager) readDeviceInfo(ctx context.Context, e *headset.Engine) {
	rctx, cancel := context.WithTimeout(ctx, m.opts.ReadTimeout)
	defer cancel()

	info, err := e.ReadDeviceInfo(rctx)
	if err != nil {
		m.logger.WithField("error", err).Warn("Failed to read device information")
		return
	}
	m.mu.Lock()
	m.info = info
	m.mu.Unlock()
	m.logger.WithFields(logrus.Fields{
		"model":    info.Model,
		"firmware": info.Firmware,
		"battery":  info.BatteryLevel,
	}).Debug("Device information read")
}

func (m *Manager) ensureAuthenticated(ctx context.Context, e *headset.Engine) error {
	if e.State() != headset.AttachedConnected || e.Authenticated() {
		return nil
	}

	lastErr := e.LastAuthError()
	for attempt := 2; attempt <= m.opts.AuthRetries; attempt++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		m.logger.WithField("attempt", attempt).Debug("Retrying authentication...")
		err := e.Authenticate(ctx)
		if e.Authenticated() {
			// err, if any, is from sensor auto-start
			m.logger.WithField("attempt", attempt).Info("Authentication succeeded after retry")
			return err
		}
		lastErr = err
	}

	e.MarkAuthenticationFailed(lastErr)
	return fmt.Errorf("%w after %d attempts: %w", ErrAuthenticationFailed, m.opts.AuthRetries, lastErr)
}

// Disconnect detaches the current headset.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	e := m.engine
	m.engine = nil
	m.info = headset.DeviceInfo{}
	m.mu.Unlock()

	if e == nil {
		return headset.ErrAlreadyDetached
	}
	return e.Detach(ctx)
}

// Engine returns the attached engine or nil.
func (m *Manager) Engine() *headset.Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine
}

// DeviceInfo returns the information read during Connect.
func (m *Manager) DeviceInfo() headset.DeviceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}
