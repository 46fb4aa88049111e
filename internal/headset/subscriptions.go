package headset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/ihslink/internal/device"
	"github.com/srg/ihslink/internal/events"
	"github.com/srg/ihslink/internal/sensor"
)

// SensorReadResult is the outcome of a single-shot read.
type SensorReadResult struct {
	Success       bool
	SensorsFailed sensor.Sensors
	Err           error
}

type binding struct {
	char    device.Characteristic
	handler device.ValueHandler
	remove  func()
}

// SubscriptionManager tracks which sensor streams are enabled.
//
// A sensor flag maps to one or more characteristics (Magnetometer has two);
// the flag is set only when every characteristic behind it was enabled.
// Local value handlers are registered at most once per characteristic and are
// kept across Stop so stop/start cycles never duplicate them.
//
// The manager also remembers which sensors were requested. ReleaseAll keeps
// that request so a reconnect can restore the same streams.
type SubscriptionManager struct {
	logger    *logrus.Logger
	publisher events.Publisher

	mu       sync.Mutex
	bindings map[sensor.Sensors][]*binding
	mask     sensor.Sensors
	wanted   sensor.Sensors

	starting atomic.Bool
}

// NewSubscriptionManager creates a manager with no bindings. A nil publisher
// discards events.
func NewSubscriptionManager(publisher events.Publisher, logger *logrus.Logger) *SubscriptionManager {
	if logger == nil {
		logger = logrus.New()
	}
	if publisher == nil {
		publisher = events.Discard
	}
	return &SubscriptionManager{
		logger:    logger,
		publisher: publisher,
		bindings:  make(map[sensor.Sensors][]*binding),
	}
}

// Bind associates a characteristic and its decode handler with a sensor flag.
func (m *SubscriptionManager) Bind(flag sensor.Sensors, char device.Characteristic, handler device.ValueHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[flag] = append(m.bindings[flag], &binding{char: char, handler: handler})
}

// Unbind removes every handler and forgets all characteristics. The mask and
// the requested sensors are cleared without publishing.
func (m *SubscriptionManager) Unbind() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, list := range m.bindings {
		for _, b := range list {
			if b.remove != nil {
				b.remove()
				b.remove = nil
			}
		}
	}
	m.bindings = make(map[sensor.Sensors][]*binding)
	m.mask = sensor.None
	m.wanted = sensor.None
}

// Mask returns the currently subscribed sensors.
func (m *SubscriptionManager) Mask() sensor.Sensors {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mask
}

// Wanted returns the sensors requested by Start and not yet stopped.
func (m *SubscriptionManager) Wanted() sensor.Sensors {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wanted
}

// Available reports the sensors that have bound characteristics.
func (m *SubscriptionManager) Available() sensor.Sensors {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s sensor.Sensors
	for flag, list := range m.bindings {
		if len(list) > 0 {
			s |= flag
		}
	}
	return s
}

func (m *SubscriptionManager) bound(flag sensor.Sensors) []*binding {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.bindings[flag]
	out := make([]*binding, len(list))
	copy(out, list)
	return out
}

func (m *SubscriptionManager) register(b *binding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.remove == nil {
		b.remove = b.char.OnValueChanged(b.handler)
	}
}

// Start enables notifications for every flag in mask that is not already
// subscribed. A call made while another Start is in flight returns
// immediately. SensorsListenedToChanged is published once per completed call.
func (m *SubscriptionManager) Start(ctx context.Context, mask sensor.Sensors) error {
	if !m.starting.CompareAndSwap(false, true) {
		m.logger.WithField("sensors", mask).Debug("Start already in progress, ignoring")
		return nil
	}
	defer m.starting.Store(false)

	m.mu.Lock()
	m.wanted |= mask
	current := m.mask
	m.mu.Unlock()

	var added sensor.Sensors
	var errs []error
	for _, flag := range mask.Flags() {
		if current.Has(flag) {
			continue
		}
		list := m.bound(flag)
		if len(list) == 0 {
			errs = append(errs, fmt.Errorf("%s: %w", flag, &device.NotFoundError{Resource: "characteristic"}))
			continue
		}

		ok := true
		for _, b := range list {
			m.register(b)
			if err := b.char.SetNotify(ctx, true); err != nil {
				ok = false
				errs = append(errs, fmt.Errorf("%s %s: %w", flag, b.char.UUID(), err))
				continue
			}
			m.logger.WithFields(logrus.Fields{
				"sensor":         flag,
				"characteristic": b.char.UUID(),
			}).Debug("Notifications enabled")
		}
		if ok {
			added |= flag
		}
	}

	m.mu.Lock()
	m.mask |= added
	updated := m.mask
	m.mu.Unlock()

	m.publisher.Publish(events.NewSensorsListenedToChanged(updated))

	if len(errs) > 0 {
		return newError(CodeSubscribeFailed, fmt.Sprintf("start %s", mask), errors.Join(errs...))
	}
	return nil
}

// Stop disables notifications for every flag in mask that is subscribed.
// Handlers stay registered.
func (m *SubscriptionManager) Stop(ctx context.Context, mask sensor.Sensors) error {
	m.mu.Lock()
	m.wanted &^= mask
	current := m.mask
	m.mu.Unlock()

	var removed sensor.Sensors
	var errs []error
	for _, flag := range (mask & current).Flags() {
		ok := true
		for _, b := range m.bound(flag) {
			if err := b.char.SetNotify(ctx, false); err != nil {
				ok = false
				errs = append(errs, fmt.Errorf("%s %s: %w", flag, b.char.UUID(), err))
			}
		}
		if ok {
			removed |= flag
		}
	}

	m.mu.Lock()
	m.mask &^= removed
	updated := m.mask
	m.mu.Unlock()

	m.publisher.Publish(events.NewSensorsListenedToChanged(updated))

	if len(errs) > 0 {
		return newError(CodeUnsubscribeFailed, fmt.Sprintf("stop %s", mask), errors.Join(errs...))
	}
	return nil
}

// ReleaseAll disables notifications for every subscribed flag and removes
// every local handler. Failures are collected but do not stop the release.
// The requested sensors are kept; see Wanted.
func (m *SubscriptionManager) ReleaseAll(ctx context.Context) error {
	m.mu.Lock()
	previous := m.mask
	var active []*binding
	for flag, list := range m.bindings {
		if previous.Has(flag) {
			active = append(active, list...)
		}
	}
	m.mu.Unlock()

	var errs []error
	for _, b := range active {
		if err := b.char.SetNotify(ctx, false); err != nil {
			m.logger.WithFields(logrus.Fields{
				"characteristic": b.char.UUID(),
				"error":          err,
			}).Warn("Failed to disable notifications")
			errs = append(errs, fmt.Errorf("%s: %w", b.char.UUID(), err))
		}
	}

	m.mu.Lock()
	for _, list := range m.bindings {
		for _, b := range list {
			if b.remove != nil {
				b.remove()
				b.remove = nil
			}
		}
	}
	m.mask = sensor.None
	m.mu.Unlock()

	if previous != sensor.None {
		m.publisher.Publish(events.NewSensorsListenedToChanged(sensor.None))
	}
	if len(errs) > 0 {
		return newError(CodeUnsubscribeFailed, "release", errors.Join(errs...))
	}
	return nil
}

// ReadOnce reads every flag in mask that is not streaming and feeds the value
// through its handler. Successful reads are applied even when others fail.
func (m *SubscriptionManager) ReadOnce(ctx context.Context, mask sensor.Sensors) SensorReadResult {
	current := m.Mask()
	var failed sensor.Sensors
	var errs []error
	for _, flag := range mask.Flags() {
		if current.Has(flag) {
			continue
		}
		list := m.bound(flag)
		if len(list) == 0 {
			failed |= flag
			errs = append(errs, fmt.Errorf("%s: %w", flag, &device.NotFoundError{Resource: "characteristic"}))
			continue
		}
		for _, b := range list {
			data, err := b.char.Read(ctx, device.Uncached)
			if err != nil {
				failed |= flag
				errs = append(errs, fmt.Errorf("%s %s: %w", flag, b.char.UUID(), err))
				continue
			}
			b.handler(data, time.Now())
		}
	}
	return SensorReadResult{
		Success:       failed == sensor.None,
		SensorsFailed: failed,
		Err:           errors.Join(errs...),
	}
}
