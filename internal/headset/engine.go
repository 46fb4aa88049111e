package headset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/ihslink/internal/auth"
	"github.com/srg/ihslink/internal/bledb"
	"github.com/srg/ihslink/internal/device"
	"github.com/srg/ihslink/internal/events"
	"github.com/srg/ihslink/internal/sensor"
)

// State is the engine lifecycle state.
type State int

const (
	Detached State = iota
	Attaching
	AttachedDisconnected
	AttachedConnected
	AuthenticationFailed
)

func (s State) String() string {
	switch s {
	case Detached:
		return "Detached"
	case Attaching:
		return "Attaching"
	case AttachedDisconnected:
		return "AttachedDisconnected"
	case AttachedConnected:
		return "AttachedConnected"
	case AuthenticationFailed:
		return "AuthenticationFailed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	DefaultAutoStartSensors    = sensor.Gyro | sensor.Accelerometer | sensor.Gps
	DefaultCalibrationAttempts = 5
	DefaultCalibrationDelay    = 500 * time.Millisecond
)

// Options tunes an Engine.
type Options struct {
	// AutoStart starts AutoStartSensors after every successful handshake.
	AutoStart        bool
	AutoStartSensors sensor.Sensors

	CalibrationAttempts int
	CalibrationDelay    time.Duration
}

// DefaultOptions returns options with auto-start of the default sensors.
func DefaultOptions() Options {
	return Options{
		AutoStart:           true,
		AutoStartSensors:    DefaultAutoStartSensors,
		CalibrationAttempts: DefaultCalibrationAttempts,
		CalibrationDelay:    DefaultCalibrationDelay,
	}
}

// profile holds the characteristic handles of one attached session. Optional
// entries are nil when the headset does not expose them.
type profile struct {
	combo device.Characteristic
	acc   device.Characteristic
	geo   device.Characteristic

	nonce     device.Characteristic
	key       device.Characteristic
	mag       device.Characteristic
	magCal    device.Characteristic
	magParams device.Characteristic

	info    device.Service
	battery device.Service
}

// Engine drives one headset through attach, authentication, subscription and
// detach.
//
// Attach and Detach are single-caller operations. Connection status changes
// arrive on the platform's goroutine and are serialized with Authenticate and
// Detach by statusMu. Failures inside status processing have no caller and
// are published as ConnectionFailed events.
type Engine struct {
	opener    device.Opener
	handle    device.DeviceHandle
	publisher events.Publisher
	logger    *logrus.Logger
	opts      Options

	mu            sync.Mutex
	state         State
	peripheral    device.Peripheral
	profile       *profile
	stopWatch     func()
	authenticated bool
	lastAuthErr   error

	statusMu sync.Mutex

	// live gates notification handlers so late callbacks after a disconnect
	// or detach are dropped.
	live atomic.Bool

	subs     *SubscriptionManager
	readings readingStore
}

// New creates a detached engine for the given headset.
func New(opener device.Opener, handle device.DeviceHandle, publisher events.Publisher, logger *logrus.Logger, opts Options) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	if publisher == nil {
		publisher = events.Discard
	}
	if opts.CalibrationAttempts <= 0 {
		opts.CalibrationAttempts = DefaultCalibrationAttempts
	}
	if opts.CalibrationDelay <= 0 {
		opts.CalibrationDelay = DefaultCalibrationDelay
	}
	return &Engine{
		opener:    opener,
		handle:    handle,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
		subs:      NewSubscriptionManager(publisher, logger),
	}
}

// Attach opens the headset and resolves its GATT profile.
func (e *Engine) Attach(ctx context.Context) error {
	e.mu.Lock()
	if e.state != Detached {
		state := e.state
		e.mu.Unlock()
		return newError(CodeAlreadyAttached, state.String(), nil)
	}
	e.state = Attaching
	e.mu.Unlock()

	log := e.logger.WithFields(logrus.Fields{
		"address": e.handle.Address,
		"name":    e.handle.Name,
	})
	log.Info("Attaching to headset...")

	p, err := e.opener.Open(ctx, e.handle)
	if err != nil {
		e.setState(Detached)
		log.WithField("error", err).Error("Failed to open headset")
		return newError(CodeAttachFailed, "open", err)
	}

	prof, err := e.resolveProfile(ctx, p)
	if err != nil {
		if closeErr := p.Close(); closeErr != nil {
			log.WithField("error", closeErr).Warn("Failed to close headset after attach failure")
		}
		e.setState(Detached)
		log.WithField("error", err).Error("Failed to resolve headset profile")
		return newError(CodeAttachFailed, "resolve profile", err)
	}

	e.bindSensors(prof)

	e.mu.Lock()
	e.peripheral = p
	e.profile = prof
	e.state = AttachedDisconnected
	e.mu.Unlock()

	stop := p.WatchConnectionStatus(func(s device.ConnectionStatus) {
		e.processConnectionStatus(context.Background(), s)
	})
	e.mu.Lock()
	e.stopWatch = stop
	e.mu.Unlock()

	log.WithField("sensors", e.subs.Available()).Info("Attached to headset")

	if p.ConnectionStatus() == device.StatusConnected {
		e.processConnectionStatus(ctx, device.StatusConnected)
	}
	return nil
}

func (e *Engine) resolveProfile(ctx context.Context, p device.Peripheral) (*profile, error) {
	imu, err := p.ResolveService(ctx, bledb.IMUService)
	if err != nil {
		return nil, err
	}
	gps, err := p.ResolveService(ctx, bledb.GPSService)
	if err != nil {
		return nil, err
	}

	prof := &profile{}
	if prof.combo, err = imu.GetCharacteristic(bledb.ComboHprChar); err != nil {
		return nil, err
	}
	if prof.acc, err = imu.GetCharacteristic(bledb.AccVectorChar); err != nil {
		return nil, err
	}
	if prof.geo, err = gps.GetCharacteristic(bledb.GPSAllInOne); err != nil {
		return nil, err
	}

	prof.mag = e.optionalChar(imu, bledb.MagVectorChar)
	prof.magCal = e.optionalChar(imu, bledb.MagCalibrationChar)
	prof.magParams = e.optionalChar(imu, bledb.MagParamsChar)

	if system := e.optionalService(ctx, p, bledb.SystemService); system != nil {
		prof.nonce = e.optionalChar(system, bledb.NonceChar)
		prof.key = e.optionalChar(system, bledb.KeyChar)
	}
	prof.info = e.optionalService(ctx, p, bledb.DeviceInfoService)
	prof.battery = e.optionalService(ctx, p, bledb.BatteryService)
	return prof, nil
}

func (e *Engine) optionalService(ctx context.Context, p device.Peripheral, uuid string) device.Service {
	svc, err := p.ResolveService(ctx, uuid)
	if err != nil {
		if !isNotFound(err) {
			e.logger.WithFields(logrus.Fields{
				"service": uuid,
				"error":   err,
			}).Warn("Failed to resolve optional service")
		}
		return nil
	}
	return svc
}

func (e *Engine) optionalChar(svc device.Service, uuid string) device.Characteristic {
	c, err := svc.GetCharacteristic(uuid)
	if err != nil {
		e.logger.WithField("characteristic", uuid).Debug("Optional characteristic not present")
		return nil
	}
	return c
}

func (e *Engine) bindSensors(prof *profile) {
	e.subs.Bind(sensor.Gyro, prof.combo, e.onComboHpr)
	e.subs.Bind(sensor.Accelerometer, prof.acc, e.onAccelerometer)
	e.subs.Bind(sensor.Gps, prof.geo, e.onGeoFix)
	if prof.mag != nil && prof.magCal != nil {
		e.subs.Bind(sensor.Magnetometer, prof.mag, e.onMagnetic)
		e.subs.Bind(sensor.Magnetometer, prof.magCal, e.onMagneticCalibration)
	}
}

func (e *Engine) processConnectionStatus(ctx context.Context, status device.ConnectionStatus) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()

	state := e.State()
	log := e.logger.WithFields(logrus.Fields{
		"address": e.handle.Address,
		"status":  status,
		"state":   state,
	})

	switch status {
	case device.StatusConnected:
		if state != AttachedDisconnected {
			log.Debug("Ignoring connected status")
			return
		}
		e.setState(AttachedConnected)
		e.live.Store(true)
		log.Info("Headset connected")
		e.publisher.Publish(events.NewConnectionChanged(true))

		if err := e.authenticate(ctx); err != nil {
			e.publisher.Publish(events.NewConnectionFailed(err))
			return
		}
		if err := e.autoStart(ctx); err != nil {
			log.WithField("error", err).Error("Failed to start sensors")
			e.publisher.Publish(events.NewConnectionFailed(err))
		}

	case device.StatusDisconnected:
		if state != AttachedConnected && state != AuthenticationFailed {
			log.Debug("Ignoring disconnected status")
			return
		}
		e.live.Store(false)
		e.mu.Lock()
		e.state = AttachedDisconnected
		e.authenticated = false
		e.mu.Unlock()

		if err := e.subs.ReleaseAll(ctx); err != nil {
			log.WithField("error", err).Warn("Failed to unsubscribe after disconnect")
		}
		log.Info("Headset disconnected")
		e.publisher.Publish(events.NewConnectionChanged(false))
	}
}

// authenticate runs the handshake. Callers hold statusMu.
func (e *Engine) authenticate(ctx context.Context) error {
	e.mu.Lock()
	prof := e.profile
	e.mu.Unlock()
	if prof == nil {
		return newError(CodeNotConnected, "authenticate", nil)
	}

	nonce, err := auth.Handshake(ctx, prof.nonce, prof.key)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.authenticated = false
		e.lastAuthErr = newError(CodeAuthenticateSubscribeFailed, "handshake", err)
		e.logger.WithFields(logrus.Fields{
			"address": e.handle.Address,
			"error":   err,
		}).Error("Authentication failed")
		return e.lastAuthErr
	}
	e.authenticated = true
	e.lastAuthErr = nil
	e.logger.WithFields(logrus.Fields{
		"address": e.handle.Address,
		"nonce":   fmt.Sprintf("%#08x", nonce),
	}).Info("Headset authenticated")
	return nil
}

// autoStart subscribes the configured auto-start sensors plus whatever was
// requested before the link dropped.
func (e *Engine) autoStart(ctx context.Context) error {
	mask := e.subs.Wanted()
	if e.opts.AutoStart {
		mask |= e.opts.AutoStartSensors
	}
	if mask == sensor.None {
		return nil
	}
	return e.subs.Start(ctx, mask)
}

// Authenticate retries the handshake on a connected headset. On success an
// engine in AuthenticationFailed returns to AttachedConnected and auto-start
// runs, restoring any previously requested sensors.
func (e *Engine) Authenticate(ctx context.Context) error {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()

	state := e.State()
	if state != AttachedConnected && state != AuthenticationFailed {
		return newError(CodeNotConnected, state.String(), nil)
	}
	if err := e.authenticate(ctx); err != nil {
		return err
	}
	if state == AuthenticationFailed {
		e.setState(AttachedConnected)
	}
	return e.autoStart(ctx)
}

// MarkAuthenticationFailed records that authentication retries are exhausted.
// The headset stays attached so a later Authenticate can recover.
func (e *Engine) MarkAuthenticationFailed(err error) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()

	e.mu.Lock()
	if e.state != AttachedConnected {
		e.mu.Unlock()
		return
	}
	e.state = AuthenticationFailed
	e.mu.Unlock()

	e.logger.WithFields(logrus.Fields{
		"address": e.handle.Address,
		"error":   err,
	}).Error("Giving up on authentication")
	e.publisher.Publish(events.NewAuthenticationFailed(err))
}

// Detach unsubscribes, stops watching the connection status, drops every
// characteristic reference and closes the peripheral. An unsubscribe failure
// is returned after the detach completes.
func (e *Engine) Detach(ctx context.Context) error {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()

	e.mu.Lock()
	if e.state == Detached {
		e.mu.Unlock()
		return newError(CodeAlreadyDetached, "", nil)
	}
	wasConnected := e.state == AttachedConnected || e.state == AuthenticationFailed
	p, stop := e.peripheral, e.stopWatch
	e.mu.Unlock()

	e.live.Store(false)
	releaseErr := e.subs.ReleaseAll(ctx)
	if stop != nil {
		stop()
	}
	e.subs.Unbind()
	e.readings.reset()

	if p != nil {
		if err := p.Close(); err != nil {
			e.logger.WithField("error", err).Warn("Failed to close headset")
		}
	}

	e.mu.Lock()
	e.state = Detached
	e.peripheral = nil
	e.profile = nil
	e.stopWatch = nil
	e.authenticated = false
	e.lastAuthErr = nil
	e.mu.Unlock()

	if wasConnected {
		e.publisher.Publish(events.NewConnectionChanged(false))
	}
	e.logger.WithField("address", e.handle.Address).Info("Detached from headset")
	return releaseErr
}

// Calibrate captures the latest raw orientation as the reference. It polls
// up to CalibrationAttempts times; no reading within the budget is not an
// error and leaves the offsets unchanged.
func (e *Engine) Calibrate(ctx context.Context) (bool, error) {
	if !e.attached() {
		return false, newError(CodeNotConnected, "calibrate", nil)
	}
	for attempt := 1; attempt <= e.opts.CalibrationAttempts; attempt++ {
		if ref, ok := e.readings.captureOffsets(); ok {
			e.logger.WithFields(logrus.Fields{
				"yaw":     ref.Yaw,
				"pitch":   ref.Pitch,
				"roll":    ref.Roll,
				"attempt": attempt,
			}).Info("Calibrated")
			e.publisher.Publish(events.NewCalibrated(ref))
			return true, nil
		}
		if attempt == e.opts.CalibrationAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(e.opts.CalibrationDelay):
		}
	}
	e.logger.Warn("No orientation reading available, calibration skipped")
	return false, nil
}

// StartListening subscribes to the given sensors.
func (e *Engine) StartListening(ctx context.Context, mask sensor.Sensors) error {
	if e.State() != AttachedConnected {
		return newError(CodeNotConnected, "start listening", nil)
	}
	return e.subs.Start(ctx, mask)
}

// StopListening unsubscribes from the given sensors.
func (e *Engine) StopListening(ctx context.Context, mask sensor.Sensors) error {
	if !e.attached() {
		return newError(CodeNotConnected, "stop listening", nil)
	}
	return e.subs.Stop(ctx, mask)
}

// ReadOnce reads the given sensors once, skipping any that are streaming.
func (e *Engine) ReadOnce(ctx context.Context, mask sensor.Sensors) SensorReadResult {
	if e.State() != AttachedConnected {
		return SensorReadResult{
			SensorsFailed: mask,
			Err:           newError(CodeNotConnected, "read once", nil),
		}
	}
	return e.subs.ReadOnce(ctx, mask)
}

// ReadDeviceInfo reads the optional device-information and battery services.
func (e *Engine) ReadDeviceInfo(ctx context.Context) (DeviceInfo, error) {
	e.mu.Lock()
	prof := e.profile
	e.mu.Unlock()
	if prof == nil {
		return DeviceInfo{}, newError(CodeNotConnected, "device info", nil)
	}
	return readDeviceInfo(ctx, prof.info, prof.battery, e.logger), nil
}

// ReadMagneticParams reads the magnetometer field intensity, inclination and
// declination.
func (e *Engine) ReadMagneticParams(ctx context.Context) (sensor.MagneticParams, error) {
	e.mu.Lock()
	prof := e.profile
	e.mu.Unlock()
	if prof == nil {
		return sensor.MagneticParams{}, newError(CodeNotConnected, "magnetometer parameters", nil)
	}
	if prof.magParams == nil {
		return sensor.MagneticParams{}, &device.NotFoundError{
			Resource: "characteristic",
			UUIDs:    []string{bledb.IMUService, bledb.MagParamsChar},
		}
	}
	data, err := prof.magParams.Read(ctx, device.Uncached)
	if err != nil {
		return sensor.MagneticParams{}, err
	}
	params, ok := sensor.DecodeMagneticParams(data)
	if !ok {
		return sensor.MagneticParams{}, fmt.Errorf("magnetometer parameters: short frame of %d bytes", len(data))
	}
	return params, nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Engine) attached() bool {
	s := e.State()
	return s != Detached && s != Attaching
}

// Authenticated reports whether the last handshake on this connection succeeded.
func (e *Engine) Authenticated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.authenticated
}

// LastAuthError returns the most recent handshake failure, or nil.
func (e *Engine) LastAuthError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastAuthErr
}

// SensorsListenedTo returns the sensors with notifications enabled.
func (e *Engine) SensorsListenedTo() sensor.Sensors {
	return e.subs.Mask()
}

// AvailableSensors reports the sensors the attached headset exposes.
func (e *Engine) AvailableSensors() sensor.Sensors {
	return e.subs.Available()
}

// CurrentReading returns a snapshot copy of the latest readings.
func (e *Engine) CurrentReading() Reading {
	return e.readings.snapshot()
}

// Offsets returns the orientation offsets applied to published readings.
func (e *Engine) Offsets() Offsets {
	return e.readings.currentOffsets()
}

// DeviceHandle returns the handle the engine was created for.
func (e *Engine) DeviceHandle() device.DeviceHandle {
	return e.handle
}

// ----------------------------
// Notification handlers
// ----------------------------

func (e *Engine) onComboHpr(data []byte, ts time.Time) {
	if !e.live.Load() {
		return
	}
	frame, ok := sensor.DecodeComboHpr(data, ts)
	if !ok {
		return
	}
	o, err := e.readings.updateOrientation(frame)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"fused_heading": frame.FusedHeading,
			"pitch":         frame.Pitch,
			"roll":          frame.Roll,
			"error":         err,
		}).Error("Dropping orientation frame")
		return
	}
	e.publisher.Publish(events.NewOrientationChanged(o))
	e.publisher.Publish(events.NewCompassChanged(o.CompassHeading))
}

func (e *Engine) onAccelerometer(data []byte, ts time.Time) {
	if !e.live.Load() {
		return
	}
	a, ok := sensor.DecodeAccelerometer(data, ts)
	if !ok {
		return
	}
	cur, prev := e.readings.updateAcceleration(a)
	e.publisher.Publish(events.NewAccelerometerChanged(cur, prev))
}

func (e *Engine) onGeoFix(data []byte, ts time.Time) {
	if !e.live.Load() {
		return
	}
	fix, ok := sensor.DecodeGeoFix(data, ts)
	if !ok {
		return
	}
	e.readings.updateGeoFix(fix)
	e.publisher.Publish(events.NewGeoFixChanged(fix))
}

func (e *Engine) onMagnetic(data []byte, ts time.Time) {
	if !e.live.Load() {
		return
	}
	v, ok := sensor.DecodeMagneticVector(data, ts)
	if !ok {
		return
	}
	e.readings.updateMagnetic(v)
	e.publisher.Publish(events.NewMagnetometerChanged(v))
}

func (e *Engine) onMagneticCalibration(data []byte, ts time.Time) {
	if !e.live.Load() {
		return
	}
	c, ok := sensor.DecodeMagneticCalibration(data, ts)
	if !ok {
		return
	}
	e.readings.updateMagneticCalibration(c)
	e.publisher.Publish(events.NewMagnetometerCalibrationChanged(c))
}

// IsAuthenticationError reports whether err came from the handshake.
func IsAuthenticationError(err error) bool {
	return errors.Is(err, ErrAuthenticateSubscribeFailed)
}
