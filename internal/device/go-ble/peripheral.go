package goble

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/ihslink/internal/bledb"
	"github.com/srg/ihslink/internal/device"
	"github.com/srg/ihslink/internal/groutine"
)

// Options configures the go-ble adapter.
type Options struct {
	ScanTimeout    time.Duration
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// Reconnect redials after a platform disconnect until Close.
	Reconnect           bool
	ReconnectBaseDelay  time.Duration
	ReconnectMaxBackoff time.Duration
}

func DefaultOptions() Options {
	return Options{
		ScanTimeout:         10 * time.Second,
		ConnectTimeout:      30 * time.Second,
		ReadTimeout:         DefaultReadTimeout,
		Reconnect:           true,
		ReconnectBaseDelay:  time.Second,
		ReconnectMaxBackoff: 30 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ScanTimeout <= 0 {
		o.ScanTimeout = d.ScanTimeout
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = d.ConnectTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = d.ReadTimeout
	}
	if o.ReconnectBaseDelay <= 0 {
		o.ReconnectBaseDelay = d.ReconnectBaseDelay
	}
	if o.ReconnectMaxBackoff < o.ReconnectBaseDelay {
		o.ReconnectMaxBackoff = o.ReconnectBaseDelay
	}
	return o
}

// BLEPeripheral is an opened go-ble connection implementing device.Peripheral.
type BLEPeripheral struct {
	logger *logrus.Logger
	opts   Options
	dev    ble.Device
	handle device.DeviceHandle

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	client   ble.Client
	services map[string]*BLEService
	closed   bool

	statusMu  sync.Mutex
	status    device.ConnectionStatus
	watchers  map[int]func(device.ConnectionStatus)
	nextWatch int
}

func newPeripheral(dev ble.Device, handle device.DeviceHandle, logger *logrus.Logger, opts Options) *BLEPeripheral {
	ctx, cancel := context.WithCancel(context.Background())
	return &BLEPeripheral{
		logger:   logger,
		opts:     opts,
		dev:      dev,
		handle:   handle,
		ctx:      ctx,
		cancel:   cancel,
		services: make(map[string]*BLEService),
		watchers: make(map[int]func(device.ConnectionStatus)),
	}
}

func (p *BLEPeripheral) Handle() device.DeviceHandle { return p.handle }

// connect dials the peripheral, discovers its profile and starts the
// disconnect monitor.
func (p *BLEPeripheral) connect(ctx context.Context) error {
	log := p.logger.WithField("address", p.handle.Address)

	dctx, cancel := context.WithTimeout(ctx, p.opts.ConnectTimeout)
	defer cancel()

	log.Debug("Dialing BLE device...")
	client, err := p.dev.Dial(dctx, ble.NewAddr(p.handle.Address))
	if err != nil {
		log.WithField("error", err).Error("Failed to dial BLE device")
		return fmt.Errorf("failed to connect to device with address %q: %w", p.handle.Address, NormalizeError(err))
	}

	log.Debug("Discovering services and characteristics...")
	profile, err := client.DiscoverProfile(true)
	if err != nil {
		log.WithField("error", err).Error("Failed to discover profile")
		if cerr := client.CancelConnection(); cerr != nil {
			log.WithField("cancel_error", cerr).Warn("Failed to cancel connection after profile discovery failure")
		}
		return fmt.Errorf("failed to discover profile: %w", NormalizeError(err))
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = client.CancelConnection()
		return device.ErrNotConnected
	}
	p.populate(profile)
	p.client = client
	p.mu.Unlock()

	p.monitor(client)

	log.WithField("services", len(profile.Services)).Info("BLE device connected")
	return nil
}

// populate must hold p.mu. Services and characteristics seen on the first
// connect are kept; later profiles only refresh their handles.
func (p *BLEPeripheral) populate(profile *ble.Profile) {
	first := len(p.services) == 0
	for _, bs := range profile.Services {
		raw := bs.UUID.String()
		id := device.NormalizeUUID(raw)

		svc, ok := p.services[id]
		if !ok {
			if !first {
				p.logger.WithField("service_uuid", id).Debug("Ignoring service that appeared after reconnect")
				continue
			}
			svc = &BLEService{
				uuid:      id,
				knownName: bledb.LookupService(raw),
				chars:     make(map[string]*BLECharacteristic),
			}
			p.services[id] = svc
		}

		for _, bc := range bs.Characteristics {
			cid := device.NormalizeUUID(bc.UUID.String())
			if c, ok := svc.chars[cid]; ok {
				c.refresh(bc)
				continue
			}
			if first {
				svc.chars[cid] = newCharacteristic(bc, p)
			}
		}
	}
}

func (p *BLEPeripheral) monitor(client ble.Client) {
	dc, ok := client.(interface{ Disconnected() <-chan struct{} })
	if !ok {
		p.logger.Debug("Client does not expose a disconnect channel, link loss will not be detected")
		return
	}
	groutine.Go(p.ctx, "ble-disconnect-monitor", func(ctx context.Context) {
		select {
		case <-dc.Disconnected():
			p.onDisconnected(client)
		case <-ctx.Done():
		}
	})
}

func (p *BLEPeripheral) onDisconnected(client ble.Client) {
	p.mu.Lock()
	if p.closed || p.client != client {
		p.mu.Unlock()
		return
	}
	p.client = nil
	p.mu.Unlock()

	p.logger.WithField("address", p.handle.Address).Warn("BLE device disconnected")
	p.setStatus(device.StatusDisconnected)

	if p.opts.Reconnect {
		groutine.Go(p.ctx, "ble-reconnect", p.reconnect)
	}
}

// reconnect redials with exponential backoff until it succeeds or the
// peripheral is closed.
func (p *BLEPeripheral) reconnect(ctx context.Context) {
	delay := p.opts.ReconnectBaseDelay
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		log := p.logger.WithFields(logrus.Fields{
			"address": p.handle.Address,
			"attempt": attempt,
		})
		log.Debug("Reconnecting...")

		if err := p.connect(ctx); err != nil {
			log.WithFields(logrus.Fields{
				"error":      err,
				"next_delay": delay * 2,
			}).Warn("Reconnect attempt failed")
			delay *= 2
			if delay > p.opts.ReconnectMaxBackoff {
				delay = p.opts.ReconnectMaxBackoff
			}
			continue
		}

		log.Info("BLE device reconnected")
		p.setStatus(device.StatusConnected)
		return
	}
}

func (p *BLEPeripheral) currentClient() (ble.Client, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.client == nil {
		return nil, device.ErrNotConnected
	}
	return p.client, nil
}

func (p *BLEPeripheral) ResolveService(_ context.Context, uuid string) (device.Service, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if svc, ok := p.services[device.NormalizeUUID(uuid)]; ok {
		return svc, nil
	}
	return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{uuid}}
}

func (p *BLEPeripheral) ConnectionStatus() device.ConnectionStatus {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	return p.status
}

func (p *BLEPeripheral) WatchConnectionStatus(fn func(device.ConnectionStatus)) (stop func()) {
	p.statusMu.Lock()
	id := p.nextWatch
	p.nextWatch++
	p.watchers[id] = fn
	p.statusMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.statusMu.Lock()
			delete(p.watchers, id)
			p.statusMu.Unlock()
		})
	}
}

// setStatus records s and notifies watchers outside the lock when it changed.
func (p *BLEPeripheral) setStatus(s device.ConnectionStatus) {
	p.statusMu.Lock()
	if p.status == s {
		p.statusMu.Unlock()
		return
	}
	p.status = s
	watchers := make([]func(device.ConnectionStatus), 0, len(p.watchers))
	for _, w := range p.watchers {
		watchers = append(watchers, w)
	}
	p.statusMu.Unlock()

	for _, w := range watchers {
		w(s)
	}
}

// Close cancels the connection and stops the monitor and reconnect loop.
func (p *BLEPeripheral) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	client := p.client
	p.client = nil
	p.mu.Unlock()

	p.cancel()

	var err error
	if client != nil {
		p.logger.WithField("address", p.handle.Address).Info("Disconnecting BLE device...")
		err = NormalizeError(client.CancelConnection())
	}
	p.setStatus(device.StatusDisconnected)
	return err
}
