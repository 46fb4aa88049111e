package goble

import (
	"context"
	"errors"
	"sort"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/ihslink/internal/device"
)

// Central is the go-ble implementation of device.Central. Each Discover and
// Open call obtains its ble.Device from DeviceFactory.
type Central struct {
	logger *logrus.Logger
	opts   Options
}

func NewCentral(logger *logrus.Logger, opts Options) *Central {
	if logger == nil {
		logger = logrus.New()
	}
	return &Central{logger: logger, opts: opts.withDefaults()}
}

// Discover scans for peripherals advertising serviceUUID for
// Options.ScanTimeout, or until an earlier caller deadline. Reaching either
// deadline ends the scan normally; only cancelling ctx is an error. Results
// are ordered by signal strength.
func (c *Central) Discover(ctx context.Context, serviceUUID string) ([]device.DeviceHandle, error) {
	dev, err := newDevice()
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithTimeout(ctx, c.opts.ScanTimeout)
	defer cancel()

	found := hashmap.New[string, device.DeviceHandle]()
	c.logger.WithField("service_uuid", serviceUUID).Debug("Scanning for peripherals...")
	err = dev.Scan(sctx, false, func(a ble.Advertisement) {
		adv := NewBLEAdvertisement(a)
		if !Advertises(adv, serviceUUID) {
			return
		}
		h := HandleFromAdvertisement(adv)
		if prev, ok := found.Get(h.Address); ok && h.Name == "" {
			h.Name = prev.Name
		}
		found.Set(h.Address, h)
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return nil, NormalizeError(err)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil, ctx.Err()
	}

	handles := make([]device.DeviceHandle, 0, found.Len())
	found.Range(func(_ string, h device.DeviceHandle) bool {
		handles = append(handles, h)
		return true
	})
	sort.Slice(handles, func(i, j int) bool {
		if handles[i].RSSI != handles[j].RSSI {
			return handles[i].RSSI > handles[j].RSSI
		}
		return handles[i].Address < handles[j].Address
	})

	c.logger.WithField("count", len(handles)).Debug("Scan finished")
	return handles, nil
}

// Open connects to the peripheral and discovers its profile.
func (c *Central) Open(ctx context.Context, handle device.DeviceHandle) (device.Peripheral, error) {
	dev, err := newDevice()
	if err != nil {
		return nil, err
	}

	p := newPeripheral(dev, handle, c.logger, c.opts)
	if err := p.connect(ctx); err != nil {
		p.cancel()
		return nil, err
	}
	p.setStatus(device.StatusConnected)
	return p, nil
}
