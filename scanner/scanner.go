// Package scanner discovers headsets by advertisement and reports them as
// they appear.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cornelk/hashmap"
	blelib "github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/ihslink/internal/bledb"
	"github.com/srg/ihslink/internal/device"
	goble "github.com/srg/ihslink/internal/device/go-ble"
	"github.com/srg/ihslink/internal/events"
)

// ProgressCallback is called when the scan phase changes
type ProgressCallback func(phase string)

// DeviceEventType marks if the device was newly discovered or updated
type DeviceEventType int

const (
	EventNew DeviceEventType = iota
	EventUpdated
)

type DeviceEvent struct {
	Type   DeviceEventType
	Device Discovered
}

// Discovered is the latest advertisement state of one peripheral.
type Discovered struct {
	device.DeviceHandle
	Connectable bool      `json:"connectable"`
	TxPower     int       `json:"tx_power"`
	LastSeen    time.Time `json:"last_seen"`
}

// ScanOptions configures scanning behavior
type ScanOptions struct {
	Duration        time.Duration
	DuplicateFilter bool
	// ServiceUUIDs keeps peripherals advertising any of these. Empty keeps all.
	ServiceUUIDs []string
	AllowList    []string
	BlockList    []string
}

// DefaultScanOptions looks for headsets for ten seconds.
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Duration:        10 * time.Second,
		DuplicateFilter: true,
		ServiceUUIDs:    []string{bledb.IMUService},
	}
}

// Scanner handles BLE device discovery
type Scanner struct {
	devices *hashmap.Map[string, Discovered]
	events  *events.Ring[DeviceEvent]
	logger  *logrus.Logger
	opts    *ScanOptions
}

func NewScanner(logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{
		devices: hashmap.New[string, Discovered](),
		events:  events.NewRing[DeviceEvent](100),
		logger:  logger,
	}
}

// Scan runs one discovery window and returns what it saw, strongest signal
// first. Cancelling ctx ends the window early without an error.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions, progress ProgressCallback) ([]Discovered, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	if progress == nil {
		progress = func(string) {}
	}
	s.devices = hashmap.New[string, Discovered]()
	s.opts = opts

	s.logger.WithField("duration", opts.Duration).Info("Starting BLE scan...")
	progress("Scanning")

	dev, err := goble.DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", goble.NormalizeError(err))
	}

	sctx := ctx
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	err = dev.Scan(sctx, !opts.DuplicateFilter, s.handleAdvertisement)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", goble.NormalizeError(err))
	}

	s.logger.WithField("device_count", s.devices.Len()).Info("BLE scan completed")
	progress("Processing results")

	found := make([]Discovered, 0, s.devices.Len())
	s.devices.Range(func(_ string, d Discovered) bool {
		found = append(found, d)
		return true
	})
	sort.Slice(found, func(i, j int) bool {
		if found[i].RSSI != found[j].RSSI {
			return found[i].RSSI > found[j].RSSI
		}
		return found[i].Address < found[j].Address
	})
	return found, nil
}

func (s *Scanner) handleAdvertisement(a blelib.Advertisement) {
	adv := goble.NewBLEAdvertisement(a)
	addr := adv.Addr()

	prev, existing := s.devices.Get(addr)
	if !existing && !s.include(adv) {
		return
	}

	d := Discovered{
		DeviceHandle: goble.HandleFromAdvertisement(adv),
		Connectable:  adv.Connectable(),
		TxPower:      adv.TxPowerLevel(),
		LastSeen:     time.Now(),
	}
	if d.Name == "" {
		d.Name = prev.Name
	}
	if len(d.Services) == 0 {
		d.Services = prev.Services
	}
	s.devices.Set(addr, d)

	event := DeviceEvent{Type: EventUpdated, Device: d}
	if !existing {
		event.Type = EventNew
		s.logger.WithFields(logrus.Fields{
			"device":  d.DisplayName(),
			"address": d.Address,
			"rssi":    d.RSSI,
		}).Info("Discovered new device")
	}
	s.events.Push(event)
}

// include applies the block, allow and service filters to a first sighting.
func (s *Scanner) include(adv device.Advertisement) bool {
	addr := adv.Addr()
	for _, blocked := range s.opts.BlockList {
		if strings.EqualFold(addr, blocked) {
			return false
		}
	}

	if len(s.opts.AllowList) > 0 {
		allowed := false
		for _, a := range s.opts.AllowList {
			if strings.EqualFold(addr, a) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	if len(s.opts.ServiceUUIDs) == 0 {
		return true
	}
	for _, want := range s.opts.ServiceUUIDs {
		if goble.Advertises(adv, want) {
			return true
		}
	}
	return false
}

// Events returns discovery events. Slow readers lose the oldest events.
func (s *Scanner) Events() <-chan DeviceEvent {
	return s.events.C()
}
