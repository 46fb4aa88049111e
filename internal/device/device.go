package device

import (
	"context"
	"time"
)

// DeviceHandle is an opaque reference to a discovered peripheral.
//
//nolint:revive // stutter
type DeviceHandle struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Address  string   `json:"address"`
	RSSI     int      `json:"rssi"`
	Services []string `json:"services,omitempty"`
}

// DisplayName returns the advertised name or the address when the name is empty.
func (h DeviceHandle) DisplayName() string {
	if h.Name != "" {
		return h.Name
	}
	return h.Address
}

// ConnectionStatus is the platform-reported link status of a peripheral.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnected
)

func (s ConnectionStatus) String() string {
	if s == StatusConnected {
		return "connected"
	}
	return "disconnected"
}

// CacheMode selects whether a read may be served from the platform cache.
type CacheMode int

const (
	Cached CacheMode = iota
	Uncached
)

// Advertisement is a single scan result.
type Advertisement interface {
	LocalName() string
	ManufacturerData() []byte
	Services() []string
	TxPowerLevel() int
	Connectable() bool
	RSSI() int
	Addr() string
}

// Property is one characteristic property bit.
type Property interface {
	Value() int
	KnownName() string
}

// Properties exposes the property bits of a characteristic. A nil Property
// means the bit is not set.
type Properties interface {
	Broadcast() Property
	Read() Property
	Write() Property
	WriteWithoutResponse() Property
	Notify() Property
	Indicate() Property
	AuthenticatedSignedWrites() Property
	ExtendedProperties() Property
}

// ValueHandler receives a characteristic value together with the time it arrived.
// The data slice is owned by the handler.
type ValueHandler func(data []byte, ts time.Time)

// Characteristic is one GATT characteristic on a connected peripheral.
type Characteristic interface {
	UUID() string
	KnownName() string
	GetProperties() Properties

	Read(ctx context.Context, mode CacheMode) ([]byte, error)
	Write(ctx context.Context, data []byte, withResponse bool) error

	// SetNotify toggles the remote client characteristic configuration
	// descriptor. Registered value handlers are not touched.
	SetNotify(ctx context.Context, enabled bool) error

	// OnValueChanged registers fn for value notifications and returns a
	// function that removes it.
	OnValueChanged(fn ValueHandler) (remove func())
}

// Service is one GATT service on a connected peripheral.
type Service interface {
	UUID() string
	KnownName() string
	GetCharacteristic(uuid string) (Characteristic, error)
	GetCharacteristics() []Characteristic
}

// Peripheral is an opened BLE device.
type Peripheral interface {
	Handle() DeviceHandle

	// ResolveService returns the service with the given UUID or a *NotFoundError.
	ResolveService(ctx context.Context, uuid string) (Service, error)

	ConnectionStatus() ConnectionStatus

	// WatchConnectionStatus registers fn for status changes and returns a
	// function that stops the watch.
	WatchConnectionStatus(fn func(ConnectionStatus)) (stop func())

	Close() error
}

// Discoverer finds peripherals advertising a service.
type Discoverer interface {
	Discover(ctx context.Context, serviceUUID string) ([]DeviceHandle, error)
}

// Opener opens a discovered peripheral.
type Opener interface {
	Open(ctx context.Context, handle DeviceHandle) (Peripheral, error)
}

// Central is the platform Bluetooth stack.
type Central interface {
	Discoverer
	Opener
}
