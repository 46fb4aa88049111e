package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/ihslink/internal/device"
)

// BLEProperty is a single characteristic property bit.
type BLEProperty struct {
	value ble.Property
	name  string
}

func (p *BLEProperty) Value() int        { return int(p.value) }
func (p *BLEProperty) KnownName() string { return p.name }

// BLEProperties indexes the property bits present on a characteristic.
// Accessors return nil for absent bits.
type BLEProperties struct {
	set map[ble.Property]*BLEProperty
}

var propertyNames = []struct {
	bit  ble.Property
	name string
}{
	{ble.CharBroadcast, "Broadcast"},
	{ble.CharRead, "Read"},
	{ble.CharWriteNR, "WriteWithoutResponse"},
	{ble.CharWrite, "Write"},
	{ble.CharNotify, "Notify"},
	{ble.CharIndicate, "Indicate"},
	{ble.CharSignedWrite, "AuthenticatedSignedWrites"},
	{ble.CharExtended, "ExtendedProperties"},
}

// NewProperties decodes ble.Property bit flags.
func NewProperties(p ble.Property) device.Properties {
	props := &BLEProperties{set: make(map[ble.Property]*BLEProperty)}
	for _, pn := range propertyNames {
		if p&pn.bit != 0 {
			props.set[pn.bit] = &BLEProperty{value: pn.bit, name: pn.name}
		}
	}
	return props
}

func (p *BLEProperties) get(bit ble.Property) device.Property {
	if prop, ok := p.set[bit]; ok {
		return prop
	}
	return nil
}

func (p *BLEProperties) Broadcast() device.Property            { return p.get(ble.CharBroadcast) }
func (p *BLEProperties) Read() device.Property                 { return p.get(ble.CharRead) }
func (p *BLEProperties) Write() device.Property                { return p.get(ble.CharWrite) }
func (p *BLEProperties) WriteWithoutResponse() device.Property { return p.get(ble.CharWriteNR) }
func (p *BLEProperties) Notify() device.Property               { return p.get(ble.CharNotify) }
func (p *BLEProperties) Indicate() device.Property             { return p.get(ble.CharIndicate) }
func (p *BLEProperties) AuthenticatedSignedWrites() device.Property {
	return p.get(ble.CharSignedWrite)
}
func (p *BLEProperties) ExtendedProperties() device.Property { return p.get(ble.CharExtended) }

// indicateOnly reports whether value updates arrive as indications.
func indicateOnly(p ble.Property) bool {
	return p&ble.CharNotify == 0 && p&ble.CharIndicate != 0
}
