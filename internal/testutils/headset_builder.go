package testutils

import (
	"encoding/binary"

	"github.com/srg/ihslink/internal/bledb"
	"github.com/srg/ihslink/internal/device"
)

// DefaultNonce is the nonce served by headsets built with HeadsetBuilder.
const DefaultNonce uint32 = 0x2bd45fbb

// HeadsetBuilder assembles a FakePeripheral with the headset GATT profile.
//
//	p := testutils.NewHeadsetBuilder().
//	    WithAddress("AA:BB:CC:DD:EE:01").
//	    WithoutMagnetometer().
//	    Build()
type HeadsetBuilder struct {
	handle     device.DeviceHandle
	nonce      []byte
	status     device.ConnectionStatus
	deviceInfo bool
	battery    *byte
	magneto    bool
	skip       map[string]bool
}

func NewHeadsetBuilder() *HeadsetBuilder {
	level := byte(87)
	return &HeadsetBuilder{
		handle: device.DeviceHandle{
			ID:       "AA:BB:CC:DD:EE:01",
			Name:     "IHS-Test",
			Address:  "AA:BB:CC:DD:EE:01",
			RSSI:     -52,
			Services: []string{bledb.IMUService},
		},
		nonce:      LittleEndianU32(DefaultNonce),
		status:     device.StatusDisconnected,
		deviceInfo: true,
		battery:    &level,
		magneto:    true,
		skip:       make(map[string]bool),
	}
}

func (b *HeadsetBuilder) WithAddress(addr string) *HeadsetBuilder {
	b.handle.ID = addr
	b.handle.Address = addr
	return b
}

func (b *HeadsetBuilder) WithName(name string) *HeadsetBuilder {
	b.handle.Name = name
	return b
}

// WithNonce sets the raw nonce characteristic value.
func (b *HeadsetBuilder) WithNonce(raw []byte) *HeadsetBuilder {
	b.nonce = raw
	return b
}

// Connected makes the peripheral report StatusConnected before any watcher registers.
func (b *HeadsetBuilder) Connected() *HeadsetBuilder {
	b.status = device.StatusConnected
	return b
}

func (b *HeadsetBuilder) WithoutDeviceInfo() *HeadsetBuilder {
	b.deviceInfo = false
	return b
}

func (b *HeadsetBuilder) WithoutBattery() *HeadsetBuilder {
	b.battery = nil
	return b
}

func (b *HeadsetBuilder) WithoutMagnetometer() *HeadsetBuilder {
	b.magneto = false
	return b
}

// Without omits a characteristic or service by UUID.
func (b *HeadsetBuilder) Without(uuid string) *HeadsetBuilder {
	b.skip[device.NormalizeUUID(uuid)] = true
	return b
}

func (b *HeadsetBuilder) Build() *FakePeripheral {
	p := NewFakePeripheral(b.handle)
	p.SetInitialStatus(b.status)

	if svc := b.service(p, bledb.SystemService); svc != nil {
		b.char(svc, bledb.NonceChar, b.nonce)
		b.char(svc, bledb.KeyChar, nil)
		b.char(svc, bledb.FeaturesChar, []byte{0x0F})
	}

	if svc := b.service(p, bledb.IMUService); svc != nil {
		b.char(svc, bledb.ComboHprChar, ComboHprFrame(0, 0, 0, 0, 0, 0, 0))
		b.char(svc, bledb.AccVectorChar, make([]byte, 6))
		if b.magneto {
			b.char(svc, bledb.MagVectorChar, make([]byte, 8))
			b.char(svc, bledb.MagCalibrationChar, make([]byte, 7))
			b.char(svc, bledb.MagParamsChar, make([]byte, 6))
		}
	}

	if svc := b.service(p, bledb.GPSService); svc != nil {
		b.char(svc, bledb.GPSAllInOne, make([]byte, 16))
	}

	if b.deviceInfo {
		if svc := b.service(p, bledb.DeviceInfoService); svc != nil {
			b.char(svc, bledb.ModelNumberChar, []byte("IHS-1"))
			b.char(svc, bledb.SerialNumberChar, []byte("SN0042"))
			b.char(svc, bledb.FirmwareRevChar, []byte("2.1.0"))
			b.char(svc, bledb.HardwareRevChar, []byte("B"))
			b.char(svc, bledb.SoftwareRevChar, []byte("2.1"))
			b.char(svc, bledb.ManufacturerChar, []byte("Jabra"))
			b.char(svc, bledb.SystemIDChar, []byte{0x01, 0x02, 0x03, 0x04})
		}
	}

	if b.battery != nil {
		if svc := b.service(p, bledb.BatteryService); svc != nil {
			b.char(svc, bledb.BatteryLevelChar, []byte{*b.battery})
		}
	}
	return p
}

func (b *HeadsetBuilder) service(p *FakePeripheral, uuid string) *FakeService {
	if b.skip[device.NormalizeUUID(uuid)] {
		return nil
	}
	return p.AddService(uuid)
}

func (b *HeadsetBuilder) char(s *FakeService, uuid string, value []byte) {
	if b.skip[device.NormalizeUUID(uuid)] {
		return
	}
	s.Add(uuid, value)
}

// LittleEndianU32 encodes v as four little-endian bytes.
func LittleEndianU32(v uint32) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, v)
	return out
}

// ComboHprFrame encodes a ComboHPR frame from raw (tenth-of-degree) values.
func ComboHprFrame(fused uint16, pitch, roll int16, flags uint8, field, yaw, compass uint16) []byte {
	buf := make([]byte, 14)
	binary.LittleEndian.PutUint16(buf[0:], fused)
	binary.LittleEndian.PutUint16(buf[2:], uint16(pitch))
	binary.LittleEndian.PutUint16(buf[4:], uint16(roll))
	buf[7] = flags
	binary.LittleEndian.PutUint16(buf[8:], field)
	binary.LittleEndian.PutUint16(buf[10:], yaw)
	binary.LittleEndian.PutUint16(buf[12:], compass)
	return buf
}

// AccelerometerFrame encodes raw accelerometer counts.
func AccelerometerFrame(x, y, z int16) []byte {
	buf := make([]byte, 6)
	binary.LittleEndian.PutUint16(buf[0:], uint16(x))
	binary.LittleEndian.PutUint16(buf[2:], uint16(y))
	binary.LittleEndian.PutUint16(buf[4:], uint16(z))
	return buf
}

// GeoFixFrame encodes a GPS all-in-one frame.
func GeoFixFrame(lat, lon int32, timeAltFix, speedCourseHErr uint32) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:], uint32(lat))
	binary.LittleEndian.PutUint32(buf[4:], uint32(lon))
	binary.LittleEndian.PutUint32(buf[8:], timeAltFix)
	binary.LittleEndian.PutUint32(buf[12:], speedCourseHErr)
	return buf
}

// MagnetometerFrame encodes a magnetometer vector frame.
func MagnetometerFrame(x, y, z int16, field uint16) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint16(buf[0:], uint16(x))
	binary.LittleEndian.PutUint16(buf[2:], uint16(y))
	binary.LittleEndian.PutUint16(buf[4:], uint16(z))
	binary.LittleEndian.PutUint16(buf[6:], field)
	return buf
}
