package sensor

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func comboFrame(fused uint16, pitch, roll int16, pace, flags uint8, field, yaw, compass uint16) []byte {
	buf := make([]byte, ComboHprFrameLen)
	binary.LittleEndian.PutUint16(buf[0:], fused)
	binary.LittleEndian.PutUint16(buf[2:], uint16(pitch))
	binary.LittleEndian.PutUint16(buf[4:], uint16(roll))
	buf[6] = pace
	buf[7] = flags
	binary.LittleEndian.PutUint16(buf[8:], field)
	binary.LittleEndian.PutUint16(buf[10:], yaw)
	binary.LittleEndian.PutUint16(buf[12:], compass)
	return buf
}

func geoFrame(lat, lon int32, timeAltFix, sche uint32) []byte {
	buf := make([]byte, GeoFixFrameLen)
	binary.LittleEndian.PutUint32(buf[0:], uint32(lat))
	binary.LittleEndian.PutUint32(buf[4:], uint32(lon))
	binary.LittleEndian.PutUint32(buf[8:], timeAltFix)
	binary.LittleEndian.PutUint32(buf[12:], sche)
	return buf
}

func TestDecodeComboHpr(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	frame := comboFrame(1000, 50, -50, 3, 0x10, 420, 100, 900)

	got, ok := DecodeComboHpr(frame, ts)
	require.True(t, ok, "14-byte frame MUST decode")

	assert.InDelta(t, 100.0, got.FusedHeading, 1e-9)
	assert.InDelta(t, 5.0, got.Pitch, 1e-9)
	assert.InDelta(t, -5.0, got.Roll, 1e-9)
	assert.Equal(t, uint8(3), got.Pace)
	assert.True(t, got.Flags.Has(AutoCalibrated), "flag bit 0x10 MUST map to AutoCalibrated")
	assert.False(t, got.Flags.Has(StepDetected))
	assert.Equal(t, uint16(420), got.FieldStrength)
	assert.InDelta(t, 10.0, got.Yaw, 1e-9)
	assert.InDelta(t, 90.0, got.CompassHeading, 1e-9)
	assert.Equal(t, ts, got.Timestamp)

	o := got.Orientation()
	assert.InDelta(t, 100.0, o.Yaw, 1e-9, "consumer yaw MUST come from the fused heading")
	assert.InDelta(t, 90.0, o.CompassHeading, 1e-9)
}

func TestDecodeComboHprIgnoresTrailingBytes(t *testing.T) {
	frame := append(comboFrame(3599, 0, 0, 0, 0, 0, 0, 0), 0xFF, 0xFF)
	got, ok := DecodeComboHpr(frame, time.Time{})
	require.True(t, ok)
	assert.InDelta(t, 359.9, got.FusedHeading, 1e-9)
}

func TestDecodeAccelerometer(t *testing.T) {
	buf := make([]byte, AccelerometerFrameLen)
	binary.LittleEndian.PutUint16(buf[0:], uint16(16384))
	binary.LittleEndian.PutUint16(buf[2:], uint16(0xC000)) // -16384
	binary.LittleEndian.PutUint16(buf[4:], uint16(8192))

	got, ok := DecodeAccelerometer(buf, time.Time{})
	require.True(t, ok)
	assert.InDelta(t, 1.0, got.X, 1e-6)
	assert.InDelta(t, -1.0, got.Y, 1e-6)
	assert.InDelta(t, 0.5, got.Z, 1e-6)
}

func TestDecodeGeoFix(t *testing.T) {
	t.Run("coordinates and validity", func(t *testing.T) {
		got, ok := DecodeGeoFix(geoFrame(51600000, -600000, 0, 1<<31), time.Time{})
		require.True(t, ok)
		assert.InDelta(t, 86.0, got.Latitude, 1e-9)
		assert.InDelta(t, -1.0, got.Longitude, 1e-9)
		assert.True(t, got.Valid, "bit 31 MUST set Valid")
	})

	t.Run("packed words", func(t *testing.T) {
		timeAltFix := uint32(43200) | uint32(250)<<17 | uint32(3)<<29
		sche := uint32(125) | // 12.5 km/h
			uint32(270)<<11 | // course
			uint32(1)<<20 | // half-meter LSB
			uint32(4)<<21 | // horizontal error
			uint32(9)<<26 // satellites

		got, ok := DecodeGeoFix(geoFrame(0, 0, timeAltFix, sche), time.Time{})
		require.True(t, ok)
		assert.Equal(t, uint32(43200), got.SecondsSinceMidnight)
		assert.Equal(t, uint32(250), got.Altitude)
		assert.Equal(t, uint8(3), got.FixType)
		assert.InDelta(t, 12.5, got.SpeedKmh, 1e-9)
		assert.Equal(t, uint16(270), got.Course)
		assert.InDelta(t, 4.5, got.HorizontalAccuracy, 1e-9)
		assert.Equal(t, uint8(9), got.Satellites)
		assert.False(t, got.Valid)
	})
}

func TestDecodeMagnetometerFrames(t *testing.T) {
	vec := []byte{0x01, 0x00, 0xFF, 0xFF, 0x10, 0x00, 0x2C, 0x01}
	v, ok := DecodeMagneticVector(vec, time.Time{})
	require.True(t, ok)
	assert.Equal(t, MagneticVector{X: 1, Y: -1, Z: 16, FieldStrength: 300}, v)

	cal := []byte{0x03, 0x02, 0x00, 0xFE, 0xFF, 0x00, 0x01}
	c, ok := DecodeMagneticCalibration(cal, time.Time{})
	require.True(t, ok)
	assert.Equal(t, MagneticCalibration{Status: 3, X: 2, Y: -2, Z: 256}, c)

	params := []byte{0xE8, 0x03, 0x3C, 0x00, 0xF6, 0xFF}
	p, ok := DecodeMagneticParams(params)
	require.True(t, ok)
	assert.Equal(t, MagneticParams{FieldIntensity: 1000, Inclination: 60, Declination: -10}, p)
}

func TestDecodersRejectShortBuffers(t *testing.T) {
	short := []byte{0x01, 0x02, 0x03}

	_, ok := DecodeComboHpr(comboFrame(1, 1, 1, 1, 1, 1, 1, 1)[:13], time.Time{})
	assert.False(t, ok, "13-byte ComboHPR MUST be ignored")
	_, ok = DecodeAccelerometer(short, time.Time{})
	assert.False(t, ok)
	_, ok = DecodeGeoFix(make([]byte, 15), time.Time{})
	assert.False(t, ok, "15-byte GPS frame MUST be ignored")
	_, ok = DecodeMagneticVector(short, time.Time{})
	assert.False(t, ok)
	_, ok = DecodeMagneticCalibration(short, time.Time{})
	assert.False(t, ok)
	_, ok = DecodeMagneticParams(nil)
	assert.False(t, ok)
}

func TestSensorsString(t *testing.T) {
	assert.Equal(t, "None", None.String())
	assert.Equal(t, "Accelerometer|Gyro|Gps", (Gyro | Accelerometer | Gps).String())
	assert.True(t, All.Has(Gyro|Gps))
	assert.False(t, Gyro.Has(None), "None MUST never be reported as held")
	assert.Equal(t, []Sensors{Magnetometer, Gps}, (Gps | Magnetometer).Flags())
}

func TestParseSensors(t *testing.T) {
	got, err := ParseSensors("gyro, Accelerometer,gps")
	require.NoError(t, err)
	assert.Equal(t, Gyro|Accelerometer|Gps, got)

	got, err = ParseSensors("all")
	require.NoError(t, err)
	assert.Equal(t, All, got)

	got, err = ParseSensors("")
	require.NoError(t, err)
	assert.Equal(t, None, got)

	_, err = ParseSensors("gyro,barometer")
	var unknown *UnknownSensorError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "barometer", unknown.Name)
}
