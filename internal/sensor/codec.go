// Package sensor decodes the packed little-endian payloads streamed by the
// headset's IMU and GPS characteristics.
//
// Every decoder is lenient: a buffer shorter than the frame length yields
// ok == false and no error, and callers treat it as "no update".
package sensor

import (
	"encoding/binary"
	"time"
)

// Frame lengths in bytes.
const (
	AccelerometerFrameLen       = 6
	ComboHprFrameLen            = 14
	GeoFixFrameLen              = 16
	MagneticVectorFrameLen      = 8
	MagneticCalibrationFrameLen = 7
	MagneticParamsFrameLen      = 6
)

const (
	// AccelerometerScale converts raw accelerometer counts to g.
	AccelerometerScale = 16384.0

	// AngleScale converts ComboHPR angle counts (tenths of a degree) to degrees.
	AngleScale = 10.0

	// CoordinateScale converts GPS coordinate counts to degrees.
	CoordinateScale = 600000.0
)

var le = binary.LittleEndian

// DecodeAccelerometer decodes three signed 16-bit axes and scales them to g.
func DecodeAccelerometer(buf []byte, ts time.Time) (Acceleration, bool) {
	if len(buf) < AccelerometerFrameLen {
		return Acceleration{}, false
	}
	return Acceleration{
		X:         float32(int16(le.Uint16(buf[0:]))) / AccelerometerScale,
		Y:         float32(int16(le.Uint16(buf[2:]))) / AccelerometerScale,
		Z:         float32(int16(le.Uint16(buf[4:]))) / AccelerometerScale,
		Timestamp: ts,
	}, true
}

// DecodeComboHpr decodes a heading/pitch/roll frame:
//
//	0  u16 fused heading (1/10 deg)
//	2  i16 pitch         (1/10 deg)
//	4  i16 roll          (1/10 deg)
//	6  u8  pace
//	7  u8  flags (bit set)
//	8  u16 field strength
//	10 u16 yaw           (1/10 deg)
//	12 u16 compass       (1/10 deg)
func DecodeComboHpr(buf []byte, ts time.Time) (ComboHpr, bool) {
	if len(buf) < ComboHprFrameLen {
		return ComboHpr{}, false
	}
	return ComboHpr{
		FusedHeading:   float64(le.Uint16(buf[0:])) / AngleScale,
		Pitch:          float64(int16(le.Uint16(buf[2:]))) / AngleScale,
		Roll:           float64(int16(le.Uint16(buf[4:]))) / AngleScale,
		Pace:           buf[6],
		Flags:          ComboHprFlags(buf[7]),
		FieldStrength:  le.Uint16(buf[8:]),
		Yaw:            float64(le.Uint16(buf[10:])) / AngleScale,
		CompassHeading: float64(le.Uint16(buf[12:])) / AngleScale,
		Timestamp:      ts,
	}, true
}

// GPS packed word layouts.
const (
	secondsMask  = 0x1FFFF // timeAltFix bits 0-16
	altShift     = 17
	altMask      = 0xFFF // bits 17-28
	fixShift     = 29
	fixMask      = 0x7 // bits 29-31
	speedMask    = 0x7FF // speedCourseHorizError bits 0-10
	courseShift  = 11
	courseMask   = 0x1FF // bits 11-19
	hErrLSBShift = 20
	hErrShift    = 21
	hErrMask     = 0x1F // bits 21-25
	satShift     = 26
	satMask      = 0x1F // bits 26-30
	validShift   = 31
)

// DecodeGeoFix decodes a GPS all-in-one frame: i32 latitude, i32 longitude,
// u32 timeAltFix and u32 speedCourseHorizError.
func DecodeGeoFix(buf []byte, ts time.Time) (GeoFix, bool) {
	if len(buf) < GeoFixFrameLen {
		return GeoFix{}, false
	}

	lat := int32(le.Uint32(buf[0:]))
	lon := int32(le.Uint32(buf[4:]))
	timeAltFix := le.Uint32(buf[8:])
	sche := le.Uint32(buf[12:])

	hErr := float64((sche >> hErrShift) & hErrMask)
	if (sche>>hErrLSBShift)&0x1 == 1 {
		hErr += 0.5
	}

	return GeoFix{
		Latitude:             float64(lat) / CoordinateScale,
		Longitude:            float64(lon) / CoordinateScale,
		Altitude:             (timeAltFix >> altShift) & altMask,
		HorizontalAccuracy:   hErr,
		Valid:                (sche>>validShift)&0x1 == 1,
		SecondsSinceMidnight: timeAltFix & secondsMask,
		FixType:              uint8((timeAltFix >> fixShift) & fixMask),
		SpeedKmh:             float64(sche&speedMask) / 10.0,
		Course:               uint16((sche >> courseShift) & courseMask),
		Satellites:           uint8((sche >> satShift) & satMask),
		Timestamp:            ts,
	}, true
}

// DecodeMagneticVector decodes i16 x, y, z and the u16 field strength.
func DecodeMagneticVector(buf []byte, ts time.Time) (MagneticVector, bool) {
	if len(buf) < MagneticVectorFrameLen {
		return MagneticVector{}, false
	}
	return MagneticVector{
		X:             int16(le.Uint16(buf[0:])),
		Y:             int16(le.Uint16(buf[2:])),
		Z:             int16(le.Uint16(buf[4:])),
		FieldStrength: le.Uint16(buf[6:]),
		Timestamp:     ts,
	}, true
}

// DecodeMagneticCalibration decodes u8 status followed by i16 x, y, z.
func DecodeMagneticCalibration(buf []byte, ts time.Time) (MagneticCalibration, bool) {
	if len(buf) < MagneticCalibrationFrameLen {
		return MagneticCalibration{}, false
	}
	return MagneticCalibration{
		Status:    buf[0],
		X:         int16(le.Uint16(buf[1:])),
		Y:         int16(le.Uint16(buf[3:])),
		Z:         int16(le.Uint16(buf[5:])),
		Timestamp: ts,
	}, true
}

// DecodeMagneticParams decodes u16 field intensity, i16 inclination and i16 declination.
func DecodeMagneticParams(buf []byte) (MagneticParams, bool) {
	if len(buf) < MagneticParamsFrameLen {
		return MagneticParams{}, false
	}
	return MagneticParams{
		FieldIntensity: le.Uint16(buf[0:]),
		Inclination:    int16(le.Uint16(buf[2:])),
		Declination:    int16(le.Uint16(buf[4:])),
	}, true
}
