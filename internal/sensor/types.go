package sensor

import (
	"strings"
	"time"
)

// Sensors is a bit set of headset sensor streams.
type Sensors uint8

const (
	None          Sensors = 0x0
	Magnetometer  Sensors = 0x1
	Accelerometer Sensors = 0x2
	Gyro          Sensors = 0x4
	Gps           Sensors = 0x8

	// All is every stream the headset exposes.
	All = Magnetometer | Accelerometer | Gyro | Gps
)

var sensorNames = []struct {
	flag Sensors
	name string
}{
	{Magnetometer, "Magnetometer"},
	{Accelerometer, "Accelerometer"},
	{Gyro, "Gyro"},
	{Gps, "Gps"},
}

// Has reports whether every flag in f is set in s.
func (s Sensors) Has(f Sensors) bool {
	return f != None && s&f == f
}

// Flags returns the individual flags set in s in ascending bit order.
func (s Sensors) Flags() []Sensors {
	var out []Sensors
	for _, n := range sensorNames {
		if s&n.flag != 0 {
			out = append(out, n.flag)
		}
	}
	return out
}

func (s Sensors) String() string {
	if s == None {
		return "None"
	}
	parts := make([]string, 0, 4)
	for _, n := range sensorNames {
		if s&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseSensors parses a comma separated list such as "gyro,accelerometer".
// Accepted names are case-insensitive; "all" and "none" are recognized.
func ParseSensors(list string) (Sensors, error) {
	var out Sensors
	for _, raw := range strings.Split(list, ",") {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch name {
		case "":
			continue
		case "none":
		case "all":
			out |= All
		case "mag", "magnetometer":
			out |= Magnetometer
		case "acc", "accel", "accelerometer":
			out |= Accelerometer
		case "gyro", "hpr", "combohpr", "orientation":
			out |= Gyro
		case "gps", "geo":
			out |= Gps
		default:
			return None, &UnknownSensorError{Name: raw}
		}
	}
	return out, nil
}

// UnknownSensorError is returned by ParseSensors for names it does not recognize.
type UnknownSensorError struct {
	Name string
}

func (e *UnknownSensorError) Error() string {
	return "unknown sensor \"" + strings.TrimSpace(e.Name) + "\" (expected gyro, accelerometer, gps, magnetometer or all)"
}

// ComboHprFlags is the status bit set carried in byte 7 of a ComboHPR frame.
type ComboHprFlags uint8

const (
	StepDetected        ComboHprFlags = 0x01
	MagneticDisturbance ComboHprFlags = 0x02
	AccelMovement       ComboHprFlags = 0x04
	GyroMovement        ComboHprFlags = 0x08
	AutoCalibrated      ComboHprFlags = 0x10
)

var flagNames = []struct {
	flag ComboHprFlags
	name string
}{
	{StepDetected, "StepDetected"},
	{MagneticDisturbance, "MagneticDisturbance"},
	{AccelMovement, "AccelMovement"},
	{GyroMovement, "GyroMovement"},
	{AutoCalibrated, "AutoCalibrated"},
}

// Has reports whether flag is set.
func (f ComboHprFlags) Has(flag ComboHprFlags) bool {
	return f&flag != 0
}

func (f ComboHprFlags) String() string {
	if f == 0 {
		return "-"
	}
	parts := make([]string, 0, len(flagNames))
	for _, n := range flagNames {
		if f&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Acceleration is one accelerometer sample in g.
type Acceleration struct {
	X, Y, Z   float32
	Timestamp time.Time
}

// ComboHpr is a decoded heading/pitch/roll frame. Angles are in degrees.
type ComboHpr struct {
	FusedHeading   float64
	Pitch          float64
	Roll           float64
	Pace           uint8
	Flags          ComboHprFlags
	FieldStrength  uint16
	Yaw            float64
	CompassHeading float64
	Timestamp      time.Time
}

// Orientation is the consumer view of a ComboHPR frame. Yaw is taken from
// the fused heading. A calibrated Orientation has yaw, pitch and roll in [0,360).
type Orientation struct {
	Yaw            float64
	Pitch          float64
	Roll           float64
	CompassHeading float64
	Flags          ComboHprFlags
	Timestamp      time.Time
}

// Orientation projects the frame onto the raw consumer orientation.
func (c ComboHpr) Orientation() Orientation {
	return Orientation{
		Yaw:            c.FusedHeading,
		Pitch:          c.Pitch,
		Roll:           c.Roll,
		CompassHeading: c.CompassHeading,
		Flags:          c.Flags,
		Timestamp:      c.Timestamp,
	}
}

// GeoFix is a decoded GPS all-in-one frame.
type GeoFix struct {
	Latitude             float64
	Longitude            float64
	Altitude             uint32 // meters
	HorizontalAccuracy   float64
	Valid                bool
	SecondsSinceMidnight uint32
	FixType              uint8
	SpeedKmh             float64
	Course               uint16
	Satellites           uint8
	Timestamp            time.Time
}

// MagneticVector is a decoded magnetometer vector frame.
type MagneticVector struct {
	X, Y, Z       int16
	FieldStrength uint16
	Timestamp     time.Time
}

// MagneticCalibration is a decoded magnetometer calibration frame.
type MagneticCalibration struct {
	Status    uint8
	X, Y, Z   int16
	Timestamp time.Time
}

// MagneticParams is a decoded magnetometer parameters frame.
type MagneticParams struct {
	FieldIntensity uint16
	Inclination    int16
	Declination    int16
}
