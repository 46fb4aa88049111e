package headset

import (
	"fmt"

	"github.com/srg/ihslink/internal/sensor"
)

// Offsets is the reference orientation subtracted from every raw reading.
type Offsets struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// OffsetsFrom captures the yaw, pitch and roll of a raw reading.
func OffsetsFrom(raw sensor.Orientation) Offsets {
	return Offsets{Yaw: raw.Yaw, Pitch: raw.Pitch, Roll: raw.Roll}
}

// IsZero reports whether no calibration has been captured.
func (o Offsets) IsZero() bool {
	return o == Offsets{}
}

// Apply subtracts the offsets from yaw, pitch and roll and wraps each into
// [0,360). The compass heading is passed through unchanged.
func (o Offsets) Apply(raw sensor.Orientation) (sensor.Orientation, error) {
	out := raw
	var err error
	if out.Yaw, err = Wrap(raw.Yaw - o.Yaw); err != nil {
		return raw, fmt.Errorf("yaw: %w", err)
	}
	if out.Pitch, err = Wrap(raw.Pitch - o.Pitch); err != nil {
		return raw, fmt.Errorf("pitch: %w", err)
	}
	if out.Roll, err = Wrap(raw.Roll - o.Roll); err != nil {
		return raw, fmt.Errorf("roll: %w", err)
	}
	return out, nil
}

// Wrap brings an angle in (-720,720) into [0,360) with at most one
// subtraction and two additions of 360. Anything still out of range is an
// ErrOrientationOutOfRange.
func Wrap(deg float64) (float64, error) {
	if deg >= 360 {
		deg -= 360
	}
	if deg < 0 {
		deg += 360
		// -tiny + 360 rounds to exactly 360
		if deg == 360 {
			deg = 0
		}
	}
	if deg < 0 {
		deg += 360
		if deg == 360 {
			deg = 0
		}
	}
	if deg < 0 || deg >= 360 {
		return deg, fmt.Errorf("%w: %.1f", ErrOrientationOutOfRange, deg)
	}
	return deg, nil
}
