package headset

import (
	"sync"

	"github.com/srg/ihslink/internal/sensor"
)

// Reading is a snapshot of the latest sensor values. It never aliases engine
// state.
type Reading struct {
	Orientation         sensor.Orientation `json:"orientation"`
	PreviousOrientation sensor.Orientation `json:"previous_orientation"`
	RawOrientation      sensor.Orientation `json:"raw_orientation"`
	HasOrientation      bool               `json:"has_orientation"`
	Offsets             Offsets            `json:"offsets"`

	Acceleration         sensor.Acceleration `json:"acceleration"`
	PreviousAcceleration sensor.Acceleration `json:"previous_acceleration"`
	HasAcceleration      bool                `json:"has_acceleration"`

	GeoFix    sensor.GeoFix `json:"geo_fix"`
	HasGeoFix bool          `json:"has_geo_fix"`

	Magnetic            sensor.MagneticVector      `json:"magnetic"`
	MagneticCalibration sensor.MagneticCalibration `json:"magnetic_calibration"`
	HasMagnetic         bool                       `json:"has_magnetic"`
}

// readingStore holds the current/previous slots.
//
// orientMu guards the orientation pair, the raw frame and the offsets as one
// unit so calibration and notification handlers see a consistent view. The
// other slots have their own locks.
type readingStore struct {
	orientMu    sync.Mutex
	orientation sensor.Orientation
	prevOrient  sensor.Orientation
	raw         sensor.ComboHpr
	hasRaw      bool
	offsets     Offsets

	accelMu   sync.Mutex
	accel     sensor.Acceleration
	prevAccel sensor.Acceleration
	hasAccel  bool

	gpsMu  sync.Mutex
	gps    sensor.GeoFix
	hasGps bool

	magMu  sync.Mutex
	mag    sensor.MagneticVector
	magCal sensor.MagneticCalibration
	hasMag bool
}

// updateOrientation stores a raw frame and returns its calibrated view. On a
// wrap failure nothing is stored.
func (s *readingStore) updateOrientation(frame sensor.ComboHpr) (sensor.Orientation, error) {
	s.orientMu.Lock()
	defer s.orientMu.Unlock()

	calibrated, err := s.offsets.Apply(frame.Orientation())
	if err != nil {
		return sensor.Orientation{}, err
	}
	s.raw = frame
	s.hasRaw = true
	s.prevOrient = s.orientation
	s.orientation = calibrated
	return calibrated, nil
}

// captureOffsets snapshots the latest raw orientation as the offsets.
func (s *readingStore) captureOffsets() (sensor.Orientation, bool) {
	s.orientMu.Lock()
	defer s.orientMu.Unlock()
	if !s.hasRaw {
		return sensor.Orientation{}, false
	}
	ref := s.raw.Orientation()
	s.offsets = OffsetsFrom(ref)
	return ref, true
}

func (s *readingStore) currentOffsets() Offsets {
	s.orientMu.Lock()
	defer s.orientMu.Unlock()
	return s.offsets
}

func (s *readingStore) updateAcceleration(a sensor.Acceleration) (current, previous sensor.Acceleration) {
	s.accelMu.Lock()
	defer s.accelMu.Unlock()
	s.prevAccel = s.accel
	s.accel = a
	s.hasAccel = true
	return s.accel, s.prevAccel
}

func (s *readingStore) updateGeoFix(fix sensor.GeoFix) {
	s.gpsMu.Lock()
	s.gps = fix
	s.hasGps = true
	s.gpsMu.Unlock()
}

func (s *readingStore) updateMagnetic(v sensor.MagneticVector) {
	s.magMu.Lock()
	s.mag = v
	s.hasMag = true
	s.magMu.Unlock()
}

func (s *readingStore) updateMagneticCalibration(c sensor.MagneticCalibration) {
	s.magMu.Lock()
	s.magCal = c
	s.magMu.Unlock()
}

func (s *readingStore) snapshot() Reading {
	var r Reading

	s.orientMu.Lock()
	r.Orientation = s.orientation
	r.PreviousOrientation = s.prevOrient
	r.RawOrientation = s.raw.Orientation()
	r.HasOrientation = s.hasRaw
	r.Offsets = s.offsets
	s.orientMu.Unlock()

	s.accelMu.Lock()
	r.Acceleration = s.accel
	r.PreviousAcceleration = s.prevAccel
	r.HasAcceleration = s.hasAccel
	s.accelMu.Unlock()

	s.gpsMu.Lock()
	r.GeoFix = s.gps
	r.HasGeoFix = s.hasGps
	s.gpsMu.Unlock()

	s.magMu.Lock()
	r.Magnetic = s.mag
	r.MagneticCalibration = s.magCal
	r.HasMagnetic = s.hasMag
	s.magMu.Unlock()

	return r
}

func (s *readingStore) reset() {
	s.orientMu.Lock()
	s.orientation, s.prevOrient = sensor.Orientation{}, sensor.Orientation{}
	s.raw, s.hasRaw = sensor.ComboHpr{}, false
	s.offsets = Offsets{}
	s.orientMu.Unlock()

	s.accelMu.Lock()
	s.accel, s.prevAccel, s.hasAccel = sensor.Acceleration{}, sensor.Acceleration{}, false
	s.accelMu.Unlock()

	s.gpsMu.Lock()
	s.gps, s.hasGps = sensor.GeoFix{}, false
	s.gpsMu.Unlock()

	s.magMu.Lock()
	s.mag, s.magCal, s.hasMag = sensor.MagneticVector{}, sensor.MagneticCalibration{}, false
	s.magMu.Unlock()
}
