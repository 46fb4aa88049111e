// Package events delivers headset readings and state changes to consumers.
//
// Producers call Publish on a Bus; a single dispatcher goroutine fans events
// out to subscribers in publish order. Slow subscribers lose their oldest
// events rather than stalling the producer.
package events

import (
	"time"

	"github.com/srg/ihslink/internal/sensor"
)

// Kind identifies the payload carried by an Event.
type Kind int

const (
	ConnectionChanged Kind = iota
	ConnectionFailed
	OrientationChanged
	CompassChanged
	AccelerometerChanged
	GeoFixChanged
	MagnetometerChanged
	MagnetometerCalibrationChanged
	SensorsListenedToChanged
	AuthenticationFailed
	Calibrated
)

var kindNames = map[Kind]string{
	ConnectionChanged:              "ConnectionChanged",
	ConnectionFailed:               "ConnectionFailed",
	OrientationChanged:             "OrientationChanged",
	CompassChanged:                 "CompassChanged",
	AccelerometerChanged:           "AccelerometerChanged",
	GeoFixChanged:                  "GeoFixChanged",
	MagnetometerChanged:            "MagnetometerChanged",
	MagnetometerCalibrationChanged: "MagnetometerCalibrationChanged",
	SensorsListenedToChanged:       "SensorsListenedToChanged",
	AuthenticationFailed:           "AuthenticationFailed",
	Calibrated:                     "Calibrated",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "Unknown"
}

// Event is a tagged union; only the fields belonging to Kind are meaningful.
type Event struct {
	Kind Kind
	Time time.Time

	Connected bool  // ConnectionChanged
	Err       error // ConnectionFailed, AuthenticationFailed

	Orientation    sensor.Orientation // OrientationChanged, Calibrated
	CompassHeading float64            // CompassChanged

	Acceleration         sensor.Acceleration // AccelerometerChanged
	PreviousAcceleration sensor.Acceleration

	GeoFix              sensor.GeoFix              // GeoFixChanged
	Magnetic            sensor.MagneticVector      // MagnetometerChanged
	MagneticCalibration sensor.MagneticCalibration // MagnetometerCalibrationChanged

	Sensors sensor.Sensors // SensorsListenedToChanged
}

// Publisher accepts events for delivery.
type Publisher interface {
	Publish(e Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(e Event)

func (f PublisherFunc) Publish(e Event) { f(e) }

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(Event) {})

func NewConnectionChanged(connected bool) Event {
	return Event{Kind: ConnectionChanged, Time: time.Now(), Connected: connected}
}

func NewConnectionFailed(err error) Event {
	return Event{Kind: ConnectionFailed, Time: time.Now(), Err: err}
}

func NewAuthenticationFailed(err error) Event {
	return Event{Kind: AuthenticationFailed, Time: time.Now(), Err: err}
}

func NewOrientationChanged(o sensor.Orientation) Event {
	return Event{Kind: OrientationChanged, Time: time.Now(), Orientation: o}
}

func NewCompassChanged(heading float64) Event {
	return Event{Kind: CompassChanged, Time: time.Now(), CompassHeading: heading}
}

func NewAccelerometerChanged(current, previous sensor.Acceleration) Event {
	return Event{Kind: AccelerometerChanged, Time: time.Now(), Acceleration: current, PreviousAcceleration: previous}
}

func NewGeoFixChanged(fix sensor.GeoFix) Event {
	return Event{Kind: GeoFixChanged, Time: time.Now(), GeoFix: fix}
}

func NewMagnetometerChanged(v sensor.MagneticVector) Event {
	return Event{Kind: MagnetometerChanged, Time: time.Now(), Magnetic: v}
}

func NewMagnetometerCalibrationChanged(c sensor.MagneticCalibration) Event {
	return Event{Kind: MagnetometerCalibrationChanged, Time: time.Now(), MagneticCalibration: c}
}

func NewSensorsListenedToChanged(s sensor.Sensors) Event {
	return Event{Kind: SensorsListenedToChanged, Time: time.Now(), Sensors: s}
}

// NewCalibrated carries the raw reference orientation the offsets were taken from.
func NewCalibrated(reference sensor.Orientation) Event {
	return Event{Kind: Calibrated, Time: time.Now(), Orientation: reference}
}
