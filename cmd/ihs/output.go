package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/srg/ihslink/internal/device"
	"github.com/srg/ihslink/internal/events"
	"github.com/srg/ihslink/internal/headset"
	"github.com/srg/ihslink/internal/sensor"
	"github.com/srg/ihslink/pkg/config"
	"github.com/srg/ihslink/scanner"
)

type palette struct {
	label *color.Color
	good  *color.Color
	bad   *color.Color
	kind  *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		label: color.New(color.Bold),
		good:  color.New(color.FgGreen),
		bad:   color.New(color.FgRed),
		kind:  color.New(color.FgCyan),
	}
	for _, c := range []*color.Color{p.label, p.good, p.bad, p.kind} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type orientationView struct {
	Yaw            float64 `json:"yaw"`
	Pitch          float64 `json:"pitch"`
	Roll           float64 `json:"roll"`
	CompassHeading float64 `json:"compass_heading"`
	Flags          string  `json:"flags,omitempty"`
}

func newOrientationView(o sensor.Orientation) *orientationView {
	v := &orientationView{Yaw: o.Yaw, Pitch: o.Pitch, Roll: o.Roll, CompassHeading: o.CompassHeading}
	if o.Flags != 0 {
		v.Flags = o.Flags.String()
	}
	return v
}

type accelerationView struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

type geoFixView struct {
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	Altitude           uint32  `json:"altitude"`
	HorizontalAccuracy float64 `json:"horizontal_accuracy"`
	Valid              bool    `json:"valid"`
	FixType            uint8   `json:"fix_type"`
	SpeedKmh           float64 `json:"speed_kmh"`
	Course             uint16  `json:"course"`
	Satellites         uint8   `json:"satellites"`
}

func newGeoFixView(g sensor.GeoFix) *geoFixView {
	return &geoFixView{
		Latitude:           g.Latitude,
		Longitude:          g.Longitude,
		Altitude:           g.Altitude,
		HorizontalAccuracy: g.HorizontalAccuracy,
		Valid:              g.Valid,
		FixType:            g.FixType,
		SpeedKmh:           g.SpeedKmh,
		Course:             g.Course,
		Satellites:         g.Satellites,
	}
}

type magneticView struct {
	X             int16  `json:"x"`
	Y             int16  `json:"y"`
	Z             int16  `json:"z"`
	FieldStrength uint16 `json:"field_strength"`
}

type magneticCalibrationView struct {
	Status uint8 `json:"status"`
	X      int16 `json:"x"`
	Y      int16 `json:"y"`
	Z      int16 `json:"z"`
}

// readingView is the JSON shape of a sensor snapshot; absent streams are omitted.
type readingView struct {
	Orientation         *orientationView         `json:"orientation,omitempty"`
	Acceleration        *accelerationView        `json:"acceleration,omitempty"`
	GeoFix              *geoFixView              `json:"geo_fix,omitempty"`
	Magnetic            *magneticView            `json:"magnetic,omitempty"`
	MagneticCalibration *magneticCalibrationView `json:"magnetic_calibration,omitempty"`
	Failed              string                   `json:"failed,omitempty"`
}

func newReadingView(r headset.Reading, failed sensor.Sensors) readingView {
	var v readingView
	if r.HasOrientation {
		v.Orientation = newOrientationView(r.Orientation)
	}
	if r.HasAcceleration {
		a := r.Acceleration
		v.Acceleration = &accelerationView{X: a.X, Y: a.Y, Z: a.Z}
	}
	if r.HasGeoFix {
		v.GeoFix = newGeoFixView(r.GeoFix)
	}
	if r.HasMagnetic {
		m, c := r.Magnetic, r.MagneticCalibration
		v.Magnetic = &magneticView{X: m.X, Y: m.Y, Z: m.Z, FieldStrength: m.FieldStrength}
		v.MagneticCalibration = &magneticCalibrationView{Status: c.Status, X: c.X, Y: c.Y, Z: c.Z}
	}
	if failed != sensor.None {
		v.Failed = failed.String()
	}
	return v
}

func formatOrientation(o sensor.Orientation) string {
	return fmt.Sprintf("yaw=%.1f pitch=%.1f roll=%.1f compass=%.1f", o.Yaw, o.Pitch, o.Roll, o.CompassHeading)
}

func formatAcceleration(a sensor.Acceleration) string {
	return fmt.Sprintf("x=%.3f y=%.3f z=%.3f g", a.X, a.Y, a.Z)
}

func formatGeoFix(g sensor.GeoFix) string {
	if !g.Valid {
		return fmt.Sprintf("no fix (sats=%d)", g.Satellites)
	}
	return fmt.Sprintf("lat=%.6f lon=%.6f alt=%dm accuracy=%.1fm speed=%.1fkm/h sats=%d",
		g.Latitude, g.Longitude, g.Altitude, g.HorizontalAccuracy, g.SpeedKmh, g.Satellites)
}

func formatMagnetic(m sensor.MagneticVector) string {
	return fmt.Sprintf("x=%d y=%d z=%d strength=%d", m.X, m.Y, m.Z, m.FieldStrength)
}

func formatMagneticCalibration(c sensor.MagneticCalibration) string {
	return fmt.Sprintf("status=%d x=%d y=%d z=%d", c.Status, c.X, c.Y, c.Z)
}

func printReading(w io.Writer, r headset.Reading, failed sensor.Sensors, pal palette) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row := func(label, value string) {
		fmt.Fprintf(tw, "%s\t%s\n", pal.label.Sprint(label), value)
	}
	empty := true
	if r.HasOrientation {
		row("Orientation", formatOrientation(r.Orientation))
		empty = false
	}
	if r.HasAcceleration {
		row("Acceleration", formatAcceleration(r.Acceleration))
		empty = false
	}
	if r.HasGeoFix {
		row("GPS", formatGeoFix(r.GeoFix))
		empty = false
	}
	if r.HasMagnetic {
		row("Magnetometer", formatMagnetic(r.Magnetic))
		row("Calibration", formatMagneticCalibration(r.MagneticCalibration))
		empty = false
	}
	if empty {
		row("Readings", "none")
	}
	if failed != sensor.None {
		row("Failed", pal.bad.Sprint(failed.String()))
	}
	return tw.Flush()
}

type deviceView struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	RSSI        int    `json:"rssi"`
	Connectable bool   `json:"connectable"`
}

func printDevices(w io.Writer, found []scanner.Discovered, format string, pal palette) error {
	if format == config.FormatJSON {
		views := make([]deviceView, len(found))
		for i, d := range found {
			views[i] = deviceView{Name: d.Name, Address: d.Address, RSSI: d.RSSI, Connectable: d.Connectable}
		}
		return writeJSON(w, views)
	}

	if len(found) == 0 {
		_, err := fmt.Fprintln(w, "No headsets found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, pal.label.Sprint("NAME")+"\t"+pal.label.Sprint("ADDRESS")+"\t"+pal.label.Sprint("RSSI"))
	for _, d := range found {
		name := d.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d dBm\n", name, d.Address, d.RSSI)
	}
	return tw.Flush()
}

func printDeviceInfo(w io.Writer, handle device.DeviceHandle, info headset.DeviceInfo, format string, pal palette) error {
	fields := info.Fields()
	if format == config.FormatJSON {
		return writeJSON(w, struct {
			Address string `json:"address"`
			Fields  any    `json:"info"`
		}{handle.Address, fields})
	}

	fmt.Fprintf(w, "Headset %s\n", pal.label.Sprint(handle.DisplayName()))
	if fields.Len() == 0 {
		_, err := fmt.Fprintln(w, "  No device information available")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for pair := fields.Oldest(); pair != nil; pair = pair.Next() {
		fmt.Fprintf(tw, "  %s:\t%s\n", pair.Key, pair.Value)
	}
	return tw.Flush()
}

// eventView is the JSON line written per event by monitor --json.
type eventView struct {
	Kind                string                   `json:"kind"`
	Time                time.Time                `json:"time"`
	Connected           *bool                    `json:"connected,omitempty"`
	Error               string                   `json:"error,omitempty"`
	Orientation         *orientationView         `json:"orientation,omitempty"`
	CompassHeading      *float64                 `json:"compass_heading,omitempty"`
	Acceleration        *accelerationView        `json:"acceleration,omitempty"`
	GeoFix              *geoFixView              `json:"geo_fix,omitempty"`
	Magnetic            *magneticView            `json:"magnetic,omitempty"`
	MagneticCalibration *magneticCalibrationView `json:"magnetic_calibration,omitempty"`
	Sensors             string                   `json:"sensors,omitempty"`
}

func newEventView(e events.Event) eventView {
	v := eventView{Kind: e.Kind.String(), Time: e.Time}
	switch e.Kind {
	case events.ConnectionChanged:
		connected := e.Connected
		v.Connected = &connected
	case events.ConnectionFailed, events.AuthenticationFailed:
		if e.Err != nil {
			v.Error = e.Err.Error()
		}
	case events.OrientationChanged, events.Calibrated:
		v.Orientation = newOrientationView(e.Orientation)
	case events.CompassChanged:
		heading := e.CompassHeading
		v.CompassHeading = &heading
	case events.AccelerometerChanged:
		a := e.Acceleration
		v.Acceleration = &accelerationView{X: a.X, Y: a.Y, Z: a.Z}
	case events.GeoFixChanged:
		v.GeoFix = newGeoFixView(e.GeoFix)
	case events.MagnetometerChanged:
		m := e.Magnetic
		v.Magnetic = &magneticView{X: m.X, Y: m.Y, Z: m.Z, FieldStrength: m.FieldStrength}
	case events.MagnetometerCalibrationChanged:
		c := e.MagneticCalibration
		v.MagneticCalibration = &magneticCalibrationView{Status: c.Status, X: c.X, Y: c.Y, Z: c.Z}
	case events.SensorsListenedToChanged:
		v.Sensors = e.Sensors.String()
	}
	return v
}

func describeEvent(e events.Event, pal palette) string {
	switch e.Kind {
	case events.ConnectionChanged:
		if e.Connected {
			return pal.good.Sprint("connected")
		}
		return pal.bad.Sprint("disconnected")
	case events.ConnectionFailed, events.AuthenticationFailed:
		return pal.bad.Sprint(FormatUserError(e.Err))
	case events.OrientationChanged, events.Calibrated:
		return formatOrientation(e.Orientation)
	case events.CompassChanged:
		return fmt.Sprintf("heading=%.1f", e.CompassHeading)
	case events.AccelerometerChanged:
		return formatAcceleration(e.Acceleration)
	case events.GeoFixChanged:
		return formatGeoFix(e.GeoFix)
	case events.MagnetometerChanged:
		return formatMagnetic(e.Magnetic)
	case events.MagnetometerCalibrationChanged:
		return formatMagneticCalibration(e.MagneticCalibration)
	case events.SensorsListenedToChanged:
		return e.Sensors.String()
	}
	return ""
}

// formatEvent renders one event as a single text line.
func formatEvent(e events.Event, pal palette) string {
	kind := fmt.Sprintf("%-30s", e.Kind.String())
	line := e.Time.Format("15:04:05.000") + " " + pal.kind.Sprint(kind) + " " + describeEvent(e, pal)
	return strings.TrimRight(line, " ")
}
