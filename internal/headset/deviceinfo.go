package headset

import (
	"context"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/sirupsen/logrus"
	"github.com/srg/ihslink/internal/bledb"
	"github.com/srg/ihslink/internal/device"
)

// DeviceInfo is the content of the standard device-information and battery
// services. Absent characteristics leave their field empty.
type DeviceInfo struct {
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	Serial       string `json:"serial,omitempty"`
	Firmware     string `json:"firmware,omitempty"`
	Hardware     string `json:"hardware,omitempty"`
	Software     string `json:"software,omitempty"`
	SystemID     string `json:"system_id,omitempty"`
	BatteryLevel int    `json:"battery_level"`
	HasBattery   bool   `json:"has_battery"`
}

// Fields returns the populated fields in display order.
func (d DeviceInfo) Fields() *orderedmap.OrderedMap[string, string] {
	m := orderedmap.New[string, string]()
	add := func(k, v string) {
		if v != "" {
			m.Set(k, v)
		}
	}
	add("Manufacturer", d.Manufacturer)
	add("Model", d.Model)
	add("Serial", d.Serial)
	add("Firmware", d.Firmware)
	add("Hardware", d.Hardware)
	add("Software", d.Software)
	add("System ID", d.SystemID)
	if d.HasBattery {
		m.Set("Battery", strconv.Itoa(d.BatteryLevel)+"%")
	}
	return m
}

type infoField struct {
	uuid string
	set  func(*DeviceInfo, []byte)
}

var infoFields = []infoField{
	{bledb.ManufacturerChar, func(d *DeviceInfo, b []byte) { d.Manufacturer = text(b) }},
	{bledb.ModelNumberChar, func(d *DeviceInfo, b []byte) { d.Model = text(b) }},
	{bledb.SerialNumberChar, func(d *DeviceInfo, b []byte) { d.Serial = text(b) }},
	{bledb.FirmwareRevChar, func(d *DeviceInfo, b []byte) { d.Firmware = text(b) }},
	{bledb.HardwareRevChar, func(d *DeviceInfo, b []byte) { d.Hardware = text(b) }},
	{bledb.SoftwareRevChar, func(d *DeviceInfo, b []byte) { d.Software = text(b) }},
	{bledb.SystemIDChar, func(d *DeviceInfo, b []byte) { d.SystemID = hex.EncodeToString(b) }},
}

func text(b []byte) string {
	return strings.TrimRight(string(b), "\x00 ")
}

func readDeviceInfo(ctx context.Context, info, battery device.Service, logger *logrus.Logger) DeviceInfo {
	var d DeviceInfo
	if info != nil {
		for _, f := range infoFields {
			c, err := info.GetCharacteristic(f.uuid)
			if err != nil {
				continue
			}
			data, err := c.Read(ctx, device.Cached)
			if err != nil {
				logger.WithFields(logrus.Fields{
					"characteristic": f.uuid,
					"error":          err,
				}).Warn("Failed to read device information")
				continue
			}
			f.set(&d, data)
		}
	}

	if battery != nil {
		c, err := battery.GetCharacteristic(bledb.BatteryLevelChar)
		if err == nil {
			data, err := c.Read(ctx, device.Uncached)
			switch {
			case err != nil:
				logger.WithField("error", err).Warn("Failed to read battery level")
			case len(data) > 0:
				d.BatteryLevel = int(data[0])
				d.HasBattery = true
			}
		}
	}
	return d
}

func isNotFound(err error) bool {
	var nf *device.NotFoundError
	return errors.As(err, &nf)
}
