package bledb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"short", "2a19", "2a19"},
		{"short upper with 0x", "0x2A19", "2a19"},
		{"padded", "  180f ", "180f"},
		{"sig base dashed", "0000180a-0000-1000-8000-00805f9b34fb", "180a"},
		{"sig base compact", "0000180a00001000800000805f9b34fb", "180a"},
		{"sig base braced", "{0000180A-0000-1000-8000-00805F9B34FB}", "180a"},
		{"vendor dashed", IMUService, "7ca251df137b41b291691c0215bea6de"},
		{"vendor upper", "8F8FE645-9E32-4E12-9150-F6B488F6B5AA", "8f8fe6459e324e129150f6b488f6b5aa"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeUUID(tt.input))
		})
	}
}

func TestExpandUUID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"16-bit device information", "0x180A", "0000180a-0000-1000-8000-00805f9b34fb"},
		{"16-bit battery level", "2a19", "00002a19-0000-1000-8000-00805f9b34fb"},
		{"vendor compact", "919D5ADD298F4431ACF99F67275F1455", ComboHprChar},
		{"vendor dashed", GPSAllInOne, GPSAllInOne},
		{"malformed passes through", "xyz", "xyz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandUUID(tt.input))
		})
	}
}

func TestEqualUUID(t *testing.T) {
	assert.True(t, EqualUUID("0000180f-0000-1000-8000-00805f9b34fb", "0x180F"))
	assert.True(t, EqualUUID(NonceChar, "96593BF7459B422A8808A17F678A5BEC"))
	assert.False(t, EqualUUID("180f", "180a"))
	assert.False(t, EqualUUID(NonceChar, KeyChar))
}

// Every UUID the headset code addresses must have a name, whatever notation
// the platform reports it in.
func TestHeadsetUUIDsAreNamed(t *testing.T) {
	services := map[string]string{
		DeviceInfoService: "Device Information",
		BatteryService:    "Battery Service",
		SystemService:     "IHS System",
		IMUService:        "IHS IMU",
		GPSService:        "IHS GPS",
	}
	for uuid, want := range services {
		assert.Equal(t, want, LookupService(uuid), "service %s", uuid)
		assert.Equal(t, want, LookupService(ExpandUUID(uuid)), "expanded service %s", uuid)
	}

	chars := map[string]string{
		SystemIDChar:       "System ID",
		ModelNumberChar:    "Model Number String",
		SerialNumberChar:   "Serial Number String",
		FirmwareRevChar:    "Firmware Revision String",
		HardwareRevChar:    "Hardware Revision String",
		SoftwareRevChar:    "Software Revision String",
		ManufacturerChar:   "Manufacturer Name String",
		BatteryLevelChar:   "Battery Level",
		NonceChar:          "IHS Nonce",
		KeyChar:            "IHS Key",
		FeaturesChar:       "IHS Features",
		ConfigurationChar:  "IHS Configuration",
		StatisticsChar:     "IHS Statistics",
		UpdateIntervalChar: "IHS Update Interval",
		MagVectorChar:      "IHS Magnetometer Vector",
		AccVectorChar:      "IHS Accelerometer Vector",
		MagCalibrationChar: "IHS Magnetometer Calibration",
		ComboHprChar:       "IHS Combo Heading Pitch Roll",
		MagParamsChar:      "IHS Magnetometer Parameters",
		MagDistParamsChar:  "IHS Magnetometer Distortion Parameters",
		GPSAllInOne:        "IHS GPS All-In-One",
		GPSRtcmChar:        "IHS GPS RTCM",
	}
	for uuid, want := range chars {
		assert.Equal(t, want, LookupCharacteristic(uuid), "characteristic %s", uuid)
	}

	assert.Equal(t, "Client Characteristic Configuration", LookupDescriptor(ClientCharConfDesc))
	assert.Equal(t, "Client Characteristic Configuration", LookupDescriptor("00002902-0000-1000-8000-00805f9b34fb"))
}

func TestLookupUnknown(t *testing.T) {
	assert.Empty(t, LookupService("ffff"))
	assert.Empty(t, LookupCharacteristic(IMUService), "a service UUID MUST not resolve as a characteristic")
	assert.Empty(t, LookupDescriptor(BatteryLevelChar))
}
