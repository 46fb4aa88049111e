// Package bledb holds the UUID registry for the headset: normalization of the
// many textual UUID forms and human-readable names for the standard and vendor
// services and characteristics the headset exposes.
package bledb

import (
	"strings"
)

// BaseUUIDSuffix is the Bluetooth SIG base UUID tail that 16-bit identifiers expand into.
const BaseUUIDSuffix = "-0000-1000-8000-00805f9b34fb"

const sigPrefix = "0000"
const sigSuffix = "00001000800000805f9b34fb"

// NormalizeUUID converts a UUID string to the internal lookup form: lowercase,
// no dashes, braces or 0x prefix. UUIDs in the Bluetooth SIG base form
// (0000xxxx-0000-1000-8000-00805f9b34fb) collapse to their 16-bit short form.
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(strings.TrimSpace(uuid))
	u = strings.TrimPrefix(u, "0x")
	u = strings.Trim(u, "{}")
	u = strings.ReplaceAll(u, "-", "")

	if len(u) == 32 && strings.HasPrefix(u, sigPrefix) && strings.HasSuffix(u, sigSuffix) {
		return u[4:8]
	}
	return u
}

// ExpandUUID returns the canonical dashed 128-bit form of uuid. Short 16-bit
// identifiers are expanded through the Bluetooth base UUID. Malformed input is
// returned normalized but otherwise untouched.
func ExpandUUID(uuid string) string {
	u := NormalizeUUID(uuid)
	switch len(u) {
	case 4:
		return sigPrefix + u + BaseUUIDSuffix
	case 32:
		return u[0:8] + "-" + u[8:12] + "-" + u[12:16] + "-" + u[16:20] + "-" + u[20:32]
	default:
		return u
	}
}

// EqualUUID reports whether a and b name the same UUID regardless of notation.
func EqualUUID(a, b string) bool {
	return NormalizeUUID(a) == NormalizeUUID(b)
}

// LookupService returns the known name for a service UUID, or "".
func LookupService(uuid string) string {
	return services[NormalizeUUID(uuid)]
}

// LookupCharacteristic returns the known name for a characteristic UUID, or "".
func LookupCharacteristic(uuid string) string {
	return characteristics[NormalizeUUID(uuid)]
}

// LookupDescriptor returns the known name for a descriptor UUID, or "".
func LookupDescriptor(uuid string) string {
	return descriptors[NormalizeUUID(uuid)]
}

var services = map[string]string{
	"1800": "Generic Access",
	"1801": "Generic Attribute",
	"180a": "Device Information",
	"180d": "Heart Rate",
	"180f": "Battery Service",

	"8f8fe6459e324e129150f6b488f6b5aa": "IHS System",
	"7ca251df137b41b291691c0215bea6de": "IHS IMU",
	"52466e96a001425a96b67d5795a1ea08": "IHS GPS",
}

var characteristics = map[string]string{
	"2a00": "Device Name",
	"2a01": "Appearance",
	"2a19": "Battery Level",
	"2a23": "System ID",
	"2a24": "Model Number String",
	"2a25": "Serial Number String",
	"2a26": "Firmware Revision String",
	"2a27": "Hardware Revision String",
	"2a28": "Software Revision String",
	"2a29": "Manufacturer Name String",
	"2a37": "Heart Rate Measurement",

	"96593bf7459b422a8808a17f678a5bec": "IHS Nonce",
	"9fc790c1c7bb49bf8d7a965267b5802f": "IHS Key",
	"35f59ce8f15241cdac5f8ce6d7e249f8": "IHS Features",
	"f38db2f6ade348059b4f00530e6452bb": "IHS Configuration",
	"95e0f0aab39046d585f301e2aaf4c10a": "IHS Statistics",
	"652949cea54e40b2b27b407d944e14e3": "IHS Update Interval",
	"32d9c336722b4ec5998f4f7dcf08f465": "IHS Magnetometer Vector",
	"e1f1e3bd96724213948d206c4fa9820f": "IHS Accelerometer Vector",
	"ad6486a9bceb4ebd9ca348b9a9675be5": "IHS Magnetometer Calibration",
	"919d5add298f4431acf99f67275f1455": "IHS Combo Heading Pitch Roll",
	"760d93e8476d4d7ca894b95112d16aea": "IHS Magnetometer Parameters",
	"e08b048363eb492086d5c1e2b5ae6e72": "IHS Magnetometer Distortion Parameters",
	"ca00ace51f6141c282e3a4d4fe416d31": "IHS GPS All-In-One",
	"7b5558b1075e4b37b773fc48773ba9b4": "IHS GPS RTCM",
}

var descriptors = map[string]string{
	"2900": "Characteristic Extended Properties",
	"2901": "Characteristic User Descriptor",
	"2902": "Client Characteristic Configuration",
	"2904": "Characteristic Presentation Format",
}
