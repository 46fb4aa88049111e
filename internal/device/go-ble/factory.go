package goble

import "github.com/go-ble/ble"

// DeviceFactory creates the platform ble.Device. Tests replace it with a mock.
//
//nolint:gochecknoglobals // swapped by testutils.MockBLEPeripheralSuite
var DeviceFactory = newPlatformDevice

func newDevice() (ble.Device, error) {
	dev, err := DeviceFactory()
	if err != nil {
		return nil, NormalizeError(err)
	}
	return dev, nil
}
