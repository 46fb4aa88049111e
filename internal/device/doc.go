// Package device defines the contract between the headset protocol engine and
// the platform Bluetooth stack: discovery, peripherals, GATT services and
// characteristics, connection status and the shared error vocabulary.
//
// The go-ble backed implementation lives in the go-ble subpackage; tests use
// the in-memory fakes from internal/testutils.
package device
