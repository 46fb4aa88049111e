package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/srg/ihslink/internal/device"
)

// NormalizeError maps go-ble error strings onto the device sentinels so callers
// can use errors.Is. The original error stays in the message.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", device.ErrTimeout, err)
	}

	msg := strings.ToLower(err.Error())
	for _, m := range errorMappings {
		if strings.Contains(msg, m.fragment) {
			return fmt.Errorf("%w: %v", m.sentinel, err)
		}
	}
	return err
}

// Fragments are lowercase. First match wins.
var errorMappings = []struct {
	fragment string
	sentinel error
}{
	{"have=4 want=5", device.ErrBluetoothOff},
	{"bluetooth is turned off", device.ErrBluetoothOff},
	{"device already connected", device.ErrAlreadyConnected},
	{"connection is not initialized", device.ErrNotInitialized},
	{"device not connected", device.ErrNotConnected},
	{"disconnected", device.ErrNotConnected},
	{"not supported", device.ErrUnsupported},
}
