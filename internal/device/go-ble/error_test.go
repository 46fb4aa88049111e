package goble_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/srg/ihslink/internal/device"
	goble "github.com/srg/ihslink/internal/device/go-ble"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"central manager has invalid state: have=4 want=5: is Bluetooth turned on?", device.ErrBluetoothOff},
		{"Bluetooth is turned off", device.ErrBluetoothOff},
		{"device not connected", device.ErrNotConnected},
		{"peripheral disconnected", device.ErrNotConnected},
		{"device already connected", device.ErrAlreadyConnected},
		{"connection is not initialized", device.ErrNotInitialized},
		{"operation not supported", device.ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := goble.NormalizeError(errors.New(tt.msg))
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), tt.msg, "original message MUST be kept")
		})
	}

	assert.NoError(t, goble.NormalizeError(nil))

	other := errors.New("att: invalid handle")
	assert.Same(t, other, goble.NormalizeError(other), "unknown errors MUST pass through")

	timeout := goble.NormalizeError(fmt.Errorf("dial: %w", context.DeadlineExceeded))
	assert.ErrorIs(t, timeout, device.ErrTimeout)
}
