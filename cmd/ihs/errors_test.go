package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/srg/ihslink/internal/auth"
	"github.com/srg/ihslink/internal/device"
	"github.com/srg/ihslink/internal/session"
)

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"bare sentinel", device.ErrBluetoothOff, "Bluetooth is turned off, enable it and try again"},
		{
			"wrapped sentinel keeps cause",
			fmt.Errorf("%w: hci: have=4 want=5", device.ErrBluetoothOff),
			"Bluetooth is turned off, enable it and try again (bluetooth is turned off: hci: have=4 want=5)",
		},
		{
			"authentication",
			fmt.Errorf("%w after 5 attempts: %w", session.ErrAuthenticationFailed, auth.ErrKeyWrite),
			"the headset rejected authentication (authentication failed after 5 attempts: key write failed)",
		},
		{"deadline", fmt.Errorf("read: %w", context.DeadlineExceeded), "the headset did not respond in time (read: context deadline exceeded)"},
		{
			"missing characteristic",
			fmt.Errorf("read: %w", &device.NotFoundError{Resource: "characteristic", UUIDs: []string{"180f", "2a19"}}),
			"the headset has no characteristic 2a19 (Battery Level)",
		},
		{"connection lost", ErrConnectionLost, "connection to the headset was lost"},
		{"unknown", errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatUserError(tt.err))
		})
	}
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.0", formatVersion("1.2.0"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}
