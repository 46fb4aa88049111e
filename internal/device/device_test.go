package device

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundError(t *testing.T) {
	assert.Equal(t, "service not found", (&NotFoundError{Resource: "service"}).Error())
	assert.Equal(t, `service "180a" not found`, (&NotFoundError{Resource: "service", UUIDs: []string{"180a"}}).Error())
	assert.Equal(t, `characteristic "2a24" not found in service "180a"`,
		(&NotFoundError{Resource: "characteristic", UUIDs: []string{"180a", "2a24"}}).Error())

	var nf *NotFoundError
	wrapped := fmt.Errorf("resolve: %w", &NotFoundError{Resource: "service", UUIDs: []string{"180f"}})
	assert.True(t, errors.As(wrapped, &nf), "NotFoundError MUST survive wrapping")
	assert.Equal(t, []string{"180f"}, nf.UUIDs)
}

func TestConnectionErrorIs(t *testing.T) {
	err := fmt.Errorf("%w: peripheral dropped the link", ErrNotConnected)

	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NotErrorIs(t, err, ErrAlreadyConnected)
	assert.True(t, IsConnectionState(err, NotConnected))
	assert.False(t, IsConnectionState(errors.New("other"), NotConnected))

	custom := &ConnectionError{State: NotConnected, Msg: "gone"}
	assert.ErrorIs(t, custom, ErrNotConnected, "errors with the same state MUST match")
	assert.Equal(t, "not_connected: gone", custom.Error())
	assert.Equal(t, "already_connected", ErrAlreadyConnected.Error())
}

func TestDeviceHandleDisplayName(t *testing.T) {
	assert.Equal(t, "IHS-1", DeviceHandle{Name: "IHS-1", Address: "AA"}.DisplayName())
	assert.Equal(t, "AA", DeviceHandle{Address: "AA"}.DisplayName())
}

func TestConnectionStatusString(t *testing.T) {
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "disconnected", StatusDisconnected.String())
}
