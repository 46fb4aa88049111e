package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/srg/ihslink/internal/auth"
	"github.com/srg/ihslink/internal/device"
	"github.com/srg/ihslink/internal/headset"
	"github.com/srg/ihslink/internal/session"
)

// ErrConnectionLost means the link dropped while a command was streaming and
// the adapter did not bring it back.
var ErrConnectionLost = errors.New("connection lost")

// userMessages are checked in order; the first match wins.
var userMessages = []struct {
	target error
	msg    string
}{
	{device.ErrBluetoothOff, "Bluetooth is turned off, enable it and try again"},
	{device.ErrUnsupported, "Bluetooth LE is not supported on this platform"},
	{session.ErrAuthenticationFailed, "the headset rejected authentication"},
	{auth.ErrKeyWrite, "the headset rejected authentication"},
	{ErrConnectionLost, "connection to the headset was lost"},
	{device.ErrTimeout, "the headset did not respond in time"},
	{context.DeadlineExceeded, "the headset did not respond in time"},
	{headset.ErrAttachFailed, "could not connect to the headset"},
	{device.ErrNotConnected, "the headset is not connected"},
	{headset.ErrNotConnected, "the headset is not connected"},
}

// FormatUserError renders err as a single line for the terminal. Known
// failures get a plain explanation followed by the underlying cause.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var nf *device.NotFoundError
	if errors.As(err, &nf) && !errors.Is(err, headset.ErrAttachFailed) {
		return fmt.Sprintf("the headset has no %s %s", nf.Resource, device.DescribeUUID(lastUUID(nf.UUIDs)))
	}

	for _, m := range userMessages {
		if errors.Is(err, m.target) {
			if err == m.target {
				return m.msg
			}
			return fmt.Sprintf("%s (%v)", m.msg, err)
		}
	}
	return err.Error()
}

func lastUUID(uuids []string) string {
	if len(uuids) == 0 {
		return ""
	}
	return uuids[len(uuids)-1]
}
