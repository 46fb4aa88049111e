package device

import (
	"errors"
	"fmt"
)

// Platform failures. Adapters wrap the underlying error with one of these.
var (
	ErrTimeout      = errors.New("timeout")
	ErrUnsupported  = errors.New("unsupported")
	ErrBluetoothOff = errors.New("bluetooth is turned off")
)

// NotFoundError reports a service or characteristic the peripheral does not
// expose. UUIDs is the lookup path, service first.
type NotFoundError struct {
	Resource string
	UUIDs    []string
}

func (e *NotFoundError) Error() string {
	switch len(e.UUIDs) {
	case 0:
		return e.Resource + " not found"
	case 1:
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	default:
		return fmt.Sprintf("%s %q not found in service %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], e.UUIDs[0])
	}
}

// ConnectionState names a link precondition that did not hold.
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	NotInitialized   ConnectionState = "not_initialized"
)

// ConnectionError is a link precondition failure. Two ConnectionErrors match
// under errors.Is when their states are equal, whatever the message.
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrNotInitialized   = &ConnectionError{State: NotInitialized}
)

func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return string(e.State) + ": " + e.Msg
}

func (e *ConnectionError) Is(target error) bool {
	t, ok := target.(*ConnectionError)
	return ok && e != nil && t != nil && e.State == t.State
}

// IsConnectionState reports whether err carries a ConnectionError in state.
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	return errors.As(err, &cerr) && cerr.State == state
}
