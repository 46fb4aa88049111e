package headset

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a PeripheralError.
type ErrorCode string

const (
	CodeAlreadyAttached             ErrorCode = "already_attached"
	CodeAlreadyDetached             ErrorCode = "already_detached"
	CodeAttachFailed                ErrorCode = "attach_failed"
	CodeAuthenticateSubscribeFailed ErrorCode = "authenticate_subscribe_failed"
	CodeSubscribeFailed             ErrorCode = "subscribe_failed"
	CodeUnsubscribeFailed           ErrorCode = "unsubscribe_failed"
	CodeNotConnected                ErrorCode = "not_connected"
)

// PeripheralError is returned by Engine operations. Err holds the platform
// cause when there is one.
type PeripheralError struct {
	Code ErrorCode
	Msg  string
	Err  error
}

func (e *PeripheralError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.Code)
	if e.Msg != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *PeripheralError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is allows errors.Is to compare PeripheralError values by Code
func (e *PeripheralError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*PeripheralError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinels for errors.Is.
var (
	ErrAlreadyAttached             = &PeripheralError{Code: CodeAlreadyAttached}
	ErrAlreadyDetached             = &PeripheralError{Code: CodeAlreadyDetached}
	ErrAttachFailed                = &PeripheralError{Code: CodeAttachFailed}
	ErrAuthenticateSubscribeFailed = &PeripheralError{Code: CodeAuthenticateSubscribeFailed}
	ErrSubscribeFailed             = &PeripheralError{Code: CodeSubscribeFailed}
	ErrUnsubscribeFailed           = &PeripheralError{Code: CodeUnsubscribeFailed}
	ErrNotConnected                = &PeripheralError{Code: CodeNotConnected}
)

// ErrOrientationOutOfRange reports a calibrated angle that the wrap rule could
// not bring into [0,360). It means the input was outside (-720,720).
var ErrOrientationOutOfRange = errors.New("calibrated orientation out of range")

func newError(code ErrorCode, msg string, err error) *PeripheralError {
	return &PeripheralError{Code: code, Msg: msg, Err: err}
}
