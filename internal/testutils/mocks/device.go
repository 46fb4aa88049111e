// Package mocks holds testify doubles for the go-ble interfaces. Only the
// methods the adapter calls are mocked; the embedded interface value is nil,
// so any other call panics.
package mocks

import (
	"context"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/mock"
)

// MockDevice mocks ble.Device.
type MockDevice struct {
	mock.Mock
	ble.Device
}

func (m *MockDevice) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	args := m.Called(ctx, allowDup, h)
	return args.Error(0)
}

func (m *MockDevice) Dial(ctx context.Context, a ble.Addr) (ble.Client, error) {
	args := m.Called(ctx, a)
	if dial, ok := args.Get(0).(func() (ble.Client, error)); ok {
		return dial()
	}
	if c, ok := args.Get(0).(ble.Client); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDevice) Stop() error {
	args := m.Called()
	return args.Error(0)
}
