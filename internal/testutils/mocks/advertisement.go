package mocks

import (
	"github.com/go-ble/ble"
	"github.com/stretchr/testify/mock"
)

// MockAdvertisement mocks ble.Advertisement.
type MockAdvertisement struct {
	mock.Mock
	ble.Advertisement
}

func (m *MockAdvertisement) LocalName() string {
	return m.Called().String(0)
}

func (m *MockAdvertisement) ManufacturerData() []byte {
	b, _ := m.Called().Get(0).([]byte)
	return b
}

func (m *MockAdvertisement) Services() []ble.UUID {
	u, _ := m.Called().Get(0).([]ble.UUID)
	return u
}

func (m *MockAdvertisement) TxPowerLevel() int {
	return m.Called().Int(0)
}

func (m *MockAdvertisement) Connectable() bool {
	return m.Called().Bool(0)
}

func (m *MockAdvertisement) RSSI() int {
	return m.Called().Int(0)
}

func (m *MockAdvertisement) Addr() ble.Addr {
	a, _ := m.Called().Get(0).(ble.Addr)
	return a
}

// MockAddr mocks ble.Addr.
type MockAddr struct {
	mock.Mock
}

func (m *MockAddr) String() string {
	return m.Called().String(0)
}
