package mocks

import (
	"sync"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/mock"
)

// MockClient mocks ble.Client. Disconnected is not a mock call: it returns a
// channel closed by TriggerDisconnect.
type MockClient struct {
	mock.Mock
	ble.Client

	once         sync.Once
	mu           sync.Mutex
	disconnected chan struct{}
	notify       map[*ble.Characteristic]ble.NotificationHandler
}

func (m *MockClient) init() {
	m.once.Do(func() {
		m.disconnected = make(chan struct{})
		m.notify = make(map[*ble.Characteristic]ble.NotificationHandler)
	})
}

func (m *MockClient) DiscoverProfile(force bool) (*ble.Profile, error) {
	args := m.Called(force)
	p, _ := args.Get(0).(*ble.Profile)
	return p, args.Error(1)
}

func (m *MockClient) ReadCharacteristic(c *ble.Characteristic) ([]byte, error) {
	args := m.Called(c)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *MockClient) WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error {
	args := m.Called(c, value, noRsp)
	return args.Error(0)
}

// Subscribe records h so tests can push notifications with Notify.
func (m *MockClient) Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error {
	m.init()
	args := m.Called(c, ind, h)
	if err := args.Error(0); err != nil {
		return err
	}
	m.mu.Lock()
	m.notify[c] = h
	m.mu.Unlock()
	return nil
}

func (m *MockClient) Unsubscribe(c *ble.Characteristic, ind bool) error {
	m.init()
	args := m.Called(c, ind)
	if err := args.Error(0); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.notify, c)
	m.mu.Unlock()
	return nil
}

func (m *MockClient) CancelConnection() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockClient) Disconnected() <-chan struct{} {
	m.init()
	return m.disconnected
}

// TriggerDisconnect simulates the platform reporting a lost link.
func (m *MockClient) TriggerDisconnect() {
	m.init()
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.disconnected:
	default:
		close(m.disconnected)
	}
}

// Notify delivers data to the handler subscribed for c. It reports false
// when nothing is subscribed.
func (m *MockClient) Notify(c *ble.Characteristic, data []byte) bool {
	m.init()
	m.mu.Lock()
	h, ok := m.notify[c]
	m.mu.Unlock()
	if ok {
		h(data)
	}
	return ok
}
