package testutils

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/srg/ihslink/internal/bledb"
	"github.com/srg/ihslink/internal/device"
)

// FakeCharacteristic is an in-memory device.Characteristic with failure
// injection and call recording.
type FakeCharacteristic struct {
	uuid  string
	props device.Properties

	mu          sync.Mutex
	value       []byte
	readFn      func(mode device.CacheMode) ([]byte, error)
	readErr     error
	writeErr    error
	notifyErr   error
	notifyFn    func(ctx context.Context, enabled bool) error
	notifying   bool
	reads       []device.CacheMode
	writes      []FakeWrite
	notifyCalls []bool
	handlers    map[int]device.ValueHandler
	nextID      int
}

// FakeWrite records one Write call.
type FakeWrite struct {
	Data         []byte
	WithResponse bool
}

// NewFakeCharacteristic creates a characteristic holding value.
func NewFakeCharacteristic(uuid string, value []byte) *FakeCharacteristic {
	return &FakeCharacteristic{
		uuid:     device.NormalizeUUID(uuid),
		value:    value,
		handlers: make(map[int]device.ValueHandler),
	}
}

func (c *FakeCharacteristic) UUID() string                     { return c.uuid }
func (c *FakeCharacteristic) KnownName() string                { return bledb.LookupCharacteristic(c.uuid) }
func (c *FakeCharacteristic) GetProperties() device.Properties { return c.props }

// WithProperties sets the value returned by GetProperties.
func (c *FakeCharacteristic) WithProperties(p device.Properties) *FakeCharacteristic {
	c.props = p
	return c
}

func (c *FakeCharacteristic) Read(ctx context.Context, mode device.CacheMode) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.reads = append(c.reads, mode)
	fn, err, value := c.readFn, c.readErr, c.value
	c.mu.Unlock()

	if fn != nil {
		return fn(mode)
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (c *FakeCharacteristic) Write(ctx context.Context, data []byte, withResponse bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	c.writes = append(c.writes, FakeWrite{Data: buf, WithResponse: withResponse})
	return c.writeErr
}

func (c *FakeCharacteristic) SetNotify(ctx context.Context, enabled bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.notifyCalls = append(c.notifyCalls, enabled)
	fn := c.notifyFn
	c.mu.Unlock()

	var fnErr error
	if fn != nil {
		fnErr = fn(ctx, enabled)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if fnErr != nil {
		return fnErr
	}
	if c.notifyErr != nil {
		return c.notifyErr
	}
	c.notifying = enabled
	return nil
}

func (c *FakeCharacteristic) OnValueChanged(fn device.ValueHandler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.handlers, id)
			c.mu.Unlock()
		})
	}
}

// Notify delivers data to every registered handler, regardless of the
// notifying flag, the way a late platform callback would.
func (c *FakeCharacteristic) Notify(data []byte) {
	c.mu.Lock()
	ids := make([]int, 0, len(c.handlers))
	for id := range c.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]device.ValueHandler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, c.handlers[id])
	}
	c.value = data
	c.mu.Unlock()

	ts := time.Now()
	for _, h := range handlers {
		buf := make([]byte, len(data))
		copy(buf, data)
		h(buf, ts)
	}
}

// SetValue replaces the value served by Read.
func (c *FakeCharacteristic) SetValue(v []byte) {
	c.mu.Lock()
	c.value = v
	c.mu.Unlock()
}

// SetReadFunc overrides Read.
func (c *FakeCharacteristic) SetReadFunc(fn func(mode device.CacheMode) ([]byte, error)) {
	c.mu.Lock()
	c.readFn = fn
	c.mu.Unlock()
}

// SetNotifyFunc runs fn inside every SetNotify call, after the call is
// recorded and without holding the characteristic lock. A non-nil error
// fails the call.
func (c *FakeCharacteristic) SetNotifyFunc(fn func(ctx context.Context, enabled bool) error) {
	c.mu.Lock()
	c.notifyFn = fn
	c.mu.Unlock()
}

func (c *FakeCharacteristic) FailRead(err error) {
	c.mu.Lock()
	c.readErr = err
	c.mu.Unlock()
}

func (c *FakeCharacteristic) FailWrite(err error) {
	c.mu.Lock()
	c.writeErr = err
	c.mu.Unlock()
}

func (c *FakeCharacteristic) FailNotify(err error) {
	c.mu.Lock()
	c.notifyErr = err
	c.mu.Unlock()
}

func (c *FakeCharacteristic) Notifying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notifying
}

func (c *FakeCharacteristic) HandlerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers)
}

func (c *FakeCharacteristic) Reads() []device.CacheMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]device.CacheMode(nil), c.reads...)
}

func (c *FakeCharacteristic) Writes() []FakeWrite {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]FakeWrite(nil), c.writes...)
}

func (c *FakeCharacteristic) NotifyCalls() []bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bool(nil), c.notifyCalls...)
}

// FakeService is an in-memory device.Service.
type FakeService struct {
	uuid  string
	order []string
	chars map[string]*FakeCharacteristic
}

func NewFakeService(uuid string) *FakeService {
	return &FakeService{uuid: device.NormalizeUUID(uuid), chars: make(map[string]*FakeCharacteristic)}
}

// Add adds a characteristic and returns it.
func (s *FakeService) Add(uuid string, value []byte) *FakeCharacteristic {
	c := NewFakeCharacteristic(uuid, value)
	if _, ok := s.chars[c.uuid]; !ok {
		s.order = append(s.order, c.uuid)
	}
	s.chars[c.uuid] = c
	return c
}

// Remove drops a characteristic so lookups fail.
func (s *FakeService) Remove(uuid string) {
	delete(s.chars, device.NormalizeUUID(uuid))
}

func (s *FakeService) UUID() string      { return s.uuid }
func (s *FakeService) KnownName() string { return bledb.LookupService(s.uuid) }

func (s *FakeService) GetCharacteristic(uuid string) (device.Characteristic, error) {
	c, ok := s.chars[device.NormalizeUUID(uuid)]
	if !ok {
		return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{s.uuid, uuid}}
	}
	return c, nil
}

func (s *FakeService) GetCharacteristics() []device.Characteristic {
	out := make([]device.Characteristic, 0, len(s.order))
	for _, id := range s.order {
		if c, ok := s.chars[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Char returns the fake characteristic or nil.
func (s *FakeService) Char(uuid string) *FakeCharacteristic {
	return s.chars[device.NormalizeUUID(uuid)]
}

// FakePeripheral is an in-memory device.Peripheral whose connection status is
// driven by the test through SetStatus.
type FakePeripheral struct {
	handle device.DeviceHandle

	mu         sync.Mutex
	services   map[string]*FakeService
	resolveErr map[string]error
	status     device.ConnectionStatus
	watchers   map[int]func(device.ConnectionStatus)
	nextID     int
	closed     bool
}

func NewFakePeripheral(handle device.DeviceHandle) *FakePeripheral {
	return &FakePeripheral{
		handle:     handle,
		services:   make(map[string]*FakeService),
		resolveErr: make(map[string]error),
		watchers:   make(map[int]func(device.ConnectionStatus)),
	}
}

// AddService adds a service and returns it.
func (p *FakePeripheral) AddService(uuid string) *FakeService {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := NewFakeService(uuid)
	p.services[s.uuid] = s
	return s
}

// RemoveService drops a service so ResolveService fails with NotFoundError.
func (p *FakePeripheral) RemoveService(uuid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.services, device.NormalizeUUID(uuid))
}

// FailResolve makes ResolveService return err for uuid.
func (p *FakePeripheral) FailResolve(uuid string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolveErr[device.NormalizeUUID(uuid)] = err
}

// Service returns the fake service or nil.
func (p *FakePeripheral) Service(uuid string) *FakeService {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.services[device.NormalizeUUID(uuid)]
}

// Char returns the fake characteristic or nil.
func (p *FakePeripheral) Char(serviceUUID, charUUID string) *FakeCharacteristic {
	s := p.Service(serviceUUID)
	if s == nil {
		return nil
	}
	return s.Char(charUUID)
}

func (p *FakePeripheral) Handle() device.DeviceHandle { return p.handle }

func (p *FakePeripheral) ResolveService(ctx context.Context, uuid string) (device.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	key := device.NormalizeUUID(uuid)
	if err := p.resolveErr[key]; err != nil {
		return nil, err
	}
	s, ok := p.services[key]
	if !ok {
		return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{uuid}}
	}
	return s, nil
}

func (p *FakePeripheral) ConnectionStatus() device.ConnectionStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *FakePeripheral) WatchConnectionStatus(fn func(device.ConnectionStatus)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.watchers[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.watchers, id)
		p.mu.Unlock()
	}
}

// SetStatus changes the status and synchronously notifies watchers.
func (p *FakePeripheral) SetStatus(status device.ConnectionStatus) {
	p.mu.Lock()
	p.status = status
	ids := make([]int, 0, len(p.watchers))
	for id := range p.watchers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	watchers := make([]func(device.ConnectionStatus), 0, len(ids))
	for _, id := range ids {
		watchers = append(watchers, p.watchers[id])
	}
	p.mu.Unlock()

	for _, w := range watchers {
		w(status)
	}
}

// SetInitialStatus changes the status without notifying watchers.
func (p *FakePeripheral) SetInitialStatus(status device.ConnectionStatus) {
	p.mu.Lock()
	p.status = status
	p.mu.Unlock()
}

func (p *FakePeripheral) WatcherCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.watchers)
}

func (p *FakePeripheral) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *FakePeripheral) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// FakeCentral is an in-memory device.Central serving FakePeripherals.
type FakeCentral struct {
	mu          sync.Mutex
	peripherals map[string]*FakePeripheral
	order       []string
	openErr     error
	discoverErr error
	opens       int
}

func NewFakeCentral(peripherals ...*FakePeripheral) *FakeCentral {
	c := &FakeCentral{peripherals: make(map[string]*FakePeripheral)}
	for _, p := range peripherals {
		c.Add(p)
	}
	return c
}

func (c *FakeCentral) Add(p *FakePeripheral) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.peripherals[p.handle.Address]; !ok {
		c.order = append(c.order, p.handle.Address)
	}
	c.peripherals[p.handle.Address] = p
}

func (c *FakeCentral) FailOpen(err error) {
	c.mu.Lock()
	c.openErr = err
	c.mu.Unlock()
}

func (c *FakeCentral) FailDiscover(err error) {
	c.mu.Lock()
	c.discoverErr = err
	c.mu.Unlock()
}

func (c *FakeCentral) Opens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens
}

func (c *FakeCentral) Discover(ctx context.Context, serviceUUID string) ([]device.DeviceHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.discoverErr != nil {
		return nil, c.discoverErr
	}
	want := device.NormalizeUUID(serviceUUID)
	var out []device.DeviceHandle
	for _, addr := range c.order {
		p := c.peripherals[addr]
		if want == "" || containsUUID(p.handle.Services, want) {
			out = append(out, p.handle)
		}
	}
	return out, nil
}

func (c *FakeCentral) Open(ctx context.Context, handle device.DeviceHandle) (device.Peripheral, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opens++
	if c.openErr != nil {
		return nil, c.openErr
	}
	p, ok := c.peripherals[handle.Address]
	if !ok {
		return nil, &device.NotFoundError{Resource: "device", UUIDs: []string{handle.Address}}
	}
	return p, nil
}

func containsUUID(list []string, want string) bool {
	for _, u := range list {
		if device.NormalizeUUID(u) == want {
			return true
		}
	}
	return false
}
