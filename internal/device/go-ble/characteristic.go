package goble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/srg/ihslink/internal/bledb"
	"github.com/srg/ihslink/internal/device"
)

// DefaultReadTimeout bounds characteristic operations when the caller's context has no deadline.
const DefaultReadTimeout = 5 * time.Second

// BLECharacteristic is a characteristic on a BLEPeripheral. The underlying
// ble.Characteristic handle is replaced on reconnect; registered value
// handlers survive it.
type BLECharacteristic struct {
	uuid       string
	knownName  string
	props      ble.Property
	properties device.Properties
	owner      *BLEPeripheral

	mu        sync.RWMutex
	char      *ble.Characteristic
	value     []byte
	notifying bool
	handlers  map[int]device.ValueHandler
	nextID    int
}

func newCharacteristic(c *ble.Characteristic, owner *BLEPeripheral) *BLECharacteristic {
	raw := c.UUID.String()
	return &BLECharacteristic{
		uuid:       device.NormalizeUUID(raw),
		knownName:  bledb.LookupCharacteristic(raw),
		props:      c.Property,
		properties: NewProperties(c.Property),
		owner:      owner,
		char:       c,
		handlers:   make(map[int]device.ValueHandler),
	}
}

func (c *BLECharacteristic) UUID() string                     { return c.uuid }
func (c *BLECharacteristic) KnownName() string                { return c.knownName }
func (c *BLECharacteristic) GetProperties() device.Properties { return c.properties }

// refresh swaps in the handle discovered after a reconnect. The remote
// notification state is gone with the old link.
func (c *BLECharacteristic) refresh(char *ble.Characteristic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.char = char
	c.notifying = false
}

func (c *BLECharacteristic) handle() *ble.Characteristic {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.char
}

// Read returns the characteristic value. Cached mode serves the last value
// seen by a read or notification when there is one.
func (c *BLECharacteristic) Read(ctx context.Context, mode device.CacheMode) ([]byte, error) {
	if mode == device.Cached {
		c.mu.RLock()
		cached := c.value
		c.mu.RUnlock()
		if cached != nil {
			return append([]byte(nil), cached...), nil
		}
	}

	client, err := c.owner.currentClient()
	if err != nil {
		return nil, err
	}
	char := c.handle()

	var data []byte
	err = c.run(ctx, "read", func() error {
		var rerr error
		data, rerr = client.ReadCharacteristic(char)
		return rerr
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.value = append([]byte(nil), data...)
	c.mu.Unlock()
	return data, nil
}

func (c *BLECharacteristic) Write(ctx context.Context, data []byte, withResponse bool) error {
	client, err := c.owner.currentClient()
	if err != nil {
		return err
	}
	char := c.handle()
	return c.run(ctx, "write", func() error {
		return client.WriteCharacteristic(char, data, !withResponse)
	})
}

// SetNotify enables or disables remote notifications. Calling it with the
// current state is a no-op.
func (c *BLECharacteristic) SetNotify(ctx context.Context, enabled bool) error {
	c.mu.RLock()
	already := c.notifying == enabled
	c.mu.RUnlock()
	if already {
		return nil
	}

	client, err := c.owner.currentClient()
	if err != nil {
		return err
	}
	char := c.handle()
	ind := indicateOnly(c.props)

	op := "unsubscribe"
	fn := func() error { return client.Unsubscribe(char, ind) }
	if enabled {
		op = "subscribe"
		fn = func() error { return client.Subscribe(char, ind, c.dispatch) }
	}
	if err := c.run(ctx, op, fn); err != nil {
		return err
	}

	c.mu.Lock()
	c.notifying = enabled
	c.mu.Unlock()
	return nil
}

func (c *BLECharacteristic) OnValueChanged(fn device.ValueHandler) (remove func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.handlers, id)
			c.mu.Unlock()
		})
	}
}

// dispatch runs on the go-ble notification goroutine. Each handler gets its
// own copy of the payload.
func (c *BLECharacteristic) dispatch(data []byte) {
	ts := time.Now()

	c.mu.Lock()
	c.value = append(c.value[:0:0], data...)
	handlers := make([]device.ValueHandler, 0, len(c.handlers))
	for _, h := range c.handlers {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(append([]byte(nil), data...), ts)
	}
}

// run executes a blocking go-ble call and gives up when ctx is done. go-ble
// calls cannot be cancelled, so a late result is discarded.
func (c *BLECharacteristic) run(ctx context.Context, op string, fn func() error) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.owner.opts.ReadTimeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to %s characteristic %s: %w", op, c.uuid, NormalizeError(err))
		}
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s characteristic %s", device.ErrTimeout, op, c.uuid)
		}
		return ctx.Err()
	}
}
