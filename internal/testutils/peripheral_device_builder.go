package testutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	blelib "github.com/go-ble/ble"
	"github.com/srg/ihslink/internal/bledb"
	"github.com/srg/ihslink/internal/testutils/mocks"
	"github.com/stretchr/testify/mock"
)

// CharacteristicConfig is one mocked characteristic.
type CharacteristicConfig struct {
	UUID       string `json:"uuid"`
	Properties string `json:"properties,omitempty"` // e.g. "read,write,notify"
	Value      []byte `json:"value,omitempty"`
}

type ServiceConfig struct {
	UUID            string                 `json:"uuid"`
	Characteristics []CharacteristicConfig `json:"characteristics,omitempty"`
}

type DeviceProfileConfig struct {
	Services []ServiceConfig `json:"services"`
}

// PeripheralDeviceBuilder builds a mocked ble.Device whose Dial returns a
// fresh MockClient serving the configured profile. Clients are kept so tests
// can push notifications or simulate link loss.
type PeripheralDeviceBuilder struct {
	t                  *testing.T
	profile            DeviceProfileConfig
	scanAdvertisements []blelib.Advertisement
	scanErr            error

	mu        sync.Mutex
	dialFails int
	dialErr   error
	clients   []*mocks.MockClient
	bleChars  map[string]*blelib.Characteristic
}

func NewPeripheralDeviceBuilder(t *testing.T) *PeripheralDeviceBuilder {
	return &PeripheralDeviceBuilder{t: t}
}

func (b *PeripheralDeviceBuilder) WithService(uuid string) *PeripheralDeviceBuilder {
	b.profile.Services = append(b.profile.Services, ServiceConfig{UUID: uuid})
	return b
}

// WithCharacteristic adds a characteristic to the last added service.
func (b *PeripheralDeviceBuilder) WithCharacteristic(uuid, properties string, value []byte) *PeripheralDeviceBuilder {
	if len(b.profile.Services) == 0 {
		panic("WithCharacteristic: no service added yet, call WithService first")
	}
	last := &b.profile.Services[len(b.profile.Services)-1]
	last.Characteristics = append(last.Characteristics, CharacteristicConfig{
		UUID:       uuid,
		Properties: properties,
		Value:      value,
	})
	return b
}

// WithValue replaces the value served for a characteristic added earlier.
func (b *PeripheralDeviceBuilder) WithValue(uuid string, value []byte) *PeripheralDeviceBuilder {
	for i := range b.profile.Services {
		chars := b.profile.Services[i].Characteristics
		for j := range chars {
			if bledb.EqualUUID(chars[j].UUID, uuid) {
				chars[j].Value = value
				return b
			}
		}
	}
	panic("WithValue: unknown characteristic " + uuid)
}

// WithHeadsetProfile adds the headset GATT profile: authentication, IMU, GPS,
// device information and battery services.
func (b *PeripheralDeviceBuilder) WithHeadsetProfile() *PeripheralDeviceBuilder {
	return b.
		WithService(bledb.SystemService).
		WithCharacteristic(bledb.NonceChar, "read", LittleEndianU32(DefaultNonce)).
		WithCharacteristic(bledb.KeyChar, "write", nil).
		WithService(bledb.IMUService).
		WithCharacteristic(bledb.ComboHprChar, "read,notify", ComboHprFrame(0, 0, 0, 0, 0, 0, 0)).
		WithCharacteristic(bledb.AccVectorChar, "read,notify", make([]byte, 6)).
		WithCharacteristic(bledb.MagVectorChar, "read,notify", make([]byte, 8)).
		WithCharacteristic(bledb.MagCalibrationChar, "read,notify", make([]byte, 7)).
		WithCharacteristic(bledb.MagParamsChar, "read", make([]byte, 6)).
		WithService(bledb.GPSService).
		WithCharacteristic(bledb.GPSAllInOne, "read,notify", make([]byte, 16)).
		WithService(bledb.DeviceInfoService).
		WithCharacteristic(bledb.ModelNumberChar, "read", []byte("IHS-1")).
		WithCharacteristic(bledb.FirmwareRevChar, "read", []byte("2.1.0")).
		WithService(bledb.BatteryService).
		WithCharacteristic(bledb.BatteryLevelChar, "read,notify", []byte{87})
}

// FromJSON replaces the device profile.
func (b *PeripheralDeviceBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *PeripheralDeviceBuilder {
	var config DeviceProfileConfig
	if err := json.Unmarshal([]byte(fmt.Sprintf(jsonStrFmt, args...)), &config); err != nil {
		panic(fmt.Sprintf("PeripheralDeviceBuilder.FromJSON: failed to unmarshal: %v", err))
	}
	b.profile = config
	return b
}

// FailDials makes the next n Dial calls fail with err.
func (b *PeripheralDeviceBuilder) FailDials(n int, err error) *PeripheralDeviceBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dialFails = n
	b.dialErr = err
	return b
}

// FailScan makes Scan return err after delivering the advertisements.
func (b *PeripheralDeviceBuilder) FailScan(err error) *PeripheralDeviceBuilder {
	b.scanErr = err
	return b
}

func (b *PeripheralDeviceBuilder) WithScanAdvertisements() *AdvertisementArrayBuilder[*PeripheralDeviceBuilder] {
	ab := NewAdvertisementArrayBuilder[*PeripheralDeviceBuilder]()
	ab.parent = b
	ab.buildFunc = func(parent *PeripheralDeviceBuilder, ads []blelib.Advertisement) *PeripheralDeviceBuilder {
		parent.scanAdvertisements = append(parent.scanAdvertisements, ads...)
		return parent
	}
	return ab
}

func parseCharacteristicProperties(props string) blelib.Property {
	if props == "" {
		return blelib.CharRead | blelib.CharWrite | blelib.CharNotify
	}
	var p blelib.Property
	for _, name := range strings.Split(props, ",") {
		switch strings.TrimSpace(name) {
		case "read":
			p |= blelib.CharRead
		case "write":
			p |= blelib.CharWrite
		case "write-nr":
			p |= blelib.CharWriteNR
		case "notify":
			p |= blelib.CharNotify
		case "indicate":
			p |= blelib.CharIndicate
		default:
			panic(fmt.Sprintf("unknown characteristic property %q", name))
		}
	}
	return p
}

// Build creates the mocked ble.Device. Every Dial builds a new client with a
// fresh copy of the profile, like a real reconnect.
func (b *PeripheralDeviceBuilder) Build() blelib.Device {
	dev := &mocks.MockDevice{}

	dev.On("Dial", mock.Anything, mock.Anything).Return(func() (blelib.Client, error) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.dialFails > 0 {
			b.dialFails--
			return nil, b.dialErr
		}
		c := b.newClient()
		b.clients = append(b.clients, c)
		return c, nil
	}, nil).Maybe()

	dev.On("Scan", mock.Anything, mock.Anything, mock.MatchedBy(func(handler blelib.AdvHandler) bool {
		for _, adv := range b.scanAdvertisements {
			handler(adv)
		}
		return true
	})).Return(b.scanErr).Maybe()

	dev.On("Stop").Return(nil).Maybe()
	return dev
}

// newClient must hold b.mu.
func (b *PeripheralDeviceBuilder) newClient() *mocks.MockClient {
	client := &mocks.MockClient{}
	b.bleChars = make(map[string]*blelib.Characteristic)

	profile := &blelib.Profile{}
	for _, sc := range b.profile.Services {
		svc := &blelib.Service{UUID: blelib.MustParse(sc.UUID)}
		for _, cc := range sc.Characteristics {
			char := &blelib.Characteristic{
				UUID:     blelib.MustParse(cc.UUID),
				Property: parseCharacteristicProperties(cc.Properties),
				Value:    cc.Value,
			}
			svc.Characteristics = append(svc.Characteristics, char)
			b.bleChars[bledb.NormalizeUUID(cc.UUID)] = char

			if char.Property&blelib.CharRead != 0 {
				client.On("ReadCharacteristic", char).Return(char.Value, nil).Maybe()
			} else {
				client.On("ReadCharacteristic", char).Return(nil, errors.New("characteristic does not support read")).Maybe()
			}
			client.On("WriteCharacteristic", char, mock.Anything, mock.Anything).Return(nil).Maybe()
			client.On("Subscribe", char, mock.Anything, mock.Anything).Return(nil).Maybe()
			client.On("Unsubscribe", char, mock.Anything).Return(nil).Maybe()
		}
		profile.Services = append(profile.Services, svc)
	}

	client.On("DiscoverProfile", true).Return(profile, nil).Maybe()
	client.On("CancelConnection").Return(nil).Maybe()
	return client
}

// Clients returns every client handed out by Dial, oldest first.
func (b *PeripheralDeviceBuilder) Clients() []*mocks.MockClient {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*mocks.MockClient(nil), b.clients...)
}

// LastClient returns the most recently dialed client or nil.
func (b *PeripheralDeviceBuilder) LastClient() *mocks.MockClient {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.clients) == 0 {
		return nil
	}
	return b.clients[len(b.clients)-1]
}

// Characteristic returns the ble.Characteristic the last client serves for uuid.
func (b *PeripheralDeviceBuilder) Characteristic(uuid string) *blelib.Characteristic {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bleChars[bledb.NormalizeUUID(uuid)]
}

func (b *PeripheralDeviceBuilder) GetServices() []ServiceConfig {
	return b.profile.Services
}
