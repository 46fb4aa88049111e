package testutils

import (
	"encoding/json"
	"fmt"

	"github.com/go-ble/ble"
	"github.com/srg/ihslink/internal/testutils/mocks"
)

// AdvertisementBuilder builds mocked ble.Advertisement values. Every accessor
// gets an optional expectation, so unset fields read as zero values.
type AdvertisementBuilder struct {
	Name             string   `json:"name"`
	Address          string   `json:"address"`
	RSSI             int      `json:"rssi"`
	Services         []string `json:"services"`
	ManufacturerData []byte   `json:"manufacturerData"`
	TxPower          int      `json:"txPower"`
	Connectable      bool     `json:"connectable"`
}

func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{RSSI: -50, TxPower: 127, Connectable: true}
}

func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.Name = name
	return b
}

func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.Address = addr
	return b
}

func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.RSSI = rssi
	return b
}

// WithServices adds advertised service UUIDs in short or full form.
func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	b.Services = append(b.Services, uuids...)
	return b
}

func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.Connectable = c
	return b
}

// FromJSON overlays the fields present in the JSON document. Panics on
// invalid input.
func (b *AdvertisementBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *AdvertisementBuilder {
	if err := json.Unmarshal([]byte(fmt.Sprintf(jsonStrFmt, args...)), b); err != nil {
		panic(fmt.Sprintf("AdvertisementBuilder.FromJSON: %v", err))
	}
	return b
}

func (b *AdvertisementBuilder) Build() *mocks.MockAdvertisement {
	services := make([]ble.UUID, 0, len(b.Services))
	for _, s := range b.Services {
		services = append(services, ble.MustParse(s))
	}

	addr := &mocks.MockAddr{}
	addr.On("String").Return(b.Address).Maybe()

	adv := &mocks.MockAdvertisement{}
	adv.On("Addr").Return(addr).Maybe()
	adv.On("LocalName").Return(b.Name).Maybe()
	adv.On("RSSI").Return(b.RSSI).Maybe()
	adv.On("Services").Return(services).Maybe()
	adv.On("ManufacturerData").Return(b.ManufacturerData).Maybe()
	adv.On("TxPowerLevel").Return(b.TxPower).Maybe()
	adv.On("Connectable").Return(b.Connectable).Maybe()
	return adv
}

// AdvertisementArrayBuilder collects advertisements and hands them to its
// parent builder on Build.
//
//	peripheral := NewPeripheralDeviceBuilder(t).
//	    WithScanAdvertisements().
//	        WithNewAdvertisement().WithName("IHS-1").WithAddress("AA:BB:CC:DD:EE:FF").Build().
//	        Build().
//	    Build()
type AdvertisementArrayBuilder[T any] struct {
	advertisements []ble.Advertisement
	parent         T
	buildFunc      func(T, []ble.Advertisement) T
}

func NewAdvertisementArrayBuilder[T any]() *AdvertisementArrayBuilder[T] {
	return &AdvertisementArrayBuilder[T]{}
}

func (ab *AdvertisementArrayBuilder[T]) WithAdvertisements(ads ...ble.Advertisement) *AdvertisementArrayBuilder[T] {
	ab.advertisements = append(ab.advertisements, ads...)
	return ab
}

func (ab *AdvertisementArrayBuilder[T]) WithNewAdvertisement() *AdvertisementArrayBuilderItem[T] {
	return &AdvertisementArrayBuilderItem[T]{
		AdvertisementBuilder: NewAdvertisementBuilder(),
		parent:               ab,
	}
}

// Build returns the parent when there is one, otherwise the collected
// advertisements. T must then be []ble.Advertisement.
func (ab *AdvertisementArrayBuilder[T]) Build() T {
	if ab.buildFunc != nil {
		return ab.buildFunc(ab.parent, ab.advertisements)
	}
	var result interface{} = ab.advertisements
	return result.(T)
}

// AdvertisementArrayBuilderItem is an AdvertisementBuilder whose Build
// returns to the array builder.
type AdvertisementArrayBuilderItem[T any] struct {
	*AdvertisementBuilder
	parent *AdvertisementArrayBuilder[T]
}

func (abi *AdvertisementArrayBuilderItem[T]) WithName(name string) *AdvertisementArrayBuilderItem[T] {
	abi.AdvertisementBuilder.WithName(name)
	return abi
}

func (abi *AdvertisementArrayBuilderItem[T]) WithAddress(addr string) *AdvertisementArrayBuilderItem[T] {
	abi.AdvertisementBuilder.WithAddress(addr)
	return abi
}

func (abi *AdvertisementArrayBuilderItem[T]) WithRSSI(rssi int) *AdvertisementArrayBuilderItem[T] {
	abi.AdvertisementBuilder.WithRSSI(rssi)
	return abi
}

func (abi *AdvertisementArrayBuilderItem[T]) WithServices(uuids ...string) *AdvertisementArrayBuilderItem[T] {
	abi.AdvertisementBuilder.WithServices(uuids...)
	return abi
}

func (abi *AdvertisementArrayBuilderItem[T]) WithConnectable(c bool) *AdvertisementArrayBuilderItem[T] {
	abi.AdvertisementBuilder.WithConnectable(c)
	return abi
}

// Build adds the advertisement and returns to the array builder.
func (abi *AdvertisementArrayBuilderItem[T]) Build() *AdvertisementArrayBuilder[T] {
	abi.parent.advertisements = append(abi.parent.advertisements, abi.AdvertisementBuilder.Build())
	return abi.parent
}
