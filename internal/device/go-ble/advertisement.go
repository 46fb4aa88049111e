package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/ihslink/internal/device"
)

// BLEAdvertisement adapts ble.Advertisement to device.Advertisement.
type BLEAdvertisement struct {
	adv ble.Advertisement
}

func NewBLEAdvertisement(adv ble.Advertisement) device.Advertisement {
	return &BLEAdvertisement{adv: adv}
}

func (a *BLEAdvertisement) LocalName() string        { return a.adv.LocalName() }
func (a *BLEAdvertisement) ManufacturerData() []byte { return a.adv.ManufacturerData() }
func (a *BLEAdvertisement) TxPowerLevel() int        { return a.adv.TxPowerLevel() }
func (a *BLEAdvertisement) Connectable() bool        { return a.adv.Connectable() }
func (a *BLEAdvertisement) RSSI() int                { return a.adv.RSSI() }
func (a *BLEAdvertisement) Addr() string             { return a.adv.Addr().String() }

// Services returns the advertised service UUIDs in normalized form.
func (a *BLEAdvertisement) Services() []string {
	uuids := a.adv.Services()
	out := make([]string, len(uuids))
	for i, u := range uuids {
		out[i] = device.NormalizeUUID(u.String())
	}
	return out
}

// HandleFromAdvertisement builds the opaque handle Central.Open expects.
func HandleFromAdvertisement(adv device.Advertisement) device.DeviceHandle {
	return device.DeviceHandle{
		ID:       adv.Addr(),
		Name:     adv.LocalName(),
		Address:  adv.Addr(),
		RSSI:     adv.RSSI(),
		Services: adv.Services(),
	}
}

// Advertises reports whether adv lists the given service.
func Advertises(adv device.Advertisement, serviceUUID string) bool {
	want := device.NormalizeUUID(serviceUUID)
	for _, s := range adv.Services() {
		if s == want {
			return true
		}
	}
	return false
}
