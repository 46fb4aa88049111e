package goble

import (
	"sort"

	"github.com/srg/ihslink/internal/device"
)

// BLEService is a discovered GATT service.
type BLEService struct {
	uuid      string
	knownName string
	chars     map[string]*BLECharacteristic
}

func (s *BLEService) UUID() string      { return s.uuid }
func (s *BLEService) KnownName() string { return s.knownName }

func (s *BLEService) GetCharacteristic(uuid string) (device.Characteristic, error) {
	if c, ok := s.chars[device.NormalizeUUID(uuid)]; ok {
		return c, nil
	}
	return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{s.uuid, uuid}}
}

// GetCharacteristics returns the characteristics sorted by UUID.
func (s *BLEService) GetCharacteristics() []device.Characteristic {
	out := make([]device.Characteristic, 0, len(s.chars))
	for _, c := range s.chars {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UUID() < out[j].UUID() })
	return out
}
