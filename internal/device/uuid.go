package device

import (
	"encoding/hex"
	"fmt"

	"github.com/srg/ihslink/internal/bledb"
)

// NormalizeUUID is bledb.NormalizeUUID: lowercase, no dashes or braces, and
// Bluetooth base UUIDs collapsed to their 16-bit form.
func NormalizeUUID(uuid string) string {
	return bledb.NormalizeUUID(uuid)
}

// ValidateUUID normalizes uuids and rejects anything that is not a 16-bit or
// 128-bit UUID.
func ValidateUUID(uuids ...string) ([]string, error) {
	if len(uuids) == 0 {
		return nil, fmt.Errorf("at least one UUID is required")
	}

	out := make([]string, 0, len(uuids))
	for i, uuid := range uuids {
		if uuid == "" {
			return nil, fmt.Errorf("UUID at index %d cannot be empty", i)
		}
		n := NormalizeUUID(uuid)
		if len(n) != 4 && len(n) != 32 {
			return nil, fmt.Errorf("invalid UUID format at index %d: %s", i, uuid)
		}
		if _, err := hex.DecodeString(n); err != nil {
			return nil, fmt.Errorf("invalid UUID format at index %d: %s", i, uuid)
		}
		out = append(out, n)
	}
	return out, nil
}

// DescribeUUID renders a UUID with its known name, e.g. "2a19 (Battery Level)".
// 128-bit UUIDs are shown dashed.
func DescribeUUID(uuid string) string {
	n := NormalizeUUID(uuid)
	name := bledb.LookupCharacteristic(n)
	if name == "" {
		name = bledb.LookupService(n)
	}
	if name == "" {
		name = bledb.LookupDescriptor(n)
	}
	if len(n) == 32 {
		n = bledb.ExpandUUID(n)
	}
	if name == "" {
		return n
	}
	return n + " (" + name + ")"
}
