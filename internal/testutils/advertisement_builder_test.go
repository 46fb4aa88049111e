package testutils

import (
	"testing"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvertisementArrayBuilderChains(t *testing.T) {
	ads := NewAdvertisementArrayBuilder[[]ble.Advertisement]().
		WithNewAdvertisement().WithAddress("AA:BB:CC:DD:EE:01").WithName("IHS-1").WithRSSI(-45).WithServices("180f").Build().
		WithNewAdvertisement().WithName("Strap").WithAddress("11:22:33:44:55:66").WithConnectable(false).Build().
		Build()

	require.Len(t, ads, 2, "each item MUST return to the array builder")
	assert.Equal(t, "IHS-1", ads[0].LocalName())
	assert.Equal(t, "AA:BB:CC:DD:EE:01", ads[0].Addr().String())
	assert.Equal(t, -45, ads[0].RSSI())
	require.Len(t, ads[0].Services(), 1)
	assert.True(t, ads[0].Services()[0].Equal(ble.MustParse("180f")))
	assert.True(t, ads[0].Connectable())

	assert.Equal(t, "Strap", ads[1].LocalName())
	assert.False(t, ads[1].Connectable())
	assert.Equal(t, -50, ads[1].RSSI(), "unset RSSI MUST keep the builder default")
}
