package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUUID_HeadsetForms(t *testing.T) {
	variants := []string{
		"919d5add-298f-4431-acf9-9f67275f1455",
		"919D5ADD-298F-4431-ACF9-9F67275F1455",
		"{919d5add-298f-4431-acf9-9f67275f1455}",
		"919d5add298f4431acf99f67275f1455",
	}
	for _, v := range variants {
		t.Run(v, func(t *testing.T) {
			assert.Equal(t, "919d5add298f4431acf99f67275f1455", NormalizeUUID(v))
		})
	}

	assert.Equal(t, "180a", NormalizeUUID("0000180A-0000-1000-8000-00805F9B34FB"))
}

func TestValidateUUID(t *testing.T) {
	got, err := ValidateUUID("0x180F", "7ca251df-137b-41b2-9169-1c0215bea6de")
	require.NoError(t, err)
	assert.Equal(t, []string{"180f", "7ca251df137b41b291691c0215bea6de"}, got)

	_, err = ValidateUUID()
	assert.Error(t, err, "empty argument list MUST be rejected")

	_, err = ValidateUUID("180f", "")
	assert.ErrorContains(t, err, "index 1")

	_, err = ValidateUUID("12345678")
	assert.ErrorContains(t, err, "invalid UUID format")

	_, err = ValidateUUID("zz19")
	assert.ErrorContains(t, err, "invalid UUID format", "non-hex digits MUST be rejected")
}

func TestDescribeUUID(t *testing.T) {
	assert.Equal(t, "2a19 (Battery Level)", DescribeUUID("0x2A19"))
	assert.Equal(t, "180f (Battery Service)", DescribeUUID("0000180f-0000-1000-8000-00805f9b34fb"))
	assert.Equal(t, "abcd", DescribeUUID("ABCD"))
	assert.Equal(t, "2902 (Client Characteristic Configuration)", DescribeUUID("2902"))
	assert.Equal(t,
		"919d5add-298f-4431-acf9-9f67275f1455 (IHS Combo Heading Pitch Roll)",
		DescribeUUID("919D5ADD298F4431ACF99F67275F1455"))
	assert.Equal(t, "00112233-4455-6677-8899-aabbccddeeff", DescribeUUID("00112233445566778899aabbccddeeff"))
}
