package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatKeyRoundTripsKeyID(t *testing.T) {
	raw := FormatKey("key_3F9ZK2", "ab12")
	assert.Equal(t, "hms_live_key_3F9ZK2_ab12", raw)
	assert.Equal(t, "key_3F9ZK2", KeyIDFromRaw(raw))
}

func TestKeyIDFromRawRejectsForeignShapes(t *testing.T) {
	for _, raw := range []string{"", "bootstrap-secret", "hms_live_key_", "hms_live_key_ABC", "hms_live_key__secret"} {
		assert.Empty(t, KeyIDFromRaw(raw), raw)
	}
}

func TestHashAPIKeyIgnoresSurroundingSpace(t *testing.T) {
	assert.Equal(t, HashAPIKey("hms_live_key_A_b"), HashAPIKey(" hms_live_key_A_b\n"))
	assert.NotEqual(t, HashAPIKey("hms_live_key_A_b"), HashAPIKey("hms_live_key_A_c"))
}
