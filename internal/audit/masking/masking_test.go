package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret("  "))
	assert.Equal(t, "hms_live_key_****", MaskSecret("hms_live_key_abc"))
	assert.Equal(t, "hms_live_key_****wxyz", MaskSecret("hms_live_key_0123456789wxyz"))
	assert.Equal(t, "****6789", MaskSecret("secret6789"))
}

func TestMaskCardNo(t *testing.T) {
	assert.Equal(t, "", MaskCardNo(""))
	assert.Equal(t, "****", MaskCardNo("123"))
	assert.Equal(t, "****4455", MaskCardNo(" 101122334455 "))
}
