package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	t.Run("round trips", func(t *testing.T) {
		in := "0x00112233445566778899aabbccddeeff00112233"
		a, err := ParseAddress(in)
		require.NoError(t, err)
		assert.Equal(t, in, a.String())
	})

	t.Run("accepts uppercase and missing prefix", func(t *testing.T) {
		a, err := ParseAddress("00112233445566778899AABBCCDDEEFF00112233")
		require.NoError(t, err)
		assert.Equal(t, "0x00112233445566778899aabbccddeeff00112233", a.String())
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		_, err := ParseAddress("0xabcd")
		require.Error(t, err)
	})

	t.Run("rejects non-hex", func(t *testing.T) {
		_, err := ParseAddress("0x" + strings.Repeat("zz", AddressLen))
		require.Error(t, err)
	})
}

func TestAddressIsZero(t *testing.T) {
	assert.True(t, ZeroAddress.IsZero())

	a, err := ParseAddress("0x0000000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.False(t, a.IsZero())
}

func TestAddressDigest(t *testing.T) {
	a, err := ParseAddress("0x00112233445566778899aabbccddeeff00112233")
	require.NoError(t, err)

	d := a.Digest()
	assert.False(t, d.IsZero())
	// Digest is deterministic.
	assert.Equal(t, d, a.Digest())

	// Distinct addresses yield distinct digests.
	b, err := ParseAddress("0x00112233445566778899aabbccddeeff00112234")
	require.NoError(t, err)
	assert.NotEqual(t, d, b.Digest())
}

func TestAddressJSON(t *testing.T) {
	a, err := ParseAddress("0x00112233445566778899aabbccddeeff00112233")
	require.NoError(t, err)

	raw, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `"0x00112233445566778899aabbccddeeff00112233"`, string(raw))

	var back Address
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, a, back)
}

func TestParseDigest(t *testing.T) {
	d, err := ParseDigest("0x" + strings.Repeat("ab", DigestLen))
	require.NoError(t, err)
	assert.Equal(t, "0x"+strings.Repeat("ab", DigestLen), d.String())

	_, err = ParseDigest("0x1234")
	require.Error(t, err)
}
