package strutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashString(t *testing.T) {
	tests := []struct {
		alg    string
		length int
	}{
		{"", 56},
		{AlgSHA1, 40},
		{AlgSHA224, 56},
		{AlgSHA256, 64},
		{AlgSHA384, 96},
		{AlgSHA512, 128},
		{AlgMD5, 32},
		{AlgXXH64, 16},
		{"SHA256", 64},
	}

	for _, tt := range tests {
		t.Run(tt.alg, func(t *testing.T) {
			h, err := HashString("skeleton", tt.alg)
			require.NoError(t, err)
			assert.Len(t, h, tt.length)

			again, err := HashString("skeleton", tt.alg)
			require.NoError(t, err)
			assert.Equal(t, h, again)
		})
	}

	h, err := HashString("abc", AlgMD5)
	require.NoError(t, err)
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", h)

	_, err = HashString("abc", "crc32")
	assert.ErrorContains(t, err, "unsupported hash algorithm")
}

func TestIsHashString(t *testing.T) {
	sha224, err := HashString("value", AlgSHA224)
	require.NoError(t, err)
	sha384, err := HashString("value", AlgSHA384)
	require.NoError(t, err)

	assert.True(t, IsHashString(sha224))
	assert.True(t, IsHashString(sha384))
	assert.True(t, IsHashString("900150983CD24FB0D6963F7D28E17F72"))
	assert.False(t, IsHashString(""))
	assert.False(t, IsHashString("not-a-hash"))
	assert.False(t, IsHashString("abcdef"))
}

func TestIsValidIP(t *testing.T) {
	assert.True(t, IsValidIP("127.0.0.1"))
	assert.True(t, IsValidIP("::1"))
	assert.True(t, IsValidIP("2001:db8::68"))
	assert.False(t, IsValidIP("256.0.0.1"))
	assert.False(t, IsValidIP("localhost"))
	assert.False(t, IsValidIP(""))
}

func TestIsValidMAC(t *testing.T) {
	assert.True(t, IsValidMAC("00:1A:2b:3c:4d:5e"))
	assert.True(t, IsValidMAC("00-1a-2b-3c-4d-5e"))
	assert.False(t, IsValidMAC("00:1a:2b:3c:4d"))
	assert.False(t, IsValidMAC("00:1a:2b:3c:4d:zz"))
	assert.False(t, IsValidMAC(""))
}

func TestIsNumber(t *testing.T) {
	for _, v := range []string{"42", "-3.5", "1e10", " 7 ", "1+2i", "inf"} {
		assert.True(t, IsNumber(v), v)
	}
	for _, v := range []string{"", "abc", "12a", "1,5"} {
		assert.False(t, IsNumber(v), v)
	}
}
