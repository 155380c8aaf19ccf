package redis

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgecomet/skeleton/internal/common/configtypes"
)

func TestEncodeValue_Threshold(t *testing.T) {
	small := bytes.Repeat([]byte("a"), CompressionMinSize-1)
	out, err := encodeValue(small, configtypes.CompressionSnappy)
	require.NoError(t, err)
	assert.Equal(t, frameRaw, out[0])
	assert.Equal(t, small, out[1:])

	large := bytes.Repeat([]byte("a"), CompressionMinSize)
	out, err = encodeValue(large, configtypes.CompressionNone)
	require.NoError(t, err)
	assert.Equal(t, large, out)

	out, err = encodeValue(large, configtypes.CompressionSnappy)
	require.NoError(t, err)
	assert.Equal(t, frameSnappy, out[0])

	out, err = encodeValue(large, configtypes.CompressionLZ4)
	require.NoError(t, err)
	assert.Equal(t, frameLZ4, out[0])
}

func TestCodec_RoundTrip(t *testing.T) {
	values := map[string][]byte{
		"empty":              {},
		"text":               []byte("plain"),
		"leading 0xfe":       []byte("\xfe\x01short"),
		"leading 0xfd":       {0xfd, 0x00, 0x10},
		"leading frame byte": {frameSnappy, 0xff, 0xff},
		"large":              bytes.Repeat([]byte("event-payload-"), 200),
		"large binary":       append([]byte{frameLZ4}, bytes.Repeat([]byte{0xfe}, 2048)...),
	}

	for _, alg := range []string{configtypes.CompressionNone, configtypes.CompressionSnappy, configtypes.CompressionLZ4} {
		for name, value := range values {
			t.Run(alg+"/"+name, func(t *testing.T) {
				encoded, err := encodeValue(value, alg)
				require.NoError(t, err)
				decoded, err := decodeValue(encoded, alg)
				require.NoError(t, err)
				assert.True(t, bytes.Equal(value, decoded), "got %q", decoded)
			})
		}
	}
}

func TestDecodeValue(t *testing.T) {
	value, err := decodeValue([]byte("\xfe\x01short"), configtypes.CompressionNone)
	require.NoError(t, err)
	assert.Equal(t, []byte("\xfe\x01short"), value)

	_, err = decodeValue(nil, configtypes.CompressionSnappy)
	assert.True(t, errors.Is(err, ErrDecompression))

	_, err = decodeValue([]byte("plain"), configtypes.CompressionSnappy)
	assert.True(t, errors.Is(err, ErrDecompression))

	_, err = decodeValue([]byte{frameSnappy, 0xff, 0xff, 0xff}, configtypes.CompressionSnappy)
	assert.True(t, errors.Is(err, ErrDecompression))

	_, err = decodeValue([]byte{frameLZ4, 0x01, 0x02}, configtypes.CompressionLZ4)
	assert.True(t, errors.Is(err, ErrDecompression))
}
