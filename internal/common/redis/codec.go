package redis

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/snappy"
	"github.com/pierrec/lz4/v4"

	"github.com/edgecomet/skeleton/internal/common/configtypes"
)

// ErrDecompression is returned when a stored value cannot be decoded.
var ErrDecompression = errors.New("decompression failed")

// CompressionMinSize is the smallest value that gets compressed.
const CompressionMinSize = 1024

// With compression enabled every value carries a leading frame byte naming
// how the rest is encoded, so short raw values are framed too.
const (
	frameRaw    byte = 0x00
	frameSnappy byte = 0x01
	frameLZ4    byte = 0x02
)

func compressionEnabled(algorithm string) bool {
	return algorithm == configtypes.CompressionSnappy || algorithm == configtypes.CompressionLZ4
}

// encodeValue frames value for algorithm, compressing it when it is large
// enough. With compression off the value is stored unframed.
func encodeValue(value []byte, algorithm string) ([]byte, error) {
	if !compressionEnabled(algorithm) {
		return value, nil
	}
	if len(value) < CompressionMinSize {
		out := make([]byte, 0, 1+len(value))
		out = append(out, frameRaw)
		return append(out, value...), nil
	}

	if algorithm == configtypes.CompressionSnappy {
		out := make([]byte, 1, 1+snappy.MaxEncodedLen(len(value)))
		out[0] = frameSnappy
		return append(out, snappy.Encode(nil, value)...), nil
	}

	var buf bytes.Buffer
	buf.WriteByte(frameLZ4)
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(value); err != nil {
		w.Close()
		return nil, fmt.Errorf("lz4 compression failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lz4 compression close failed: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeValue reverses encodeValue for the same algorithm.
func decodeValue(value []byte, algorithm string) ([]byte, error) {
	if !compressionEnabled(algorithm) {
		return value, nil
	}
	if len(value) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrDecompression)
	}

	switch value[0] {
	case frameRaw:
		return value[1:], nil

	case frameSnappy:
		out, err := snappy.Decode(nil, value[1:])
		if err != nil {
			return nil, fmt.Errorf("snappy: %w: %v", ErrDecompression, err)
		}
		return out, nil

	case frameLZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(value[1:])))
		if err != nil {
			return nil, fmt.Errorf("lz4: %w: %v", ErrDecompression, err)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: unknown frame 0x%02x", ErrDecompression, value[0])
	}
}
