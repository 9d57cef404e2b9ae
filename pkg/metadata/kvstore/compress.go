package kvstore

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Inline payloads carry a one-byte envelope so that compressed and raw
// values can coexist in one database after the setting is toggled.
const (
	envelopeRaw  byte = 0
	envelopeZstd byte = 1
)

// codec compresses inline file payloads with zstd when enabled.
type codec struct {
	enabled bool
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newCodec(enabled bool) (*codec, error) {
	c := &codec{enabled: enabled}

	var err error
	if enabled {
		c.encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
	}

	c.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return c, nil
}

// encode wraps data in an envelope, compressing it when enabled and
// worthwhile.
func (c *codec) encode(data []byte) []byte {
	if c.enabled && len(data) > 0 {
		out := make([]byte, 1, 1+c.encoder.MaxEncodedSize(len(data)))
		out[0] = envelopeZstd
		out = c.encoder.EncodeAll(data, out)
		if len(out) < len(data)+1 {
			return out
		}
	}

	out := make([]byte, 1+len(data))
	out[0] = envelopeRaw
	copy(out[1:], data)
	return out
}

func (c *codec) decode(value []byte) ([]byte, error) {
	if len(value) == 0 {
		return nil, nil
	}
	switch value[0] {
	case envelopeRaw:
		return value[1:], nil
	case envelopeZstd:
		out, err := c.decoder.DecodeAll(value[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("decompress inline data: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown inline data envelope %#x", value[0])
	}
}

func (c *codec) close() {
	if c.encoder != nil {
		_ = c.encoder.Close()
	}
	c.decoder.Close()
}
