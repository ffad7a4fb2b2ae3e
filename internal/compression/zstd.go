// Package compression wraps zstd for manifest blobs stored at rest.
//
// Compression is transparent: bytes shorter than the threshold, or bytes
// that do not shrink, are stored verbatim. Decompress falls back to the
// raw input when it is not a zstd frame, so stores written with
// compression disabled stay readable.
package compression

import (
	"github.com/klauspost/compress/zstd"
)

// Manifests are small text documents; anything below this is not worth a frame.
const minCompressSize = 128

type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	enabled bool
}

func NewCodec(level int, enabled bool) (*Codec, error) {
	if !enabled {
		return &Codec{enabled: false}, nil
	}

	var encoderLevel zstd.EncoderLevel
	switch level {
	case 1:
		encoderLevel = zstd.SpeedFastest
	case 2:
		encoderLevel = zstd.SpeedDefault
	case 3:
		encoderLevel = zstd.SpeedBetterCompression
	default:
		encoderLevel = zstd.SpeedDefault
	}

	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(encoderLevel),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, err
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}

	return &Codec{
		encoder: encoder,
		decoder: decoder,
		enabled: true,
	}, nil
}

func (c *Codec) Compress(data []byte) []byte {
	if !c.enabled || len(data) < minCompressSize {
		return data
	}

	compressed := c.encoder.EncodeAll(data, make([]byte, 0, len(data)))
	if len(compressed) >= len(data) {
		return data
	}
	return compressed
}

func (c *Codec) Decompress(data []byte) []byte {
	if !c.enabled {
		return data
	}

	decompressed, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		// Not a zstd frame; stored uncompressed.
		return data
	}
	return decompressed
}

func (c *Codec) Close() error {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
	return nil
}
