package blobcodec

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// CompressionZstd is the only outer compression tag understood by this
// codec; "" (CompressionNone) means the tile payload is stored as-is.
const (
	CompressionNone = ""
	CompressionZstd = "zstd"
)

var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder
	encoderErr  error

	decoderOnce sync.Once
	decoder     *zstd.Decoder
	decoderErr  error
)

func sharedEncoder() (*zstd.Encoder, error) {
	encoderOnce.Do(func() {
		encoder, encoderErr = zstd.NewWriter(nil)
	})
	return encoder, encoderErr
}

func sharedDecoder() (*zstd.Decoder, error) {
	decoderOnce.Do(func() {
		decoder, decoderErr = zstd.NewReader(nil)
	})
	return decoder, decoderErr
}

// Compress wraps payload per the compression tag; CompressionNone is a
// no-op copy-free pass-through.
func Compress(payload []byte, compression string) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return payload, nil
	case CompressionZstd:
		enc, err := sharedEncoder()
		if err != nil {
			return nil, fmt.Errorf("blobcodec: zstd encoder: %w", err)
		}
		return enc.EncodeAll(payload, nil), nil
	default:
		return nil, fmt.Errorf("blobcodec: unknown compression tag %q", compression)
	}
}

// Decompress reverses Compress. Compression is transparent to tile
// identity: the decoded bytes are fed straight into BuildPositionIndex.
func Decompress(payload []byte, compression string) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return payload, nil
	case CompressionZstd:
		dec, err := sharedDecoder()
		if err != nil {
			return nil, fmt.Errorf("blobcodec: zstd decoder: %w", err)
		}
		out, err := dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("blobcodec: zstd decode: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("blobcodec: unknown compression tag %q", compression)
	}
}
