package snapshot

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// compress applies the requested compression and returns the payload
// together with the compression actually used. Incompressible payloads are
// stored raw so decompression never inflates the file.
func compress(raw []byte, comp Compression) ([]byte, Compression, error) {
	switch comp {
	case CompressionNone, "":
		return raw, CompressionNone, nil

	case CompressionZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, "", err
		}

		out := enc.EncodeAll(raw, nil)
		_ = enc.Close()

		if len(out) >= len(raw) {
			return raw, CompressionNone, nil
		}

		return out, CompressionZstd, nil

	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))

		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, "", err
		}

		// n == 0 means incompressible.
		if n == 0 || n >= len(raw) {
			return raw, CompressionNone, nil
		}

		return buf[:n], CompressionLZ4, nil

	default:
		return nil, "", fmt.Errorf("snapshot: unknown compression %q", comp)
	}
}

// decompress reverses compress. rawSize comes from the container header and
// bounds the output buffer.
func decompress(payload []byte, comp Compression, rawSize int) ([]byte, error) {
	switch comp {
	case CompressionNone, "":
		return payload, nil

	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()

		raw, err := dec.DecodeAll(payload, make([]byte, 0, rawSize))
		if err != nil {
			return nil, err
		}

		if len(raw) != rawSize {
			return nil, fmt.Errorf("snapshot: decompressed size mismatch: expected %d, got %d", rawSize, len(raw))
		}

		return raw, nil

	case CompressionLZ4:
		raw := make([]byte, rawSize)

		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return nil, err
		}

		if n != rawSize {
			return nil, fmt.Errorf("snapshot: decompressed size mismatch: expected %d, got %d", rawSize, n)
		}

		return raw, nil

	default:
		return nil, fmt.Errorf("snapshot: unknown compression %q", comp)
	}
}
