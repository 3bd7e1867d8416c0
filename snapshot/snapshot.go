// Package snapshot persists a complete session image in a single
// self-describing container file.
//
// A snapshot captures everything needed to resume planning without
// recomputing a single alignment: minima, transition states, the full
// distance table, and the planning graph with its admitted set and edge
// weights. The container records the codec and compression it was written
// with, so any session can open any snapshot.
//
// Writes are atomic: the file is staged under a temporary name and renamed
// into place, so a crash mid-write never clobbers the previous snapshot.
package snapshot

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/hupe1980/landgo/codec"
	"github.com/hupe1980/landgo/core"
	"github.com/hupe1980/landgo/distgraph"
	"github.com/hupe1980/landgo/model"
)

const (
	// Magic identifies landgo snapshot files (ASCII: "LGS1").
	Magic = 0x4C475331
	// Version is the current container format version.
	Version = 1
)

var (
	ErrInvalidMagic       = errors.New("snapshot: invalid magic number")
	ErrUnsupportedVersion = errors.New("snapshot: unsupported version")
	ErrUnknownCodec       = errors.New("snapshot: unknown codec")
)

// ChecksumMismatchError is returned when the payload checksum does not
// match the header, indicating storage corruption or a truncated write.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("snapshot: checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

// Compression selects the compression applied to the snapshot payload.
type Compression string

const (
	// CompressionNone stores the payload uncompressed.
	CompressionNone Compression = "none"
	// CompressionZstd favors ratio. The right default for snapshots that
	// are written rarely and shipped to object storage.
	CompressionZstd Compression = "zstd"
	// CompressionLZ4 favors speed over ratio.
	CompressionLZ4 Compression = "lz4"
)

// State is the complete persisted image of a session.
type State struct {
	Minima           []model.Minimum         `json:"minima"`
	TransitionStates []model.TransitionState `json:"transitionStates"`
	Distances        []model.DistanceEntry   `json:"distances"`
	Admitted         []core.MinimumID        `json:"admitted"`
	Edges            []distgraph.Edge        `json:"edges"`
}

// Options configures how a snapshot is written. Reading needs no options:
// the header describes the payload.
type Options struct {
	// Codec encodes the state payload. Defaults to codec.Default.
	Codec codec.Codec

	// Compression is applied to the encoded payload. Incompressible
	// payloads fall back to CompressionNone transparently.
	Compression Compression
}

// DefaultOptions are the options used when none are supplied.
var DefaultOptions = Options{
	Compression: CompressionZstd,
}

// fileHeader is the fixed-size header at the start of every snapshot.
type fileHeader struct {
	Magic       uint32
	Version     uint32
	Codec       [8]byte
	Compression [8]byte
	RawSize     uint64
	PayloadSize uint64
	Checksum    uint32 // CRC32 (IEEE) of the payload bytes
	Padding     [4]byte
}

// Write encodes the state into the container format.
func Write(w io.Writer, state *State, optFns ...func(o *Options)) error {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	c := opts.Codec
	if c == nil {
		c = codec.Default
	}

	if len(c.Name()) > 8 {
		return fmt.Errorf("snapshot: codec name %q exceeds 8 bytes", c.Name())
	}

	raw, err := c.Marshal(state)
	if err != nil {
		return fmt.Errorf("snapshot: encode state: %w", err)
	}

	payload, applied, err := compress(raw, opts.Compression)
	if err != nil {
		return err
	}

	hdr := fileHeader{
		Magic:       Magic,
		Version:     Version,
		RawSize:     uint64(len(raw)),
		PayloadSize: uint64(len(payload)),
		Checksum:    crc32.ChecksumIEEE(payload),
	}
	copy(hdr.Codec[:], c.Name())
	copy(hdr.Compression[:], applied)

	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}

	_, err = w.Write(payload)

	return err
}

// Read decodes a snapshot written by Write.
func Read(r io.Reader) (*State, error) {
	var hdr fileHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}

	if hdr.Magic != Magic {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, hdr.Magic)
	}

	if hdr.Version != Version {
		return nil, fmt.Errorf("%w: got %d", ErrUnsupportedVersion, hdr.Version)
	}

	payload := make([]byte, hdr.PayloadSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	if sum := crc32.ChecksumIEEE(payload); sum != hdr.Checksum {
		return nil, &ChecksumMismatchError{Expected: hdr.Checksum, Actual: sum}
	}

	raw, err := decompress(payload, Compression(unpackName(hdr.Compression)), int(hdr.RawSize))
	if err != nil {
		return nil, err
	}

	codecName := unpackName(hdr.Codec)

	c, ok := codec.ByName(codecName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, codecName)
	}

	var state State
	if err := c.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("snapshot: decode state: %w", err)
	}

	return &state, nil
}

// Save writes the state to a file atomically: the snapshot is staged in a
// temp file next to the target and renamed into place once synced.
func Save(filename string, state *State, optFns ...func(o *Options)) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}

	tmpName := tmp.Name()

	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	_ = tmp.Chmod(0644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := Write(buf, state, optFns...); err != nil {
		return err
	}

	if err := buf.Flush(); err != nil {
		return err
	}

	if err := tmp.Sync(); err != nil {
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	// Success: prevent the deferred cleanup from removing the final file.
	tmpName = ""

	return nil
}

// Load reads a snapshot file written by Save.
func Load(filename string) (*State, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(bufio.NewReaderSize(f, 256*1024))
}

// Encode returns the container bytes for the state. Used when the target is
// an object store rather than a local file.
func Encode(state *State, optFns ...func(o *Options)) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, state, optFns...); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses container bytes produced by Encode or Write.
func Decode(data []byte) (*State, error) {
	return Read(bytes.NewReader(data))
}

func unpackName(b [8]byte) string {
	return string(bytes.TrimRight(b[:], "\x00"))
}
