// Package snapshot reads and writes the binary grid snapshot format the grid
// service serves.
//
// A snapshot is a fixed header, a JSON metadata block, and a compressed
// payload of little-endian float64 cell values:
//
//	offset  size  field
//	0       4     magic "CGS1"
//	4       1     codec ID (0 none, 1 zstd, 2 s2, 3 lz4)
//	5       3     reserved, zero
//	8       4     metadata length, uint32 LE
//	12      8     raw payload length in bytes, uint64 LE
//	20      8     xxHash64 of the raw payload, uint64 LE
//	28      -     metadata JSON, then compressed payload
//
// The checksum covers the payload before compression, so it verifies both
// transport integrity and the decompression itself. NaN cells survive the
// round trip bit-exactly because values travel as raw IEEE 754 bits.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/couchcryptid/climate-anomaly-etl/internal/domain"
)

var (
	// ErrFormat reports a snapshot that cannot be decoded: bad magic,
	// truncated data, an unknown codec, or malformed metadata.
	ErrFormat = errors.New("snapshot format invalid")

	// ErrChecksum reports a snapshot whose payload decoded but does not hash
	// to the checksum in its header.
	ErrChecksum = errors.New("snapshot checksum mismatch")
)

const (
	headerSize = 28
	magic      = "CGS1"

	// maxMetaLen bounds the metadata block so a corrupt header cannot force
	// a multi-gigabyte allocation before the JSON parser sees a single byte.
	maxMetaLen = 16 << 20

	// maxRawLen bounds the decoded payload. The header's raw length sizes
	// the decompression buffer, so an oversized or overflowing value must
	// be rejected before any allocation happens.
	maxRawLen = 16 << 30
)

// Snapshot is one decoded grid extract: identifying metadata, the axis list
// as the producer ordered it, and the flat row-major cell values.
type Snapshot struct {
	Dataset  string
	Variable string
	Units    string
	Axes     []domain.Axis
	Values   []float64
}

// meta is the JSON metadata block between header and payload.
type meta struct {
	Dataset  string        `json:"dataset"`
	Variable string        `json:"variable"`
	Units    string        `json:"units"`
	Axes     []domain.Axis `json:"axes"`
}

// Grid assembles the snapshot into a validated grid container, dropping any
// singleton auxiliary axes the producer left in.
func (s *Snapshot) Grid() (*domain.Grid, error) {
	return domain.BuildGrid(s.Variable, s.Units, s.Axes, s.Values)
}

// Write encodes the snapshot with the named codec.
func Write(w io.Writer, s *Snapshot, codecName string) error {
	c, err := byName(codecName)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	metaBytes, err := json.Marshal(meta{
		Dataset:  s.Dataset,
		Variable: s.Variable,
		Units:    s.Units,
		Axes:     s.Axes,
	})
	if err != nil {
		return fmt.Errorf("write snapshot: marshal metadata: %w", err)
	}

	raw := floatsToBytes(s.Values)
	payload, err := c.compress(raw)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	var header [headerSize]byte
	copy(header[0:4], magic)
	header[4] = c.id()
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(metaBytes)))
	binary.LittleEndian.PutUint64(header[12:20], uint64(len(raw)))
	binary.LittleEndian.PutUint64(header[20:28], xxhash.Sum64(raw))

	for _, chunk := range [][]byte{header[:], metaBytes, payload} {
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}
	return nil
}

// Read decodes a snapshot, verifying the format and the payload checksum.
func Read(r io.Reader) (*Snapshot, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrFormat, err)
	}
	if string(header[0:4]) != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrFormat, header[0:4])
	}
	c, err := byID(header[4])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	metaLen := binary.LittleEndian.Uint32(header[8:12])
	rawLen := binary.LittleEndian.Uint64(header[12:20])
	sum := binary.LittleEndian.Uint64(header[20:28])
	if metaLen > maxMetaLen {
		return nil, fmt.Errorf("%w: metadata length %d exceeds %d", ErrFormat, metaLen, maxMetaLen)
	}
	if rawLen%8 != 0 {
		return nil, fmt.Errorf("%w: raw length %d not a multiple of 8", ErrFormat, rawLen)
	}
	if rawLen > maxRawLen {
		return nil, fmt.Errorf("%w: raw length %d exceeds %d", ErrFormat, rawLen, maxRawLen)
	}

	metaBytes := make([]byte, metaLen)
	if _, err := io.ReadFull(r, metaBytes); err != nil {
		return nil, fmt.Errorf("%w: short metadata: %v", ErrFormat, err)
	}
	var m meta
	if err := json.Unmarshal(metaBytes, &m); err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", ErrFormat, err)
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshot payload: %w", err)
	}
	raw, err := c.decompress(payload, int(rawLen))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if uint64(len(raw)) != rawLen {
		return nil, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrFormat, len(raw), rawLen)
	}
	if got := xxhash.Sum64(raw); got != sum {
		return nil, fmt.Errorf("%w: got %016x, want %016x", ErrChecksum, got, sum)
	}

	return &Snapshot{
		Dataset:  m.Dataset,
		Variable: m.Variable,
		Units:    m.Units,
		Axes:     m.Axes,
		Values:   bytesToFloats(raw),
	}, nil
}

// WriteFile writes the snapshot to path via a temp file and rename, so a
// crash mid-write never leaves a truncated snapshot where a reader expects a
// whole one.
func WriteFile(path string, s *Snapshot, codecName string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("write snapshot file: %w", err)
	}

	bw := bufio.NewWriter(f)
	if err := Write(bw, s, codecName); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write snapshot file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write snapshot file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write snapshot file: %w", err)
	}
	return nil
}

// ReadFile reads a snapshot from path.
func ReadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}
	defer f.Close()
	return Read(bufio.NewReader(f))
}

func floatsToBytes(values []float64) []byte {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func bytesToFloats(buf []byte) []float64 {
	values := make([]float64, len(buf)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return values
}
