package snapshot

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// codec compresses and decompresses a snapshot payload. The raw length is
// known from the header at decode time, so decompressors can allocate the
// output buffer exactly once.
type codec interface {
	name() string
	id() byte
	compress(src []byte) ([]byte, error)
	decompress(src []byte, rawLen int) ([]byte, error)
}

var codecs = []codec{noneCodec{}, zstdCodec{}, s2Codec{}, lz4Codec{}}

// byName looks up a codec by its config name ("none", "zstd", "s2", "lz4").
func byName(name string) (codec, error) {
	for _, c := range codecs {
		if c.name() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("unknown snapshot codec %q", name)
}

// byID looks up a codec by its wire ID.
func byID(id byte) (codec, error) {
	for _, c := range codecs {
		if c.id() == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("unknown snapshot codec id %d", id)
}

// KnownCodec reports whether name is a supported codec, for config validation.
func KnownCodec(name string) bool {
	_, err := byName(name)
	return err == nil
}

// CodecNames lists the supported codec names in wire-ID order.
func CodecNames() []string {
	names := make([]string, len(codecs))
	for i, c := range codecs {
		names[i] = c.name()
	}
	return names
}

type noneCodec struct{}

func (noneCodec) name() string { return "none" }
func (noneCodec) id() byte     { return 0 }

func (noneCodec) compress(src []byte) ([]byte, error) { return src, nil }

func (noneCodec) decompress(src []byte, rawLen int) ([]byte, error) { return src, nil }

// zstdEncoderPool reuses zstd encoders across snapshots. klauspost/compress
// encoders operate without allocations after warmup when stored and reused,
// and EncodeAll is stateless so a pooled encoder is safe.
var zstdEncoderPool = sync.Pool{
	New: func() any {
		encoder, err := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderCRC(false),
		)
		if err != nil {
			panic(fmt.Sprintf("create pooled zstd encoder: %v", err))
		}
		return encoder
	},
}

var zstdDecoderPool = sync.Pool{
	New: func() any {
		decoder, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderLowmem(false),
		)
		if err != nil {
			panic(fmt.Sprintf("create pooled zstd decoder: %v", err))
		}
		return decoder
	},
}

type zstdCodec struct{}

func (zstdCodec) name() string { return "zstd" }
func (zstdCodec) id() byte     { return 1 }

func (zstdCodec) compress(src []byte) ([]byte, error) {
	encoder := zstdEncoderPool.Get().(*zstd.Encoder)
	defer zstdEncoderPool.Put(encoder)
	return encoder.EncodeAll(src, nil), nil
}

func (zstdCodec) decompress(src []byte, rawLen int) ([]byte, error) {
	decoder := zstdDecoderPool.Get().(*zstd.Decoder)
	defer zstdDecoderPool.Put(decoder)
	out, err := decoder.DecodeAll(src, make([]byte, 0, rawLen))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}

type s2Codec struct{}

func (s2Codec) name() string { return "s2" }
func (s2Codec) id() byte     { return 2 }

func (s2Codec) compress(src []byte) ([]byte, error) {
	return s2.Encode(nil, src), nil
}

func (s2Codec) decompress(src []byte, rawLen int) ([]byte, error) {
	out, err := s2.Decode(make([]byte, rawLen), src)
	if err != nil {
		return nil, fmt.Errorf("s2 decompress: %w", err)
	}
	return out, nil
}

// lz4Codec uses the lz4 frame format rather than raw blocks: frames store
// incompressible chunks verbatim instead of failing on them, which matters
// for payloads that are mostly noise-like float64 mantissas.
type lz4Codec struct{}

func (lz4Codec) name() string { return "lz4" }
func (lz4Codec) id() byte     { return 3 }

func (lz4Codec) compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(src); err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (lz4Codec) decompress(src []byte, rawLen int) ([]byte, error) {
	zr := lz4.NewReader(bytes.NewReader(src))
	out := make([]byte, rawLen)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	return out, nil
}
