package persistence

import (
	"anonbot/internal/persistence/interfaces"
	"anonbot/internal/structures"
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// IsZstd reports whether b starts with a zstd frame header.
func IsZstd(b []byte) bool {
	return bytes.HasPrefix(b, zstdMagic)
}

type ZstdCompression struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func (z *ZstdCompression) Compress(val []byte) ([]byte, error) {
	return z.encoder.EncodeAll(val, make([]byte, 0, len(val)/2)), nil
}

// Decompress also accepts plain snapshots written before compression was enabled.
func (z *ZstdCompression) Decompress(val []byte) ([]byte, error) {
	if !IsZstd(val) {
		return val, nil
	}
	return z.decoder.DecodeAll(val, nil)
}

func (z *ZstdCompression) Close() {
	_ = z.encoder.Close()
	z.decoder.Close()
}

// PlainCompression writes snapshots as-is but still reads zstd files.
type PlainCompression struct {
	decoder *zstd.Decoder
}

func (p *PlainCompression) Compress(val []byte) ([]byte, error) {
	return val, nil
}

func (p *PlainCompression) Decompress(val []byte) ([]byte, error) {
	if !IsZstd(val) {
		return val, nil
	}
	return p.decoder.DecodeAll(val, nil)
}

func (p *PlainCompression) Close() {
	p.decoder.Close()
}

func newDecoder() (*zstd.Decoder, error) {
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return decoder, nil
}

func NewZstdCompressor() (interfaces.CompressorInterface, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := newDecoder()
	if err != nil {
		_ = encoder.Close()
		return nil, err
	}
	return &ZstdCompression{encoder: encoder, decoder: decoder}, nil
}

func NewPlainCompressor() (interfaces.CompressorInterface, error) {
	decoder, err := newDecoder()
	if err != nil {
		return nil, err
	}
	return &PlainCompression{decoder: decoder}, nil
}

// NewCompressor picks the write format from persistence.compression.
func NewCompressor(conf *structures.Config) (interfaces.CompressorInterface, error) {
	if conf.Persistence.Compression == structures.CompressionZstd {
		return NewZstdCompressor()
	}
	return NewPlainCompressor()
}
