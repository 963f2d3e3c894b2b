package persistence

import (
	"anonbot/internal/structures"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZstdCompression_Roundtrip(t *testing.T) {
	c, err := NewZstdCompressor()
	require.NoError(t, err)
	defer c.Close()

	original := []byte(`{"version":1,"users":[]}`)
	compressed, err := c.Compress(original)
	require.NoError(t, err)
	assert.NotEqual(t, original, compressed)
	assert.True(t, IsZstd(compressed))

	decompressed, err := c.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, original, decompressed)
}

func TestZstdCompression_EmptyData(t *testing.T) {
	c, err := NewZstdCompressor()
	require.NoError(t, err)

	compressed, err := c.Compress([]byte{})
	require.NoError(t, err)

	decompressed, err := c.Decompress(compressed)
	require.NoError(t, err)
	assert.Empty(t, decompressed)
}

func TestZstdCompression_LargeData(t *testing.T) {
	c, err := NewZstdCompressor()
	require.NoError(t, err)

	original := bytes.Repeat([]byte("abcdefghij"), 100_000)
	compressed, err := c.Compress(original)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(original)/2)

	decompressed, err := c.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, original, decompressed)
}

func TestZstdCompression_ReadsPlainInput(t *testing.T) {
	c, err := NewZstdCompressor()
	require.NoError(t, err)

	plain := []byte(`{"version":1}`)
	out, err := c.Decompress(plain)
	require.NoError(t, err)
	assert.Equal(t, plain, out)
}

func TestZstdCompression_BrokenFrame(t *testing.T) {
	c, err := NewZstdCompressor()
	require.NoError(t, err)

	broken := append(append([]byte{}, zstdMagic...), 0xff, 0xfe, 0xfd, 0x00)
	_, err = c.Decompress(broken)
	assert.Error(t, err)
}

func TestPlainCompression_ReadsZstd(t *testing.T) {
	z, err := NewZstdCompressor()
	require.NoError(t, err)
	p, err := NewPlainCompressor()
	require.NoError(t, err)
	defer p.Close()

	original := []byte(`{"version":1,"users":[{"id":1}]}`)
	compressed, err := z.Compress(original)
	require.NoError(t, err)

	out, err := p.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, original, out)

	same, err := p.Compress(original)
	require.NoError(t, err)
	assert.Equal(t, original, same)
}

func TestNewCompressor_FromConfig(t *testing.T) {
	conf := &structures.Config{Persistence: structures.Persistence{Compression: structures.CompressionZstd}}
	c, err := NewCompressor(conf)
	require.NoError(t, err)
	assert.IsType(t, &ZstdCompression{}, c)

	conf.Persistence.Compression = structures.CompressionNone
	c, err = NewCompressor(conf)
	require.NoError(t, err)
	assert.IsType(t, &PlainCompression{}, c)
}
