package blobstore

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

type CompressionOptions struct {
	// MinSize is the smallest content size worth compressing.
	MinSize int
	// Level is the zstd compression level.
	Level int
	// SkipExtensions lists file extensions stored as-is.
	SkipExtensions []string
}

func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		MinSize: 1024,
		Level:   2,
		SkipExtensions: []string{
			".zip", ".gz", ".zst", ".xz", ".bz2", ".7z",
			".png", ".jpg", ".jpeg", ".gif", ".webp",
			".mp3", ".mp4", ".avi", ".mkv",
			".pdf", ".docx", ".xlsx",
		},
	}
}

// zstdMagic identifies a zstd frame; decompress uses it to recognize
// blobs that were stored uncompressed.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

type compressor struct {
	opts CompressionOptions
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

func newCompressor(opts CompressionOptions) (*compressor, error) {
	if opts.MinSize == 0 && opts.Level == 0 && opts.SkipExtensions == nil {
		opts = DefaultCompressionOptions()
	}
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(opts.Level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
	)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &compressor{opts: opts, enc: enc, dec: dec}, nil
}

func (c *compressor) close() {
	c.enc.Close()
	c.dec.Close()
}

// compress returns the stored form of content and whether it was
// compressed. Small content and already-compressed formats pass
// through unchanged.
func (c *compressor) compress(name string, content []byte) ([]byte, bool) {
	if !c.shouldCompress(name, len(content)) {
		return content, false
	}
	return c.enc.EncodeAll(content, make([]byte, 0, len(content)/2)), true
}

func (c *compressor) shouldCompress(name string, size int) bool {
	if size < c.opts.MinSize {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, skip := range c.opts.SkipExtensions {
		if ext == skip {
			return false
		}
	}
	return true
}

func (c *compressor) decompress(content []byte) ([]byte, error) {
	if len(content) < len(zstdMagic) || !bytes.Equal(content[:len(zstdMagic)], zstdMagic) {
		return content, nil
	}
	return c.dec.DecodeAll(content, nil)
}
