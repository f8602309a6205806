package safe

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// CompressionOptions configures compression behavior
type CompressionOptions struct {
	// Minimum size in bytes before compressing. Zero disables compression.
	MinSize int
	// zstd level, 1 through 22
	Level int
}

func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		MinSize: 1024,
		Level:   3,
	}
}

// compressionManager owns one encoder and one decoder. EncodeAll and
// DecodeAll are safe for concurrent use.
type compressionManager struct {
	opts CompressionOptions
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

func newCompressionManager(opts CompressionOptions) (*compressionManager, error) {
	if opts.Level == 0 {
		opts.Level = DefaultCompressionOptions().Level
	}

	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(opts.Level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("creating encoder: %w", err)
	}

	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
	)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	return &compressionManager{opts: opts, enc: enc, dec: dec}, nil
}

func (cm *compressionManager) shouldCompress(size int) bool {
	return cm.opts.MinSize > 0 && size >= cm.opts.MinSize
}

// compress returns the bytes to write and whether they are compressed.
// Content that does not shrink is kept raw.
func (cm *compressionManager) compress(content []byte) ([]byte, bool) {
	if !cm.shouldCompress(len(content)) {
		return content, false
	}

	out := cm.enc.EncodeAll(content, make([]byte, 0, len(content)/2))
	if len(out) >= len(content) {
		return content, false
	}
	return out, true
}

func isCompressed(content []byte) bool {
	return len(content) > 4 && bytes.Equal(content[:4], zstdMagic)
}

func (cm *compressionManager) decompress(content []byte) ([]byte, error) {
	if !isCompressed(content) {
		return content, nil
	}
	return cm.dec.DecodeAll(content, nil)
}

func (cm *compressionManager) close() {
	cm.enc.Close()
	cm.dec.Close()
}
