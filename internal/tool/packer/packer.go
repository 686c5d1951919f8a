package packer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/oshokin/webstart-packager/internal/tool/jarfile"
)

const (
	// PackSuffix is appended to a jar name for the zstd form.
	PackSuffix = ".pack"
	// PackGzipSuffix is appended to a jar name for the gzip form.
	PackGzipSuffix = ".pack.gz"

	packFileMode os.FileMode = 0o644
)

var errNotPacked = errors.New("not a packed jar")

// Packer packs and unpacks jars on disk.
type Packer struct {
	// gzip selects .jar.pack.gz output instead of .jar.pack.
	gzip bool
}

// New returns a Packer producing gzip output when gzip is true.
func New(gzip bool) *Packer {
	return &Packer{gzip: gzip}
}

// PackedName returns the packed file name for a jar path.
func (p *Packer) PackedName(jarPath string) string {
	if p.gzip {
		return jarPath + PackGzipSuffix
	}

	return jarPath + PackSuffix
}

// IsPacked reports whether name carries one of the pack suffixes.
func IsPacked(name string) bool {
	return strings.HasSuffix(name, ".jar"+PackSuffix) || strings.HasSuffix(name, ".jar"+PackGzipSuffix)
}

// JarName strips the pack suffix: app.jar.pack.gz -> app.jar.
func JarName(packedPath string) (string, error) {
	switch {
	case strings.HasSuffix(packedPath, ".jar"+PackGzipSuffix):
		return strings.TrimSuffix(packedPath, PackGzipSuffix), nil
	case strings.HasSuffix(packedPath, ".jar"+PackSuffix):
		return strings.TrimSuffix(packedPath, PackSuffix), nil
	default:
		return "", fmt.Errorf("%w: %s", errNotPacked, packedPath)
	}
}

// Pack writes the packed form of the jar beside it and returns its path.
func (p *Packer) Pack(ctx context.Context, jarPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	entries, err := jarfile.Read(jarPath)
	if err != nil {
		return "", err
	}

	normalized, err := jarfile.Encode(jarfile.Normalize(entries), zip.Store)
	if err != nil {
		return "", fmt.Errorf("normalize %s: %w", jarPath, err)
	}

	packedPath := p.PackedName(jarPath)

	var compressed []byte
	if p.gzip {
		compressed, err = compressGzip(normalized)
	} else {
		compressed, err = compressZstd(normalized)
	}

	if err != nil {
		return "", fmt.Errorf("pack %s: %w", jarPath, err)
	}

	if err = os.WriteFile(packedPath, compressed, packFileMode); err != nil {
		return "", fmt.Errorf("write %s: %w", packedPath, err)
	}

	// Only one packed form may sit beside the jar.
	other := New(!p.gzip).PackedName(jarPath)
	if err = os.Remove(other); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("remove %s: %w", other, err)
	}

	return packedPath, nil
}

// Unpack restores the jar from its packed form, replacing the jar in place,
// and removes the packed file. It returns the jar path.
func (p *Packer) Unpack(ctx context.Context, packedPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	jarPath, err := JarName(packedPath)
	if err != nil {
		return "", err
	}

	compressed, err := os.ReadFile(filepath.Clean(packedPath))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", packedPath, err)
	}

	var normalized []byte
	if strings.HasSuffix(packedPath, PackGzipSuffix) {
		normalized, err = decompressGzip(compressed)
	} else {
		normalized, err = decompressZstd(compressed)
	}

	if err != nil {
		return "", fmt.Errorf("unpack %s: %w", packedPath, err)
	}

	entries, err := jarfile.ReadBytes(normalized)
	if err != nil {
		return "", fmt.Errorf("unpack %s: %w", packedPath, err)
	}

	data, err := jarfile.Encode(entries, zip.Deflate)
	if err != nil {
		return "", fmt.Errorf("rebuild %s: %w", jarPath, err)
	}

	if err = writeJar(jarPath, data); err != nil {
		return "", err
	}

	if err = os.Remove(packedPath); err != nil {
		return "", fmt.Errorf("remove %s: %w", packedPath, err)
	}

	return jarPath, nil
}

// writeJar replaces an existing jar or creates a missing one.
func writeJar(path string, data []byte) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return os.WriteFile(path, data, jarfile.DefaultFileMode)
	}

	return jarfile.Replace(path, data)
}

func compressZstd(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = encoder.Close()
	}()

	return encoder.EncodeAll(data, nil), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}

	defer decoder.Close()

	return decoder.DecodeAll(data, nil)
}

// compressGzip writes no name and no timestamp so output depends on input only.
func compressGzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	writer, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}

	if _, err = writer.Write(data); err != nil {
		return nil, err
	}

	if err = writer.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decompressGzip(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = reader.Close()
	}()

	return io.ReadAll(reader)
}
