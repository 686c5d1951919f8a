package bundler

import (
	"context"
	"fmt"

	"github.com/oshokin/webstart-packager/internal/domain/artifact"
	"github.com/oshokin/webstart-packager/internal/logger"
	"github.com/oshokin/webstart-packager/internal/tool/packer"
)

// Packer converts jars to their packed form and back.
type Packer interface {
	// Pack writes the packed form beside jarPath and returns its path.
	Pack(ctx context.Context, jarPath string) (string, error)
	// Unpack rewrites the jar from packedPath and returns the jar path.
	Unpack(ctx context.Context, packedPath string) (string, error)
}

// CompressionStage runs the pack cycle over jars written this run.
type CompressionStage struct {
	packer Packer
}

// NewCompressionStage wraps a Packer.
func NewCompressionStage(p Packer) *CompressionStage {
	return &CompressionStage{packer: p}
}

// PackUnpack packs every jar written this run and unpacks the results over
// the jars, leaving them in canonical layout before signing. It returns the
// number of jars normalized.
func (c *CompressionStage) PackUnpack(ctx context.Context, run *RunContext) (int, error) {
	packed, err := c.pack(ctx, run)
	if err != nil {
		return 0, err
	}

	// Pack names differ from jar names, so select by suffix and not by the
	// copy-phase set.
	packedFiles, err := run.listTouched(packer.IsPacked)
	if err != nil {
		return 0, err
	}

	for _, path := range packedFiles {
		if _, err = c.packer.Unpack(ctx, path); err != nil {
			return 0, fmt.Errorf("unpack %s: %w", path, err)
		}
	}

	logger.DebugKV(ctx, "Normalized jars before signing", "packed", packed, "unpacked", len(packedFiles))

	return len(packedFiles), nil
}

// FinalPack writes the distributable packed form of every jar written this
// run. It returns the number of jars packed.
func (c *CompressionStage) FinalPack(ctx context.Context, run *RunContext) (int, error) {
	packed, err := c.pack(ctx, run)
	if err != nil {
		return 0, err
	}

	logger.DebugKV(ctx, "Packed jars", "count", packed)

	return packed, nil
}

func (c *CompressionStage) pack(ctx context.Context, run *RunContext) (int, error) {
	jars, err := run.listTouched(artifact.IsJarName)
	if err != nil {
		return 0, err
	}

	for _, path := range jars {
		if _, err = c.packer.Pack(ctx, path); err != nil {
			return 0, fmt.Errorf("pack %s: %w", path, err)
		}
	}

	return len(jars), nil
}
