package bundler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/oshokin/webstart-packager/internal/config"
	"github.com/oshokin/webstart-packager/internal/domain/artifact"
	"github.com/oshokin/webstart-packager/internal/logger"
	"github.com/oshokin/webstart-packager/internal/repository/resolver"
)

const workDirMode os.FileMode = 0o755

var errMissingCollaborator = errors.New("missing collaborator")

// Collaborators are the external tools a Pipeline drives. Packer, Signer,
// Keystore and Publisher may be nil when the matching feature is off.
type Collaborators struct {
	Resolver   resolver.Resolver
	Packer     Packer
	Signer     Signer
	Keystore   KeystoreTool
	Descriptor DescriptorGenerator
	Archiver   Archiver
	Publisher  Publisher
	// Clock returns the run start; time.Now when nil.
	Clock func() time.Time
}

// Bundle is the outcome of a run.
type Bundle struct {
	// ArchivePath is the written archive.
	ArchivePath string
	// Size is the archive size in bytes.
	Size int64
	// Staged lists every staged jar name in artifact order.
	Staged []string
	// Touched lists the jar names written in this run.
	Touched []string
	// Packed is the number of jars written in packed form.
	Packed int
	// Signed is the number of jars signed.
	Signed int
	// MainArtifact holds the main class.
	MainArtifact *artifact.Resolved
	// DescriptorChanged reports whether the descriptor was rewritten.
	DescriptorChanged bool
	// ObjectKey is set when the archive was published.
	ObjectKey string
}

// Pipeline assembles a bundle: copy, keystore preparation, pre-sign
// normalization, signing, final packing, descriptor and archive.
type Pipeline struct {
	cfg    *config.Config
	deps   Collaborators
	copier *Copier
}

// NewPipeline creates a Pipeline for a validated configuration.
func NewPipeline(cfg *config.Config, deps Collaborators) (*Pipeline, error) {
	switch {
	case deps.Resolver == nil:
		return nil, fmt.Errorf("%w: resolver", errMissingCollaborator)
	case deps.Descriptor == nil:
		return nil, fmt.Errorf("%w: descriptor generator", errMissingCollaborator)
	case deps.Archiver == nil:
		return nil, fmt.Errorf("%w: archiver", errMissingCollaborator)
	case cfg.Pack.Enabled && deps.Packer == nil:
		return nil, fmt.Errorf("%w: packer", errMissingCollaborator)
	case cfg.Sign != nil && (deps.Signer == nil || deps.Keystore == nil):
		return nil, fmt.Errorf("%w: signer", errMissingCollaborator)
	case cfg.Publish != nil && deps.Publisher == nil:
		return nil, fmt.Errorf("%w: publisher", errMissingCollaborator)
	}

	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		copier: &Copier{},
	}, nil
}

// Run executes every stage once, in order, and stops at the first error.
func (p *Pipeline) Run(ctx context.Context) (*Bundle, error) {
	run := NewRunContext(p.deps.Clock(), p.cfg.WorkDir)

	if err := os.MkdirAll(run.WorkDir, workDirMode); err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}

	if err := p.copyPhase(ctx, run); err != nil {
		return nil, err
	}

	bundle := &Bundle{
		Staged:       run.StagedNames(),
		Touched:      run.ModifiedJars(),
		MainArtifact: run.MainClassHolder,
	}

	if p.cfg.Pack.Enabled || p.cfg.Sign != nil {
		logger.DebugKV(ctx, "Artifacts to sign or pack", "jars", bundle.Touched)
	}

	if err := p.signPhase(ctx, run, bundle); err != nil {
		return nil, err
	}

	if err := p.finalPhase(ctx, run, bundle); err != nil {
		return nil, err
	}

	return bundle, nil
}

func (p *Pipeline) copyPhase(ctx context.Context, run *RunContext) error {
	artifacts, err := p.deps.Resolver.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolve artifacts: %w", err)
	}

	for _, info := range p.cfg.JNLP.Information {
		for _, icon := range info.Icons {
			if _, err = p.copier.StageResource(ctx, run, icon.Href, p.cfg.BaseDir, p.cfg.IconSearchDir()); err != nil {
				return err
			}
		}
	}

	selector := NewSelector(p.cfg.Dependencies, p.cfg.JNLP.MainClass, p.copier)
	if err = selector.Select(ctx, run, artifacts); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Staged artifacts",
		"staged", len(run.Staged),
		"copied", len(run.Touched),
		"main", run.MainClassHolder.String())

	return nil
}

func (p *Pipeline) signPhase(ctx context.Context, run *RunContext, bundle *Bundle) error {
	if p.cfg.Sign == nil {
		return nil
	}

	signing := NewSigningStage(p.deps.Signer, p.deps.Keystore, p.cfg.Sign, p.cfg.Keystore)

	if err := checkpoint(ctx, "keystore"); err != nil {
		return err
	}

	if err := signing.PrepareKeystore(ctx); err != nil {
		return err
	}

	if p.cfg.Pack.Enabled {
		if err := checkpoint(ctx, "pre-sign packing"); err != nil {
			return err
		}

		if _, err := NewCompressionStage(p.deps.Packer).PackUnpack(ctx, run); err != nil {
			return err
		}
	}

	if err := checkpoint(ctx, "signing"); err != nil {
		return err
	}

	signed, err := signing.Sign(ctx, run)
	if err != nil {
		return err
	}

	bundle.Signed = signed

	logger.InfoKV(ctx, "Signed jars", "count", signed)

	return nil
}

func (p *Pipeline) finalPhase(ctx context.Context, run *RunContext, bundle *Bundle) error {
	if p.cfg.Pack.Enabled {
		if err := checkpoint(ctx, "packing"); err != nil {
			return err
		}

		packed, err := NewCompressionStage(p.deps.Packer).FinalPack(ctx, run)
		if err != nil {
			return err
		}

		bundle.Packed = packed
	}

	finalizer := NewFinalizer(p.cfg, p.deps.Descriptor, p.deps.Archiver)

	if err := checkpoint(ctx, "descriptor"); err != nil {
		return err
	}

	changed, err := finalizer.WriteDescriptor(ctx, run)
	if err != nil {
		return err
	}

	bundle.DescriptorChanged = changed

	if err = checkpoint(ctx, "archive"); err != nil {
		return err
	}

	if bundle.ArchivePath, bundle.Size, err = finalizer.Archive(ctx, run); err != nil {
		return err
	}

	if p.deps.Publisher == nil {
		return nil
	}

	if err = checkpoint(ctx, "publish"); err != nil {
		return err
	}

	if bundle.ObjectKey, err = p.deps.Publisher.Publish(ctx, bundle.ArchivePath); err != nil {
		return fmt.Errorf("publish archive: %w", err)
	}

	return nil
}

func checkpoint(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s stage: %w", stage, err)
	}

	return nil
}
