package bundler

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/oshokin/webstart-packager/internal/config"
	"github.com/oshokin/webstart-packager/internal/logger"
	"github.com/oshokin/webstart-packager/internal/tool/descriptor"
)

// DescriptorGenerator renders the deployment descriptor.
type DescriptorGenerator interface {
	// Generate writes data to outPath and reports whether the file changed.
	Generate(ctx context.Context, data *descriptor.Data, outPath string) (bool, error)
}

// Archiver zips a directory.
type Archiver interface {
	// Archive replaces dest with an archive of dir and returns its size.
	Archive(ctx context.Context, dir, dest string) (int64, error)
}

// Publisher uploads the archive somewhere else.
type Publisher interface {
	// Publish uploads archivePath and returns the object key.
	Publish(ctx context.Context, archivePath string) (string, error)
}

// Finalizer writes the descriptor and the archive.
type Finalizer struct {
	cfg        *config.Config
	descriptor DescriptorGenerator
	archiver   Archiver
}

// NewFinalizer creates a Finalizer.
func NewFinalizer(cfg *config.Config, d DescriptorGenerator, a Archiver) *Finalizer {
	return &Finalizer{
		cfg:        cfg,
		descriptor: d,
		archiver:   a,
	}
}

// WriteDescriptor renders the descriptor into the working directory.
func (f *Finalizer) WriteDescriptor(ctx context.Context, run *RunContext) (bool, error) {
	outPath := filepath.Join(run.WorkDir, f.cfg.JNLP.OutputFile)

	changed, err := f.descriptor.Generate(ctx, f.descriptorData(run), outPath)
	if err != nil {
		return false, fmt.Errorf("generate descriptor: %w", err)
	}

	if changed {
		logger.DebugKV(ctx, "Descriptor written", "path", outPath)
	} else {
		logger.DebugKV(ctx, "Descriptor unchanged", "path", outPath)
	}

	return changed, nil
}

// Archive zips the working directory into the configured archive.
func (f *Finalizer) Archive(ctx context.Context, run *RunContext) (string, int64, error) {
	dest := f.cfg.ArchivePath()

	size, err := f.archiver.Archive(ctx, run.WorkDir, dest)
	if err != nil {
		return "", 0, fmt.Errorf("archive %s: %w", run.WorkDir, err)
	}

	return dest, size, nil
}

func (f *Finalizer) descriptorData(run *RunContext) *descriptor.Data {
	jnlp := f.cfg.JNLP

	data := &descriptor.Data{
		Spec:           jnlp.Spec,
		Codebase:       jnlp.Codebase,
		Href:           jnlp.OutputFile,
		MainClass:      jnlp.MainClass,
		J2SEVersion:    jnlp.J2SEVersion,
		AllPermissions: jnlp.AllPermissions,
		OfflineAllowed: jnlp.OfflineAllowed,
		Arguments:      jnlp.Arguments,
		Jars:           make([]descriptor.Jar, 0, len(run.Staged)),
		Information:    make([]descriptor.Information, 0, len(jnlp.Information)),
	}

	for _, staged := range run.Staged {
		data.Jars = append(data.Jars, descriptor.Jar{
			Href: staged.Name(),
			Main: staged.Source == run.MainClassHolder,
		})
	}

	for _, info := range jnlp.Information {
		block := descriptor.Information{
			Title:       info.Title,
			Vendor:      info.Vendor,
			Homepage:    info.Homepage,
			Description: info.Description,
			Locale:      info.Locale,
		}

		for _, icon := range info.Icons {
			href, ok := run.Icons[icon.Href]
			if !ok {
				href = icon.Href
			}

			block.Icons = append(block.Icons, descriptor.Icon{
				Href:   href,
				Kind:   icon.Kind,
				Width:  icon.Width,
				Height: icon.Height,
			})
		}

		data.Information = append(data.Information, block)
	}

	return data
}
