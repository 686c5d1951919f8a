package bundler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oshokin/webstart-packager/internal/domain/artifact"
	"github.com/oshokin/webstart-packager/internal/logger"
)

const stagedFileMode os.FileMode = 0o644

// Copier stages files into a directory when they are stale.
type Copier struct{}

// Stage copies source into dir unless the staged copy is up to date. It
// reports whether the file was written. An up-to-date copy keeps its
// contents and modification time.
func (c *Copier) Stage(ctx context.Context, source, dir string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	destination := filepath.Join(dir, filepath.Base(source))

	if !IsStale(source, destination) {
		logger.DebugKV(ctx, "Source has not changed, keeping staged copy",
			"source", source,
			"staged", destination)

		return false, nil
	}

	if err := copyFile(source, destination); err != nil {
		return false, err
	}

	logger.DebugKV(ctx, "Staged file", "source", source, "staged", destination)

	return true, nil
}

// StageArtifact stages a resolved jar into the working directory and records
// it in the run.
func (c *Copier) StageArtifact(ctx context.Context, run *RunContext, a *artifact.Resolved) (*artifact.Staged, error) {
	touched, err := c.Stage(ctx, a.Path, run.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", a, err)
	}

	staged := &artifact.Staged{
		Path:           filepath.Join(run.WorkDir, a.FileName()),
		Source:         a,
		TouchedThisRun: touched,
	}

	for _, previous := range run.Staged {
		if previous.Name() == staged.Name() {
			logger.WarnKV(ctx, "Staged file name is already used by another artifact, both share one staged file",
				"name", staged.Name(),
				"artifact", a.String(),
				"previous", previous.Source.String())

			break
		}
	}

	run.Staged = append(run.Staged, staged)

	if touched {
		run.Touched[staged.Name()] = staged
	}

	return staged, nil
}

// StageResource locates href (as given, under baseDir, then under iconsDir)
// and stages it into WorkDir/images. It returns the staged path relative to
// WorkDir in slash form.
func (c *Copier) StageResource(ctx context.Context, run *RunContext, href, baseDir, iconsDir string) (string, error) {
	source, err := FindResource(ctx, href, baseDir, iconsDir)
	if err != nil {
		return "", err
	}

	imagesDir := filepath.Join(run.WorkDir, ImagesDir)
	if err = os.MkdirAll(imagesDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", imagesDir, err)
	}

	if _, err = c.Stage(ctx, source, imagesDir); err != nil {
		return "", fmt.Errorf("stage resource %s: %w", href, err)
	}

	rel := ImagesDir + "/" + filepath.Base(source)
	run.Icons[href] = rel

	return rel, nil
}

// FindResource searches href as a raw path, relative to baseDir, then
// relative to iconsDir.
func FindResource(ctx context.Context, href, baseDir, iconsDir string) (string, error) {
	candidates := []string{
		href,
		filepath.Join(baseDir, href),
		filepath.Join(iconsDir, href),
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && info.Mode().IsRegular() {
			logger.DebugKV(ctx, "Resource found", "href", href, "path", candidate)

			return candidate, nil
		}

		logger.DebugKV(ctx, "Resource not found", "href", href, "path", candidate)
	}

	return "", fmt.Errorf("%w: %s", ErrResourceNotFound, href)
}

// copyFile writes source over destination; the destination gets a fresh
// modification time.
func copyFile(source, destination string) error {
	src, err := os.Open(filepath.Clean(source))
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}

	defer func() {
		_ = src.Close()
	}()

	dst, err := os.OpenFile(filepath.Clean(destination), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, stagedFileMode)
	if err != nil {
		return fmt.Errorf("create staged file: %w", err)
	}

	_, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()

	if err = errors.Join(copyErr, closeErr); err != nil {
		return fmt.Errorf("copy %s: %w", source, err)
	}

	return nil
}
