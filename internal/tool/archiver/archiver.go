package archiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

const archiveFileMode os.FileMode = 0o644

// ErrDestInsideDir is returned when the archive would be part of its own input.
var ErrDestInsideDir = errors.New("archive must not be written inside the archived directory")

// Archive writes every file below dir into a zip at dest and returns the
// archive size. A previous archive at dest is deleted first. dest must not
// live inside dir.
func Archive(ctx context.Context, dir, dest string) (int64, error) {
	inside, err := IsWithin(dir, dest)
	if err != nil {
		return 0, err
	}

	if inside {
		return 0, fmt.Errorf("%w: %s is under %s", ErrDestInsideDir, dest, dir)
	}

	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("delete previous archive: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.OpenFile(filepath.Clean(dest), os.O_CREATE|os.O_EXCL|os.O_WRONLY, archiveFileMode)
	if err != nil {
		return 0, fmt.Errorf("create archive: %w", err)
	}

	writer := zip.NewWriter(file)

	// WalkDir visits entries in lexical order.
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if err = ctx.Err(); err != nil {
			return err
		}

		if path == dir {
			return nil
		}

		return addEntry(writer, dir, path, d)
	})

	closeErr := writer.Close()
	if err = file.Close(); closeErr == nil {
		closeErr = err
	}

	if walkErr != nil || closeErr != nil {
		_ = os.Remove(dest)

		return 0, fmt.Errorf("write archive: %w", errors.Join(walkErr, closeErr))
	}

	info, err := os.Stat(dest)
	if err != nil {
		return 0, fmt.Errorf("stat archive: %w", err)
	}

	return info.Size(), nil
}

// IsWithin reports whether path is dir itself or lies below it.
func IsWithin(dir, path string) (bool, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", dir, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", path, err)
	}

	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false, nil
	}

	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))), nil
}

func addEntry(writer *zip.Writer, root, path string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = filepath.ToSlash(rel)

	if d.IsDir() {
		header.Name += "/"
		header.Method = zip.Store

		_, err = writer.CreateHeader(header)

		return err
	}

	if !info.Mode().IsRegular() {
		return nil
	}

	header.Method = zip.Deflate

	dst, err := writer.CreateHeader(header)
	if err != nil {
		return err
	}

	src, err := os.Open(filepath.Clean(path))
	if err != nil {
		return err
	}

	defer func() {
		_ = src.Close()
	}()

	_, err = io.Copy(dst, src)

	return err
}
