package archiver

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

func populate(t *testing.T, dir string) {
	t.Helper()

	ts := time.Date(2024, time.May, 5, 5, 5, 5, 0, time.UTC)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "images"), 0o755))

	for name, contents := range map[string]string{
		"app.jar":         "jar",
		"launch.jnlp":     "<jnlp/>",
		"images/icon.png": "png",
		"app.jar.pack.gz": "packed",
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
		require.NoError(t, os.Chtimes(path, ts, ts))
	}

	require.NoError(t, os.Chtimes(filepath.Join(dir, "images"), ts, ts))
}

// TestArchive writes sorted entries and replaces a previous archive.
func TestArchive(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	work := filepath.Join(root, "jnlp")
	dest := filepath.Join(root, "out", "bundle.zip")

	populate(t, work)

	require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0o755))
	require.NoError(t, os.WriteFile(dest, []byte("stale archive"), 0o644))

	size, err := Archive(context.Background(), work, dest)
	require.NoError(t, err)
	require.Positive(t, size)

	reader, err := zip.OpenReader(dest)
	require.NoError(t, err)

	defer func() {
		_ = reader.Close()
	}()

	names := make([]string, 0, len(reader.File))
	for _, f := range reader.File {
		names = append(names, f.Name)
	}

	require.Equal(t, []string{"app.jar", "app.jar.pack.gz", "images/", "images/icon.png", "launch.jnlp"}, names)
}

// TestArchiveDeterministic archives the same tree twice.
func TestArchiveDeterministic(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	work := filepath.Join(root, "jnlp")
	populate(t, work)

	first := filepath.Join(root, "a.zip")
	second := filepath.Join(root, "b.zip")

	_, err := Archive(context.Background(), work, first)
	require.NoError(t, err)

	_, err = Archive(context.Background(), work, second)
	require.NoError(t, err)

	a, err := os.ReadFile(first)
	require.NoError(t, err)

	b, err := os.ReadFile(second)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

// TestArchiveRejectsDestInsideDir keeps the archive out of its own input.
func TestArchiveRejectsDestInsideDir(t *testing.T) {
	t.Parallel()

	work := t.TempDir()
	populate(t, work)

	for _, dest := range []string{
		filepath.Join(work, "bundle.zip"),
		filepath.Join(work, "dist", "bundle.zip"),
	} {
		_, err := Archive(context.Background(), work, dest)
		require.ErrorIs(t, err, ErrDestInsideDir)
		require.NoFileExists(t, dest)
	}
}

func TestIsWithin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dir, path string
		want      bool
	}{
		{dir: "/w/jnlp", path: "/w/jnlp", want: true},
		{dir: "/w/jnlp", path: "/w/jnlp/app.zip", want: true},
		{dir: "/w/jnlp", path: "/w/jnlp/../jnlp/out/app.zip", want: true},
		{dir: "/w/jnlp", path: "/w/app.zip", want: false},
		{dir: "/w/jnlp", path: "/w/jnlp-out/app.zip", want: false},
		{dir: "/w/jnlp", path: "/w/..app.zip", want: false},
	}

	for _, tt := range tests {
		got, err := IsWithin(tt.dir, tt.path)
		require.NoError(t, err)
		require.Equal(t, tt.want, got, "%s in %s", tt.path, tt.dir)
	}
}
