package bundler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/webstart-packager/internal/tool/packer"
)

func TestCompressionStage_PackUnpack(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	run := NewRunContext(time.Now(), t.TempDir())
	stageTouched(t, run, "a.jar", "b.jar")

	old := filepath.Join(run.WorkDir, "old.jar")
	writeJar(t, old, "com.example.Old")
	setMtime(t, old, past)

	stage := NewCompressionStage(&fakePacker{rec: rec})

	count, err := stage.PackUnpack(context.Background(), run)
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Equal(t, []string{"a.jar", "b.jar"}, rec.names("pack"))
	require.Equal(t, []string{"a.jar.pack", "b.jar.pack"}, rec.names("unpack"))
	require.NoFileExists(t, filepath.Join(run.WorkDir, "a.jar.pack"))

	count, err = stage.FinalPack(context.Background(), run)
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.FileExists(t, filepath.Join(run.WorkDir, "a.jar.pack"))
	require.NoFileExists(t, filepath.Join(run.WorkDir, "old.jar.pack"))
}

func TestCompressionStage_RealPacker(t *testing.T) {
	t.Parallel()

	for _, gzip := range []bool{false, true} {
		run := NewRunContext(time.Now(), t.TempDir())
		stageTouched(t, run, "a.jar")

		stage := NewCompressionStage(packer.New(gzip))

		count, err := stage.PackUnpack(context.Background(), run)
		require.NoError(t, err)
		require.Equal(t, 1, count)

		require.NoFileExists(t, packer.New(gzip).PackedName(filepath.Join(run.WorkDir, "a.jar")),
			"intermediate pack file is removed")

		count, err = stage.FinalPack(context.Background(), run)
		require.NoError(t, err)
		require.Equal(t, 1, count)
		require.FileExists(t, packer.New(gzip).PackedName(filepath.Join(run.WorkDir, "a.jar")))
	}
}

func TestCompressionStage_FailFast(t *testing.T) {
	t.Parallel()

	run := NewRunContext(time.Now(), t.TempDir())
	stageTouched(t, run, "a.jar")

	require.NoError(t, os.WriteFile(filepath.Join(run.WorkDir, "broken.jar.pack"), []byte("garbage"), 0o644))

	_, err := NewCompressionStage(packer.New(false)).PackUnpack(context.Background(), run)
	require.Error(t, err)
}
