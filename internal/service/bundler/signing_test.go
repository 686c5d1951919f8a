package bundler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/webstart-packager/internal/config"
	"github.com/oshokin/webstart-packager/internal/domain/artifact"
)

func stageTouched(t *testing.T, run *RunContext, names ...string) {
	t.Helper()

	for _, name := range names {
		path := filepath.Join(run.WorkDir, name)
		writeJar(t, path, "com.example.Lib")

		staged := &artifact.Staged{Path: path, TouchedThisRun: true}
		run.Staged = append(run.Staged, staged)
		run.Touched[name] = staged
	}
}

func TestSigningStage_RestoresModificationTime(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	run := NewRunContext(time.Now(), t.TempDir())
	stageTouched(t, run, "a.jar", "b.jar")

	stamp := run.Epoch.Add(500 * time.Millisecond)
	for _, name := range []string{"a.jar", "b.jar"} {
		setMtime(t, filepath.Join(run.WorkDir, name), stamp)
	}

	stage := NewSigningStage(&fakeSigner{rec: rec}, &fakeKeystore{rec: rec}, &config.Sign{}, config.Keystore{})

	signed, err := stage.Sign(context.Background(), run)
	require.NoError(t, err)
	require.Equal(t, 2, signed)
	require.Equal(t, []string{"a.jar", "b.jar"}, rec.names("sign"))

	for _, name := range []string{"a.jar", "b.jar"} {
		path := filepath.Join(run.WorkDir, name)
		require.True(t, mtime(t, path).Equal(stamp), "%s keeps its pre-sign time", name)

		data, readErr := os.ReadFile(path)
		require.NoError(t, readErr)
		require.Contains(t, string(data), "signed")
	}
}

func TestSigningStage_InvariantDivergence(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	run := NewRunContext(time.Now(), t.TempDir())
	stageTouched(t, run, "a.jar")

	// A jar written behind the copier's back.
	writeJar(t, filepath.Join(run.WorkDir, "stray.jar"), "com.example.Stray")

	stage := NewSigningStage(&fakeSigner{rec: rec}, &fakeKeystore{rec: rec}, &config.Sign{}, config.Keystore{})

	signed, err := stage.Sign(context.Background(), run)
	require.ErrorIs(t, err, ErrInternalConsistency)
	require.Equal(t, 2, signed)

	var invariant *InvariantError
	require.True(t, errors.As(err, &invariant))
	require.Equal(t, 1, invariant.Expected)
	require.Equal(t, 2, invariant.Actual)
	require.Contains(t, err.Error(), "implementation error")
}

func TestSigningStage_PrepareKeystore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		keystore config.Keystore
		calls    []call
	}{
		{name: "nothing"},
		{
			name:     "delete then generate",
			keystore: config.Keystore{Delete: true, Gen: true},
			calls: []call{
				{Op: "keystore-delete", Name: "store.age"},
				{Op: "keystore-gen", Name: "store.age"},
			},
		},
		{
			name:     "delete alone keeps the keystore",
			keystore: config.Keystore{Delete: true},
		},
		{
			name:     "generate only",
			keystore: config.Keystore{Gen: true},
			calls:    []call{{Op: "keystore-gen", Name: "store.age"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := &recorder{}
			sign := &config.Sign{Alias: "release", Keystore: "/keys/store.age", StorePass: "secret"}
			stage := NewSigningStage(&fakeSigner{rec: rec}, &fakeKeystore{rec: rec}, sign, tt.keystore)

			require.NoError(t, stage.PrepareKeystore(context.Background()))
			require.Equal(t, tt.calls, rec.calls)
		})
	}
}
