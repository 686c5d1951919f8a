package bundler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/webstart-packager/internal/config"
)

func writeProjectFiles(t *testing.T, base string) string {
	t.Helper()

	writeJar(t, filepath.Join(base, "libs", "app-1.0.jar"), testMainClass)

	require.NoError(t, os.WriteFile(filepath.Join(base, "resolved-dependencies.yaml"), []byte(`artifacts:
  - group: com.example
    name: app
    version: "1.0"
    path: libs/app-1.0.jar
  - group: com.example
    name: servlet-api
    version: "3.1"
    scope: provided
    path: libs/app-1.0.jar
`), 0o644))

	configPath := filepath.Join(base, "webstart.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`final_name: demo
dependencies:
  - com.example:app
pack:
  enabled: true
jnlp:
  main_class: com.example.Main
  use_jnlp_servlet: true
  information:
    - title: Demo
      vendor: Example Corp
`), 0o644))

	return configPath
}

func TestRun_FromConfigFile(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	configPath := writeProjectFiles(t, base)

	bundle, err := Run(context.Background(), &Options{ConfigPath: configPath})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, "target", "demo.zip"), bundle.ArchivePath)
	require.Equal(t, []string{"app-1.0.jar"}, bundle.Staged)
	require.Equal(t, 1, bundle.Packed)
	require.Positive(t, bundle.Size)

	descriptor, err := os.ReadFile(filepath.Join(base, "target", "jnlp", "launch.jnlp"))
	require.NoError(t, err)
	require.Contains(t, string(descriptor), `codebase="$$codebase"`)
}

func TestRun_Overrides(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	configPath := writeProjectFiles(t, base)
	out := t.TempDir()

	bundle, err := Run(context.Background(), &Options{
		ConfigPath: configPath,
		WorkDir:    filepath.Join(out, "stage"),
		OutputDir:  out,
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(out, "demo.zip"), bundle.ArchivePath)
	require.FileExists(t, filepath.Join(out, "stage", "app-1.0.jar"))
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	configPath := writeProjectFiles(t, base)

	_, err := Run(context.Background(), &Options{ConfigPath: configPath, LogLevel: "loud"})
	require.ErrorIs(t, err, errUnknownLogLevel)

	_, err = Run(context.Background(), &Options{ConfigPath: filepath.Join(base, "absent.yaml")})
	require.Error(t, err)

	out := t.TempDir()
	_, err = Run(context.Background(), &Options{ConfigPath: configPath, WorkDir: out, OutputDir: out})
	require.ErrorIs(t, err, config.ErrInvalid)
	require.NoFileExists(t, filepath.Join(out, "demo.zip"))
}
