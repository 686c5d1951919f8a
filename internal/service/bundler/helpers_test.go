package bundler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/webstart-packager/internal/config"
	"github.com/oshokin/webstart-packager/internal/domain/artifact"
	"github.com/oshokin/webstart-packager/internal/repository/resolver"
	"github.com/oshokin/webstart-packager/internal/tool/archiver"
	"github.com/oshokin/webstart-packager/internal/tool/descriptor"
	"github.com/oshokin/webstart-packager/internal/tool/jarfile"
	"github.com/oshokin/webstart-packager/internal/tool/keytool"
)

const testMainClass = "com.example.Main"

// past is far enough back that files carrying it never count as touched.
var past = time.Now().Add(-2 * time.Hour).Truncate(time.Second)

// writeJar writes a deflated jar holding the given class files.
func writeJar(t *testing.T, path string, classes ...string) {
	t.Helper()

	ts := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	entries := []jarfile.Entry{
		{Name: jarfile.ManifestName, Modified: ts, Data: []byte("Manifest-Version: 1.0\r\n\r\n")},
	}

	for _, class := range classes {
		entries = append(entries, jarfile.Entry{
			Name:     artifact.ClassEntryName(class),
			Modified: ts,
			Data:     []byte(class),
		})
	}

	data, err := jarfile.Encode(entries, zip.Deflate)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// setMtime sets both access and modification times of path.
func setMtime(t *testing.T, path string, ts time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(path, ts, ts))
}

func mtime(t *testing.T, path string) time.Time {
	t.Helper()

	info, err := os.Stat(path)
	require.NoError(t, err)

	return info.ModTime()
}

// ageDir moves every file under dir into the past, as if the previous run
// happened long ago.
func ageDir(t *testing.T, dir string, ts time.Time) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			ageDir(t, path, ts)
		}

		setMtime(t, path, ts)
	}
}

// newJarArtifact writes a source jar in repo and returns its resolved form.
func newJarArtifact(t *testing.T, repo, group, name string, classes ...string) *artifact.Resolved {
	t.Helper()

	a := &artifact.Resolved{
		Group:   group,
		Name:    name,
		Version: "1.0",
		Type:    artifact.TypeJar,
		Scope:   artifact.ScopeCompile,
	}
	a.Path = filepath.Join(repo, name+"-"+a.Version+artifact.JarExtension)

	writeJar(t, a.Path, classes...)
	setMtime(t, a.Path, past)

	return a
}

// newConfig returns a configuration rooted at base; callers validate it
// after adjusting features.
func newConfig(base string, deps ...string) *config.Config {
	return &config.Config{
		BaseDir:      base,
		FinalName:    "app",
		Dependencies: deps,
		JNLP: config.JNLP{
			MainClass: testMainClass,
			Codebase:  "http://example.com/app/",
			Information: []config.Information{
				{Title: "Example", Vendor: "Example Corp"},
			},
		},
	}
}

// call is one recorded collaborator invocation.
type call struct {
	Op   string
	Name string
}

// recorder collects calls across fakes in order.
type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) add(op, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, call{Op: op, Name: filepath.Base(path)})
}

func (r *recorder) names(op string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0)

	for _, c := range r.calls {
		if c.Op == op {
			names = append(names, c.Name)
		}
	}

	return names
}

// fakePacker writes marker pack files and rewrites jars on unpack. A
// non-zero unpacked time is stamped on every rewritten jar.
type fakePacker struct {
	rec      *recorder
	unpacked time.Time
}

func (p *fakePacker) Pack(_ context.Context, jarPath string) (string, error) {
	p.rec.add("pack", jarPath)

	packed := jarPath + ".pack"

	return packed, os.WriteFile(packed, []byte("packed"), 0o644)
}

func (p *fakePacker) Unpack(_ context.Context, packedPath string) (string, error) {
	p.rec.add("unpack", packedPath)

	jarPath := packedPath[:len(packedPath)-len(".pack")]

	data, err := os.ReadFile(jarPath)
	if err != nil {
		return "", err
	}

	if err = os.WriteFile(jarPath, data, 0o644); err != nil {
		return "", err
	}

	if !p.unpacked.IsZero() {
		if err = os.Chtimes(jarPath, p.unpacked, p.unpacked); err != nil {
			return "", err
		}
	}

	return jarPath, os.Remove(packedPath)
}

// fakeSigner appends a marker to the jar, which bumps its mtime.
type fakeSigner struct {
	rec *recorder
}

func (s *fakeSigner) Sign(_ context.Context, jarPath string) error {
	s.rec.add("sign", jarPath)

	f, err := os.OpenFile(jarPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	if _, err = f.WriteString("signed"); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}

type fakeKeystore struct {
	rec *recorder
}

func (k *fakeKeystore) Delete(path string) (bool, error) {
	k.rec.add("keystore-delete", path)
	return false, nil
}

func (k *fakeKeystore) Generate(_ context.Context, opts *keytool.GenerateOptions) error {
	k.rec.add("keystore-gen", opts.Keystore)
	return nil
}

// newTestPipeline wires fakes for packing and signing and the real
// descriptor and archiver.
func newTestPipeline(t *testing.T, cfg *config.Config, artifacts []*artifact.Resolved, rec *recorder) *Pipeline {
	t.Helper()

	return newTestPipelineWithPacker(t, cfg, artifacts, rec, &fakePacker{rec: rec})
}

func newTestPipelineWithPacker(
	t *testing.T,
	cfg *config.Config,
	artifacts []*artifact.Resolved,
	rec *recorder,
	packer Packer,
) *Pipeline {
	t.Helper()

	gen, err := descriptor.New("")
	require.NoError(t, err)

	p, err := NewPipeline(cfg, Collaborators{
		Resolver:   resolver.Static(artifacts),
		Packer:     packer,
		Signer:     &fakeSigner{rec: rec},
		Keystore:   &fakeKeystore{rec: rec},
		Descriptor: gen,
		Archiver:   ArchiverFunc(archiver.Archive),
	})
	require.NoError(t, err)

	return p
}
