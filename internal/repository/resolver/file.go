package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/webstart-packager/internal/domain/artifact"
)

// Resolver returns the resolved artifact set in a stable iteration order.
type Resolver interface {
	Resolve(ctx context.Context) ([]*artifact.Resolved, error)
}

// FileResolver reads resolved artifacts from a YAML manifest on disk.
type FileResolver struct {
	// path is the manifest location.
	path string
	// repository is a Maven-layout root for entries without an explicit path.
	repository string
}

// manifest is the on-disk layout of the resolver output.
type manifest struct {
	Artifacts []*artifact.Resolved `yaml:"artifacts"`
}

var (
	// ErrNotFound is returned when the manifest file does not exist.
	ErrNotFound = errors.New("resolved dependencies not found")
	// ErrArtifactMissing is returned when a resolved artifact has no file on disk.
	ErrArtifactMissing = errors.New("resolved artifact file is missing")

	errIncompleteEntry = errors.New("incomplete artifact entry")
)

// NewFileResolver creates a resolver for the manifest at path. Entries that
// carry no path are looked up under repository using the Maven layout.
func NewFileResolver(path, repository string) *FileResolver {
	return &FileResolver{
		path:       filepath.Clean(path),
		repository: repository,
	}
}

// Resolve reads the manifest, fills defaults and checks every file exists.
func (r *FileResolver) Resolve(ctx context.Context) ([]*artifact.Resolved, error) {
	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, r.path)
		}

		return nil, fmt.Errorf("read resolved dependencies: %w", err)
	}

	var m manifest
	if err = yaml.Unmarshal(contents, &m); err != nil {
		return nil, fmt.Errorf("decode resolved dependencies: %w", err)
	}

	baseDir := filepath.Dir(r.path)

	for i, a := range m.Artifacts {
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		if a == nil || a.Group == "" || a.Name == "" || a.Version == "" {
			return nil, fmt.Errorf("%w at index %d", errIncompleteEntry, i)
		}

		if a.Type == "" {
			a.Type = artifact.TypeJar
		}

		if a.Scope == "" {
			a.Scope = artifact.ScopeCompile
		}

		if a.Path, err = r.locate(baseDir, a); err != nil {
			return nil, err
		}
	}

	return m.Artifacts, nil
}

// locate returns the absolute source path of a and verifies it exists.
func (r *FileResolver) locate(baseDir string, a *artifact.Resolved) (string, error) {
	path := a.Path

	switch {
	case path == "" && r.repository != "":
		path = RepositoryPath(r.repository, a)
	case path == "":
		return "", fmt.Errorf("%w: %s has no path and no repository is configured", ErrArtifactMissing, a)
	case !filepath.IsAbs(path):
		path = filepath.Join(baseDir, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s at %s: %w", ErrArtifactMissing, a, path, err)
	}

	if info.IsDir() {
		return "", fmt.Errorf("%w: %s at %s is a directory", ErrArtifactMissing, a, path)
	}

	return path, nil
}

// RepositoryPath returns the Maven layout location of a under root:
// root/com/example/app-core/1.0/app-core-1.0.jar.
func RepositoryPath(root string, a *artifact.Resolved) string {
	groupPath := filepath.Join(strings.Split(a.Group, ".")...)
	fileName := a.Name + "-" + a.Version + "." + a.Type

	return filepath.Join(root, groupPath, a.Name, a.Version, fileName)
}

// Static is a Resolver over an in-memory artifact list.
type Static []*artifact.Resolved

// Resolve returns the list unchanged.
func (s Static) Resolve(_ context.Context) ([]*artifact.Resolved, error) {
	return s, nil
}
