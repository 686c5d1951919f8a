package artifact

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// TypeJar is the only payload type the pipeline stages.
	TypeJar = "jar"

	// ScopeCompile is the default scope of a resolved artifact.
	ScopeCompile = "compile"
	// ScopeRuntime marks artifacts needed only at run time.
	ScopeRuntime = "runtime"
	// ScopeProvided marks artifacts supplied by the runtime environment.
	ScopeProvided = "provided"
	// ScopeTest marks artifacts used only by tests.
	ScopeTest = "test"
	// ScopeSystem marks artifacts referenced by an explicit system path.
	ScopeSystem = "system"

	// JarExtension is the file suffix of a jar payload.
	JarExtension = ".jar"
)

// Resolved is an artifact returned by the dependency resolver.
// The pipeline treats it and its source file as read-only.
type Resolved struct {
	// Group is the organisation coordinate (for example com.example).
	Group string `yaml:"group"`
	// Name is the artifact coordinate inside the group.
	Name string `yaml:"name"`
	// Version is the resolved version.
	Version string `yaml:"version"`
	// Type is the payload type; only "jar" is processed.
	Type string `yaml:"type"`
	// Scope is the dependency scope the artifact was resolved in.
	Scope string `yaml:"scope"`
	// Path points at the immutable source file.
	Path string `yaml:"path"`
}

// VersionlessKey returns "group:name", the form dependency specs are written in.
func (r *Resolved) VersionlessKey() string {
	return r.Group + ":" + r.Name
}

// String renders the full coordinate group:name:type:version:scope.
func (r *Resolved) String() string {
	return fmt.Sprintf("%s:%s:%s:%s:%s", r.Group, r.Name, r.Type, r.Version, r.Scope)
}

// FileName is the base name of the source file, reused as the staged name.
func (r *Resolved) FileName() string {
	return filepath.Base(r.Path)
}

// IsPackaged reports whether the artifact's scope ends up in the bundle.
func (r *Resolved) IsPackaged() bool {
	return r.Scope != ScopeProvided && r.Scope != ScopeTest
}

// IsJar reports whether the artifact carries a jar payload.
func (r *Resolved) IsJar() bool {
	return r.Type == TypeJar
}

// Spec is a versionless "group:name" coordinate from configuration.
type Spec string

// Matches reports whether the spec names the resolved artifact.
func (s Spec) Matches(r *Resolved) bool {
	return string(s) == r.VersionlessKey()
}

// Validate checks that the spec has exactly two non-empty parts.
func (s Spec) Validate() error {
	parts := strings.Split(string(s), ":")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return fmt.Errorf("dependency %q: expected group:name", string(s))
	}

	return nil
}

// Staged is a file in the working directory produced from a resolved artifact.
type Staged struct {
	// Path is the location inside the working directory.
	Path string
	// Source is the artifact the file was staged from.
	Source *Resolved
	// TouchedThisRun is true when the copier wrote the file during the current run.
	TouchedThisRun bool
}

// Name returns the base name of the staged file.
func (s *Staged) Name() string {
	return filepath.Base(s.Path)
}

// IsJarName reports whether a file name denotes a plain jar.
func IsJarName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), JarExtension)
}

// ClassEntryName converts a fully qualified class name into the zip entry
// name of its compiled form: com.example.Main -> com/example/Main.class.
func ClassEntryName(className string) string {
	return strings.ReplaceAll(strings.TrimSpace(className), ".", "/") + ".class"
}
