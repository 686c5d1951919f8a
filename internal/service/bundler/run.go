package bundler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oshokin/webstart-packager/internal/domain/artifact"
)

// ImagesDir is the working directory subfolder holding icons.
const ImagesDir = "images"

// RunContext is the state shared by the stages of one run. Each stage only
// touches the fields it owns: the copier fills Staged and Touched, the
// selector sets MainClassHolder, later stages read them.
type RunContext struct {
	// Epoch is the start of the run minus EpochMargin.
	Epoch time.Time
	// WorkDir is the persistent staging directory.
	WorkDir string
	// Staged lists staged jars in artifact iteration order.
	Staged []*artifact.Staged
	// Touched holds staged jar names the copier wrote in this run.
	// It is fixed after the copy phase.
	Touched map[string]*artifact.Staged
	// Icons maps configured hrefs to their staged paths relative to WorkDir.
	Icons map[string]string
	// MainClassHolder is the first staged artifact containing the main class.
	MainClassHolder *artifact.Resolved
}

// NewRunContext starts a run at start against workDir.
func NewRunContext(start time.Time, workDir string) *RunContext {
	return &RunContext{
		Epoch:   RunEpoch(start),
		WorkDir: workDir,
		Touched: make(map[string]*artifact.Staged),
		Icons:   make(map[string]string),
	}
}

// IsTouchedThisRun reports whether the file was written after the epoch.
func (r *RunContext) IsTouchedThisRun(path string) bool {
	return touchedSince(path, r.Epoch)
}

// ModifiedJars returns the sorted names of jars the copier wrote this run.
func (r *RunContext) ModifiedJars() []string {
	names := make([]string, 0, len(r.Touched))
	for name := range r.Touched {
		if artifact.IsJarName(name) {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names
}

// StagedNames returns staged file names in staging order.
func (r *RunContext) StagedNames() []string {
	names := make([]string, 0, len(r.Staged))
	for _, s := range r.Staged {
		names = append(names, s.Name())
	}

	return names
}

// listTouched returns the sorted paths of regular files directly in WorkDir
// that match accept and were modified this run.
func (r *RunContext) listTouched(accept func(name string) bool) ([]string, error) {
	entries, err := os.ReadDir(r.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.WorkDir, err)
	}

	paths := make([]string, 0, len(entries))

	for _, entry := range entries {
		if !entry.Type().IsRegular() || !accept(entry.Name()) {
			continue
		}

		path := filepath.Join(r.WorkDir, entry.Name())
		if r.IsTouchedThisRun(path) {
			paths = append(paths, path)
		}
	}

	return paths, nil
}
