package bundler

import (
	"context"
	"fmt"

	"github.com/oshokin/webstart-packager/internal/domain/artifact"
	"github.com/oshokin/webstart-packager/internal/logger"
	"github.com/oshokin/webstart-packager/internal/tool/jarfile"
)

// Selector picks the configured artifacts out of the resolved set, stages
// them and finds the one holding the main class.
type Selector struct {
	specs     []artifact.Spec
	mainClass string
	copier    *Copier
}

// NewSelector creates a Selector for the given coordinates and main class.
func NewSelector(dependencies []string, mainClass string, copier *Copier) *Selector {
	specs := make([]artifact.Spec, 0, len(dependencies))
	for _, dep := range dependencies {
		specs = append(specs, artifact.Spec(dep))
	}

	return &Selector{
		specs:     specs,
		mainClass: mainClass,
		copier:    copier,
	}
}

// Select walks the resolved artifacts once, in order. Artifacts in the
// provided or test scope never match. The first artifact matching a spec
// wins; later matches for the same spec are ignored. Matching jars are
// staged and probed for the main class.
func (s *Selector) Select(ctx context.Context, run *RunContext, artifacts []*artifact.Resolved) error {
	matched := make([]bool, len(s.specs))
	entryName := artifact.ClassEntryName(s.mainClass)

	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return err
		}

		idx, duplicate := s.match(a, matched)

		switch {
		case idx < 0 && duplicate:
			logger.DebugKV(ctx, "Dependency already matched, ignoring artifact", "artifact", a.String())
			continue
		case idx < 0:
			continue
		}

		matched[idx] = true

		if !a.IsJar() {
			logger.DebugKV(ctx, "Skipping artifact: only jar payloads are packaged",
				"artifact", a.String(),
				"type", a.Type)

			continue
		}

		if _, err := s.copier.StageArtifact(ctx, run, a); err != nil {
			return err
		}

		if err := s.probeMainClass(ctx, run, a, entryName); err != nil {
			return err
		}
	}

	for i, ok := range matched {
		if !ok {
			return fmt.Errorf("%w: %s is not in the resolved dependency list", ErrUnresolvedDependency, s.specs[i])
		}
	}

	if run.MainClassHolder == nil {
		return fmt.Errorf("%w: %s", ErrMainClassNotFound, s.mainClass)
	}

	return nil
}

// match returns the index of the first unmatched spec naming a. The second
// result reports that a only matches specs that were already taken.
func (s *Selector) match(a *artifact.Resolved, matched []bool) (int, bool) {
	if !a.IsPackaged() {
		return -1, false
	}

	duplicate := false

	for i, spec := range s.specs {
		if !spec.Matches(a) {
			continue
		}

		if !matched[i] {
			return i, false
		}

		duplicate = true
	}

	return -1, duplicate
}

// probeMainClass looks for the compiled main class inside the artifact's own
// jar only.
func (s *Selector) probeMainClass(ctx context.Context, run *RunContext, a *artifact.Resolved, entryName string) error {
	found, err := jarfile.Contains(a.Path, entryName)
	if err != nil {
		return fmt.Errorf("probe %s for main class: %w", a, err)
	}

	switch {
	case !found:
		logger.DebugKV(ctx, "Artifact does not contain the main class", "artifact", a.String())
	case run.MainClassHolder == nil:
		run.MainClassHolder = a

		logger.DebugKV(ctx, "Found main jar", "artifact", a.String(), "main_class", s.mainClass)
	default:
		logger.WarnKV(ctx, "Artifact also contains the main class, ignored",
			"artifact", a.String(),
			"main_class", s.mainClass,
			"holder", run.MainClassHolder.String())
	}

	return nil
}
