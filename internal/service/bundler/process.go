package bundler

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/webstart-packager/internal/logger"
)

// Actor identifies who runs the build.
type Actor struct {
	Hostname string
	Username string
}

// String returns user@host.
func (a Actor) String() string {
	return a.Username + "@" + a.Hostname
}

// DetectActor gathers host and user names for the build log.
func DetectActor() (Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return Actor{}, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return Actor{}, fmt.Errorf("current user: %w", err)
	}

	return Actor{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}

// concurrentRuns returns the process IDs of other processes running the
// named executable.
func concurrentRuns(executable string) ([]int, error) {
	processList, err := ps.Processes()
	if err != nil {
		return nil, err
	}

	thisProcessID := os.Getpid()
	pids := make([]int, 0)

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if !strings.EqualFold(process.Executable(), executable) {
			continue
		}

		pids = append(pids, process.Pid())
	}

	return pids, nil
}

// warnConcurrentRuns logs a warning when another packager process is
// running. The working directory is not locked, so two runs against the
// same directory would race.
func warnConcurrentRuns(ctx context.Context) {
	executable, err := os.Executable()
	if err != nil {
		return
	}

	pids, err := concurrentRuns(filepath.Base(executable))
	if err != nil {
		logger.DebugKV(ctx, "Unable to list processes", "error", err)
		return
	}

	if len(pids) > 0 {
		logger.WarnKV(ctx, "Another packager process is running; runs sharing a working directory are not safe",
			"pids", pids)
	}
}
