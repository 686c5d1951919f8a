package bundler

import (
	"os"
	"time"
)

// EpochMargin is subtracted from the run start. Some filesystems round
// modification times to whole seconds, and a file copied right after the
// start must still compare as newer than the epoch.
const EpochMargin = time.Second

// RunEpoch returns the reference time for a run started at start.
func RunEpoch(start time.Time) time.Time {
	return start.Add(-EpochMargin)
}

// IsStale reports whether destination must be (re)written from source:
// destination is missing or strictly older than source. The source must
// exist; when it does not, IsStale answers true so the copy itself fails.
func IsStale(source, destination string) bool {
	dstInfo, err := os.Stat(destination)
	if err != nil {
		return true
	}

	srcInfo, err := os.Stat(source)
	if err != nil {
		return true
	}

	return dstInfo.ModTime().Before(srcInfo.ModTime())
}

// touchedSince reports whether path was modified strictly after epoch.
func touchedSince(path string, epoch time.Time) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return info.ModTime().After(epoch)
}
