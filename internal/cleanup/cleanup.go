// Package cleanup removes stale region files left behind by crashed
// processes, so an operator (or a CLI's -cleanup flag) can reclaim
// /dev/shm space without one by one figuring out which files are
// dmxp's.
package cleanup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultDir is where region files live.
const DefaultDir = "/dev/shm"

// prefix identifies a dmxp region file by its basename.
const prefix = "dmxp"

// Sweep removes every file in dir whose basename starts with "dmxp".
// It returns the names removed. Errors removing an individual file
// are collected and returned together rather than aborting the sweep.
func Sweep(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cleanup: read %s: %w", dir, err)
	}

	var removed []string
	var errs []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		removed = append(removed, e.Name())
	}

	if len(errs) > 0 {
		return removed, fmt.Errorf("cleanup: %d file(s) failed to remove: %s", len(errs), strings.Join(errs, "; "))
	}
	return removed, nil
}
