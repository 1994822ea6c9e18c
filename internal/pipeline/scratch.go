package pipeline

import (
	"os"
	"path/filepath"

	"driftcast/internal/pkg/logger"
)

// scratchDir tracks every file the pipeline writes under a job-scoped
// directory so cleanup removes exactly what the run created. Removal is best
// effort; a leftover file must never turn a finished job into a failure.
type scratchDir struct {
	root  string
	paths []string
}

func newScratch(root string) *scratchDir {
	return &scratchDir{root: root}
}

func (s *scratchDir) mkdir() error {
	return os.MkdirAll(s.root, 0o755)
}

func (s *scratchDir) path(name string) string {
	return filepath.Join(s.root, name)
}

func (s *scratchDir) record(p string) {
	s.paths = append(s.paths, p)
}

func (s *scratchDir) cleanup(log *logger.Logger) {
	for _, p := range s.paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove scratch file", "path", p, "error", err.Error())
		}
	}
	// The directory may hold files from a concurrent or crashed run; leave it
	// in place when not empty.
	if err := os.Remove(s.root); err != nil && !os.IsNotExist(err) {
		log.Debug("scratch directory not removed", "path", s.root, "error", err.Error())
	}
}
