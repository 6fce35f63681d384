package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fit2tp/internal/worker"

	"go.uber.org/zap"
)

// ErrListDirectory is returned when the source directory cannot be listed.
var ErrListDirectory = errors.New("list FIT directory")

// FileLister enumerates candidate files in a single directory
type FileLister struct {
	extension string
	logger    *zap.Logger
}

// ListTasks reads dir once, non-recursively, and returns a task for every
// regular file whose extension matches. Other entries are ignored.
func (l *FileLister) ListTasks(dir string) ([]worker.FileTask, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrListDirectory, dir, err)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrListDirectory, dir, err)
	}

	tasks := make([]worker.FileTask, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), l.extension) {
			continue
		}
		if !entry.Type().IsRegular() && entry.Type()&os.ModeSymlink == 0 {
			continue
		}

		tasks = append(tasks, worker.FileTask{
			Path:     filepath.Join(absDir, entry.Name()),
			FileName: entry.Name(),
		})
	}

	l.logger.Info("Finished listing FIT files",
		zap.String("dir", absDir),
		zap.Int("entries", len(entries)),
		zap.Int("candidates", len(tasks)),
	)

	return tasks, nil
}
