package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Capitan-Parrot/camera-sentry/internal/models"
)

// Dir replays the JPEG files of a directory in lexical order. Used for
// simulation and tests; frame sets extracted from recordings are laid
// out the same way the capture sinks write them.
type Dir struct {
	path  string
	files []string
	idx   int
}

func NewDir(path string) *Dir {
	return &Dir{path: path}
}

func (d *Dir) Open(_ context.Context) error {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return fmt.Errorf("open frame dir: %w", err)
	}

	d.files = d.files[:0]
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".jpg" || ext == ".jpeg" || ext == ".png" {
			d.files = append(d.files, filepath.Join(d.path, e.Name()))
		}
	}
	sort.Strings(d.files)

	if len(d.files) == 0 {
		return fmt.Errorf("open frame dir: no frames in %s", d.path)
	}
	// Reopening after a mid-replay failure resumes where we left off.
	if d.idx > len(d.files) {
		d.idx = len(d.files)
	}
	return nil
}

func (d *Dir) Next(ctx context.Context) (models.Frame, error) {
	if err := ctx.Err(); err != nil {
		return models.Frame{}, err
	}
	if d.idx >= len(d.files) {
		return models.Frame{}, ErrEndOfStream
	}

	data, err := os.ReadFile(d.files[d.idx])
	if err != nil {
		return models.Frame{}, fmt.Errorf("read frame file: %w", err)
	}
	d.idx++

	return models.Frame{Bytes: data, Time: time.Now().UTC()}, nil
}

func (d *Dir) Close() error { return nil }
