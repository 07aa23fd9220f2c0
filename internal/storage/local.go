package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Capitan-Parrot/camera-sentry/internal/models"
)

// Local writes artifacts under <dir>/captures/<feed>/ and
// <dir>/detections/<feed>/.
type Local struct {
	dir string
}

func NewLocal(dir string) (*Local, error) {
	for _, sub := range []string{"captures", "detections"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", sub, err)
		}
	}
	return &Local{dir: dir}, nil
}

func (l *Local) SaveCapture(_ context.Context, feed string, frame models.Frame) (string, error) {
	path := filepath.Join(l.dir, "captures", feed, stamp(frame.Time)+".jpg")
	if err := writeFile(path, frame.Bytes); err != nil {
		return "", fmt.Errorf("save capture: %w", err)
	}
	return path, nil
}

func (l *Local) SaveDetection(_ context.Context, feed string, frame models.Frame, detections []models.Detection) (string, error) {
	annotated, err := Annotate(frame.Bytes, detections)
	if err != nil {
		// An undecodable frame should not lose the detection record;
		// fall back to the raw bytes.
		annotated = frame.Bytes
	}

	base := filepath.Join(l.dir, "detections", feed, stamp(frame.Time))
	if err := writeFile(base+".jpg", annotated); err != nil {
		return "", fmt.Errorf("save detection image: %w", err)
	}

	meta, err := json.Marshal(detections)
	if err != nil {
		return "", fmt.Errorf("marshal detections: %w", err)
	}
	if err := writeFile(base+".json", meta); err != nil {
		return "", fmt.Errorf("save detection metadata: %w", err)
	}
	return base + ".jpg", nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
