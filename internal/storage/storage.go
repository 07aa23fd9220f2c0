// Package storage persists capture and detection artifacts. Paths are
// organized by feed with a sortable timestamp component so cycles
// never collide and chronological listing is trivial.
package storage

import (
	"context"
	"time"

	"github.com/Capitan-Parrot/camera-sentry/internal/models"
)

// Store is the artifact sink for one deployment, shared by all feeds.
// SaveCapture keeps the raw frame that tripped the motion gate.
// SaveDetection keeps the annotated frame plus the detections JSON.
// Both return the path (or object key) of the image artifact.
type Store interface {
	SaveCapture(ctx context.Context, feed string, frame models.Frame) (string, error)
	SaveDetection(ctx context.Context, feed string, frame models.Frame, detections []models.Detection) (string, error)
}

// Timestamps are formatted down to microseconds: consecutive cycles on
// the same feed must never map to the same name.
const tsLayout = "20060102_150405.000000"

func stamp(t time.Time) string {
	return t.UTC().Format(tsLayout)
}
