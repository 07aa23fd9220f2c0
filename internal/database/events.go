package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Capitan-Parrot/camera-sentry/internal/models"
)

// InsertEvent records one escalation cycle. Events are append-only.
func (d *Database) InsertEvent(ctx context.Context, ev models.Event) error {
	detections, err := json.Marshal(ev.Detections)
	if err != nil {
		return err
	}

	_, err = d.DB.ExecContext(ctx, `
		INSERT INTO events (id, feed, time, motion_area, detections, capture_path, detection_path, notified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID,
		ev.Feed,
		ev.Time,
		ev.MotionArea,
		detections,
		ev.CapturePath,
		ev.DetectionPath,
		ev.Notified,
	)
	return err
}

// UpsertFeedStatus records a feed's latest lifecycle state. Doubles as
// a heartbeat: updated_at moves on every call.
func (d *Database) UpsertFeedStatus(ctx context.Context, feed, status string) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO feeds (name, status, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET status = $2, updated_at = $3`,
		feed, status, time.Now().UTC(),
	)
	return err
}

// FindStaleFeeds returns feeds that claim to be live but have not
// heartbeaten within the interval.
func (d *Database) FindStaleFeeds(ctx context.Context, interval time.Duration) ([]string, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT name FROM feeds
		WHERE status IN ($1, $2) AND updated_at < $3`,
		models.StatusStreaming, models.StatusConnecting, time.Now().UTC().Add(-interval),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
