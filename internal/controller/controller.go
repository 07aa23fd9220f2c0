// Package controller owns the per-feed pipeline: pull a frame, score
// motion, escalate to detection under cooldown, persist artifacts and
// request notification. One controller goroutine is the only writer of
// its feed's state; nothing here is shared across feeds.
package controller

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Capitan-Parrot/camera-sentry/internal/detect"
	"github.com/Capitan-Parrot/camera-sentry/internal/models"
	"github.com/Capitan-Parrot/camera-sentry/internal/motion"
	"github.com/Capitan-Parrot/camera-sentry/internal/notify"
	"github.com/Capitan-Parrot/camera-sentry/internal/policy"
	"github.com/Capitan-Parrot/camera-sentry/internal/source"
	"github.com/Capitan-Parrot/camera-sentry/internal/storage"
)

// Detector is the boundary to the external object-detection model.
type Detector interface {
	Detect(ctx context.Context, frame models.Frame, feed string) ([]models.Detection, error)
}

// Recorder persists events and feed status. Optional; a nil Recorder
// disables recording without touching the pipeline.
type Recorder interface {
	InsertEvent(ctx context.Context, ev models.Event) error
	UpsertFeedStatus(ctx context.Context, feed, status string) error
}

// Config is the per-feed slice of the immutable process configuration.
type Config struct {
	Feed string

	Motion            motion.Detector
	DetectionCooldown time.Duration
	AlertLabels       []string
	AlertCooldown     time.Duration

	ReconnectDelay time.Duration
	FrameInterval  time.Duration
}

// heartbeatInterval paces the feeds-table updated_at refresh while
// streaming; it must stay well under the watchdog's staleness window.
const heartbeatInterval = 15 * time.Second

type Controller struct {
	cfg      Config
	src      source.Source
	detector Detector
	store    storage.Store
	notifier notify.Notifier
	recorder Recorder
	log      *zap.Logger

	heartbeatEvery time.Duration

	escalate *policy.Gate
	alert    *policy.Alert

	// prev is the baseline intensity plane. It survives reconnects so
	// the first frame after a stream drop compares against the last
	// good frame instead of re-seeding.
	prev *image.Gray

	now func() time.Time
}

func New(cfg Config, src source.Source, detector Detector, store storage.Store, notifier notify.Notifier, recorder Recorder, log *zap.Logger) *Controller {
	return &Controller{
		cfg:      cfg,
		src:      src,
		detector: detector,
		store:    store,
		notifier: notifier,
		recorder: recorder,
		log:      log.With(zap.String("feed", cfg.Feed)),
		escalate: policy.NewGate(cfg.DetectionCooldown),
		alert:    policy.NewAlert(cfg.AlertLabels, cfg.AlertCooldown),

		heartbeatEvery: heartbeatInterval,
		now:            time.Now,
	}
}

func (c *Controller) Name() string { return c.cfg.Feed }

// Run drives the feed until ctx is cancelled or the source reports a
// clean end of stream. Connect and read failures are retried forever;
// Run only returns an error for conditions fatal to this feed.
func (c *Controller) Run(ctx context.Context) error {
	defer c.src.Close()
	defer c.setStatus(models.StatusStopped)

	for {
		if ctx.Err() != nil {
			return nil
		}

		c.setStatus(models.StatusConnecting)
		if err := c.src.Open(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn("connect failed, retrying",
				zap.Error(err), zap.Duration("delay", c.cfg.ReconnectDelay))
			if !sleepCtx(ctx, c.cfg.ReconnectDelay) {
				return nil
			}
			continue
		}

		c.log.Info("stream connected")
		c.setStatus(models.StatusStreaming)

		err := c.stream(ctx)
		c.src.Close()

		switch {
		case ctx.Err() != nil:
			c.log.Info("stream stopped")
			return nil
		case errors.Is(err, source.ErrEndOfStream):
			c.log.Info("end of stream")
			return nil
		default:
			c.setStatus(models.StatusReconnecting)
			c.log.Warn("stream lost, reconnecting",
				zap.Error(err), zap.Duration("delay", c.cfg.ReconnectDelay))
			if !sleepCtx(ctx, c.cfg.ReconnectDelay) {
				return nil
			}
		}
	}
}

// stream pulls and processes frames until the source fails or ctx is
// cancelled. Processing within the feed is strictly sequential: the
// next pull starts only after this frame's cycle is fully done.
func (c *Controller) stream(ctx context.Context) error {
	heartbeat := time.NewTicker(c.heartbeatEvery)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-heartbeat.C:
			// Keep the feeds-table heartbeat fresh so the watchdog
			// does not flag a feed that is happily pulling frames.
			c.setStatus(models.StatusStreaming)
		default:
		}

		frame, err := c.src.Next(ctx)
		if err != nil {
			return err
		}

		c.process(ctx, frame)

		if !sleepCtx(ctx, c.cfg.FrameInterval) {
			return ctx.Err()
		}
	}
}

func (c *Controller) process(ctx context.Context, frame models.Frame) {
	gray, err := motion.DecodeGray(frame.Bytes)
	if err != nil {
		c.log.Warn("undecodable frame, skipping cycle", zap.Error(err))
		return
	}

	score := c.cfg.Motion.Score(c.prev, gray)
	c.prev = gray

	if !score.Exceeds {
		return
	}
	c.log.Info("motion detected", zap.Int("area", score.Area))

	// Captures are cheap; save one for every motion hit even when the
	// escalation below is still cooling down. That keeps an audit
	// trail of everything that moved.
	capturePath, err := c.store.SaveCapture(ctx, c.cfg.Feed, frame)
	if err != nil {
		c.log.Error("failed to save capture", zap.Error(err))
	} else {
		c.log.Debug("capture saved", zap.String("path", capturePath))
	}

	now := c.now()
	if !c.escalate.Try(now) {
		c.log.Debug("escalation denied, cooldown active")
		return
	}
	c.log.Info("escalation granted, running detection")

	detections, err := c.detector.Detect(ctx, frame, c.cfg.Feed)
	if err != nil {
		// The grant above is deliberately not rolled back; a flapping
		// detector must not turn into a detection storm.
		if errors.Is(err, detect.ErrUnavailable) {
			c.log.Warn("detector unavailable, skipping cycle", zap.Error(err))
		} else if ctx.Err() == nil {
			c.log.Error("detection failed, skipping cycle", zap.Error(err))
		}
		return
	}

	ev := models.Event{
		ID:          uuid.NewString(),
		Feed:        c.cfg.Feed,
		Time:        now,
		MotionArea:  score.Area,
		Detections:  detections,
		CapturePath: capturePath,
	}

	if len(detections) > 0 {
		labels := lo.Uniq(lo.Map(detections, func(d models.Detection, _ int) string {
			return d.Class
		}))
		c.log.Info("objects detected", zap.Strings("labels", labels))

		detectionPath, err := c.store.SaveDetection(ctx, c.cfg.Feed, frame, detections)
		if err != nil {
			c.log.Error("failed to save detection artifact", zap.Error(err))
		} else {
			ev.DetectionPath = detectionPath
		}

		if c.alert.Try(detections, now) {
			ev.Notified = true
			c.log.Info("notification granted", zap.Strings("labels", labels))
			if err := c.notifier.Notify(ctx, ev); err != nil {
				// The notification cooldown stays consumed on failure.
				c.log.Error("notification failed", zap.Error(err))
			}
		} else {
			c.log.Debug("notification denied")
		}
	} else {
		c.log.Info("no qualifying detections")
	}

	c.record(ctx, ev)
}

func (c *Controller) record(ctx context.Context, ev models.Event) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.InsertEvent(ctx, ev); err != nil {
		c.log.Warn("failed to record event", zap.Error(err))
	}
}

func (c *Controller) setStatus(status string) {
	if c.recorder == nil {
		return
	}
	// Status writes use a detached context: the Stopped transition
	// happens after the run context is already cancelled.
	if err := c.recorder.UpsertFeedStatus(context.Background(), c.cfg.Feed, status); err != nil {
		c.log.Debug("failed to update feed status", zap.Error(err))
	}
}

// sleepCtx waits d, returning false if ctx was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
