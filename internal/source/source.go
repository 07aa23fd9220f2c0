// Package source abstracts where a feed's frames come from. A Source
// is owned by exactly one stream controller and is never shared.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Capitan-Parrot/camera-sentry/internal/models"
)

// ErrEndOfStream means the source has no more frames and never will.
// Live sources do not return it; replay sources do.
var ErrEndOfStream = errors.New("end of stream")

// Source is a sequential producer of frames for one feed.
//
// Open may be called again after a failure; implementations must
// support reconnecting. Next blocks until a frame is available, the
// stream fails, or ctx is cancelled.
type Source interface {
	Open(ctx context.Context) error
	Next(ctx context.Context) (models.Frame, error)
	Close() error
}

// New dispatches on the feed URL scheme. An unsupported descriptor is
// a configuration error fatal to that feed only.
func New(rawURL string) (Source, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse source url %q: %w", rawURL, err)
	}

	switch {
	case u.Scheme == "http" || u.Scheme == "https":
		return NewMJPEG(rawURL), nil
	case u.Scheme == "file":
		return NewDir(u.Path), nil
	case u.Scheme == "" && strings.TrimSpace(rawURL) != "":
		return NewDir(rawURL), nil
	default:
		return nil, fmt.Errorf("unsupported source scheme %q", u.Scheme)
	}
}
