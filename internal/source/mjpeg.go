package source

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/Capitan-Parrot/camera-sentry/internal/models"
)

// MJPEG reads a multipart/x-mixed-replace JPEG stream, the plain-HTTP
// substream most IP cameras expose alongside RTSP.
type MJPEG struct {
	url string

	cancel context.CancelFunc
	body   io.ReadCloser
	parts  *multipart.Reader
}

func NewMJPEG(url string) *MJPEG {
	return &MJPEG{url: url}
}

func (m *MJPEG) Open(ctx context.Context) error {
	// The stream request outlives Open; binding it to its own cancel
	// func lets Close (or the controller's ctx) tear it down mid-read.
	reqCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, m.url, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("create stream request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("connect stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("connect stream: bad status %s", resp.Status)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" || params["boundary"] == "" {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("unexpected stream content type %q", resp.Header.Get("Content-Type"))
	}

	m.cancel = cancel
	m.body = resp.Body
	m.parts = multipart.NewReader(resp.Body, params["boundary"])
	return nil
}

func (m *MJPEG) Next(ctx context.Context) (models.Frame, error) {
	if m.parts == nil {
		return models.Frame{}, fmt.Errorf("stream not open")
	}

	part, err := m.parts.NextPart()
	if err != nil {
		if ctx.Err() != nil {
			return models.Frame{}, ctx.Err()
		}
		// EOF here means the camera dropped the connection, not a
		// clean end: the controller should reconnect.
		return models.Frame{}, fmt.Errorf("read frame part: %w", err)
	}

	data, err := io.ReadAll(part)
	part.Close()
	if err != nil {
		if ctx.Err() != nil {
			return models.Frame{}, ctx.Err()
		}
		return models.Frame{}, fmt.Errorf("read frame body: %w", err)
	}

	return models.Frame{Bytes: data, Time: time.Now().UTC()}, nil
}

func (m *MJPEG) Close() error {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.body != nil {
		m.body.Close()
		m.body = nil
	}
	m.parts = nil
	return nil
}
