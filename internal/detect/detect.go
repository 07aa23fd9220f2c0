// Package detect wraps the external object-detection service behind a
// single bounded-concurrency call.
package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/samber/lo"

	"github.com/Capitan-Parrot/camera-sentry/internal/models"
)

// ErrUnavailable means the detection service itself failed. The cycle
// is abandoned; the feed keeps running.
var ErrUnavailable = errors.New("detector unavailable")

type Client struct {
	url        string
	httpClient *http.Client
	sem        chan struct{}

	confThreshold float64
	classes       map[string]struct{}
}

// NewClient builds a detector adapter. maxConcurrent bounds in-flight
// calls across all feeds; the model behind the endpoint is a shared
// resource, not a per-feed one.
func NewClient(endpoint string, confThreshold float64, classes []string, timeout time.Duration, maxConcurrent int) *Client {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Client{
		url:           endpoint,
		httpClient:    &http.Client{Timeout: timeout},
		sem:           make(chan struct{}, maxConcurrent),
		confThreshold: confThreshold,
		classes:       lo.SliceToMap(classes, func(c string) (string, struct{}) { return c, struct{}{} }),
	}
}

// Detect отправляет кадр JPEG байтами на /predict и фильтрует ответ
// по порогу уверенности и списку разрешённых классов.
func (c *Client) Detect(ctx context.Context, frame models.Frame, feed string) ([]models.Detection, error) {
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")

	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(frame.Bytes); err != nil {
		return nil, fmt.Errorf("write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/predict", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("http request: %v: %w", err, ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bad status %s (%s): %w", resp.Status, bodyBytes, ErrUnavailable)
	}

	var raw []models.Detection
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %v: %w", err, ErrUnavailable)
	}

	filtered := lo.Filter(raw, func(d models.Detection, _ int) bool {
		if d.Score < c.confThreshold {
			return false
		}
		_, ok := c.classes[d.Class]
		return ok
	})
	return filtered, nil
}
