package detect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Capitan-Parrot/camera-sentry/internal/models"
)

func testFrame() models.Frame {
	return models.Frame{Bytes: []byte("jpeg-bytes"), Time: time.Unix(1000, 0)}
}

func TestDetectFiltersByConfidenceAndClass(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/predict", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("file")
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"class":"person","score":0.9,"box":[10,20,110,220]},
			{"class":"dog","score":0.99,"box":[0,0,5,5]},
			{"class":"car","score":0.5,"box":[1,1,2,2]}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0.7, []string{"person", "car"}, time.Second, 2)

	detections, err := c.Detect(context.Background(), testFrame(), "cam1")
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, "person", detections[0].Class)
	assert.Equal(t, 0.9, detections[0].Score)
}

func TestDetectEmptyResultIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0.7, []string{"person"}, time.Second, 1)

	detections, err := c.Detect(context.Background(), testFrame(), "cam1")
	require.NoError(t, err)
	assert.Empty(t, detections)
}

func TestDetectServiceErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0.7, []string{"person"}, time.Second, 1)

	_, err := c.Detect(context.Background(), testFrame(), "cam1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDetectConnectionFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing listening anymore

	c := NewClient(srv.URL, 0.7, []string{"person"}, time.Second, 1)

	_, err := c.Detect(context.Background(), testFrame(), "cam1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDetectCancelledContext(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", 0.7, []string{"person"}, time.Second, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Detect(ctx, testFrame(), "cam1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrUnavailable)
}
