package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDispatchesOnScheme(t *testing.T) {
	src, err := New("http://cam.local/stream")
	require.NoError(t, err)
	assert.IsType(t, &MJPEG{}, src)

	src, err = New("file:///var/frames")
	require.NoError(t, err)
	assert.IsType(t, &Dir{}, src)

	src, err = New("testdata/frames")
	require.NoError(t, err)
	assert.IsType(t, &Dir{}, src)

	_, err = New("rtsp://cam.local/stream")
	assert.Error(t, err)
}

func TestDirReplaysFramesInOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "002.jpg"), []byte("second"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001.jpg"), []byte("first"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	src := NewDir(dir)
	ctx := context.Background()
	require.NoError(t, src.Open(ctx))

	f1, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), f1.Bytes)

	f2, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), f2.Bytes)

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestDirReopenResumes(t *testing.T) {
	dir := t.TempDir()
	for i := 1; i <= 3; i++ {
		name := filepath.Join(dir, fmt.Sprintf("%03d.jpg", i))
		require.NoError(t, os.WriteFile(name, []byte{byte(i)}, 0o644))
	}

	src := NewDir(dir)
	ctx := context.Background()
	require.NoError(t, src.Open(ctx))

	_, err := src.Next(ctx)
	require.NoError(t, err)

	// Simulate the controller's reconnect path: Close then Open again.
	require.NoError(t, src.Close())
	require.NoError(t, src.Open(ctx))

	f, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, f.Bytes)
}

func TestDirEmpty(t *testing.T) {
	src := NewDir(t.TempDir())
	assert.Error(t, src.Open(context.Background()))
}

func mjpegHandler(frames [][]byte) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", `multipart/x-mixed-replace; boundary=frame`)
		w.WriteHeader(http.StatusOK)
		for _, f := range frames {
			fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(f))
			w.Write(f)
			fmt.Fprint(w, "\r\n")
		}
		fmt.Fprint(w, "--frame--\r\n")
	}
}

func TestMJPEGReadsFrames(t *testing.T) {
	srv := httptest.NewServer(mjpegHandler([][]byte{[]byte("frame-one"), []byte("frame-two")}))
	defer srv.Close()

	src := NewMJPEG(srv.URL)
	ctx := context.Background()
	require.NoError(t, src.Open(ctx))
	defer src.Close()

	f1, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("frame-one"), f1.Bytes)
	assert.False(t, f1.Time.IsZero())

	f2, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("frame-two"), f2.Bytes)

	// Server closed the stream: a read error, not a clean end.
	_, err = src.Next(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEndOfStream)
}

func TestMJPEGRejectsWrongContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>not a camera</html>"))
	}))
	defer srv.Close()

	src := NewMJPEG(srv.URL)
	assert.Error(t, src.Open(context.Background()))
}

func TestMJPEGCancelUnblocksNext(t *testing.T) {
	// A camera that sends headers and then stalls forever. Cancelling
	// the context must unblock the pending read promptly.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", `multipart/x-mixed-replace; boundary=frame`)
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	src := NewMJPEG(srv.URL)
	require.NoError(t, src.Open(ctx))
	defer src.Close()

	errCh := make(chan error, 1)
	go func() {
		_, err := src.Next(ctx)
		errCh <- err
	}()

	cancel()
	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after cancellation")
	}
}
