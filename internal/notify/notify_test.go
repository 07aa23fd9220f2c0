package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Capitan-Parrot/camera-sentry/internal/models"
)

type stubNotifier struct {
	err   error
	calls int
}

func (s *stubNotifier) Notify(context.Context, models.Event) error {
	s.calls++
	return s.err
}

func TestMultiDeliversToAllNotifiers(t *testing.T) {
	a := &stubNotifier{}
	b := &stubNotifier{}

	m := NewMulti(a, b)
	require.NoError(t, m.Notify(context.Background(), models.Event{Feed: "cam1"}))

	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestMultiFailureDoesNotBlockOthersAndSurfaces(t *testing.T) {
	failing := &stubNotifier{err: errors.New("smtp down")}
	healthy := &stubNotifier{}

	m := NewMulti(failing, healthy)
	err := m.Notify(context.Background(), models.Event{Feed: "cam1"})

	require.Error(t, err)
	assert.ErrorContains(t, err, "smtp down")
	assert.Equal(t, 1, healthy.calls, "later notifiers still run")
}

func TestMultiEmpty(t *testing.T) {
	assert.NoError(t, NewMulti().Notify(context.Background(), models.Event{}))
}
