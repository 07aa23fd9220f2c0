// Package notify delivers confirmed detection events to the outside
// world. The pipeline only decides whether and with what payload to
// notify; every configured notifier receives the same Event.
package notify

import (
	"context"
	"errors"

	"github.com/Capitan-Parrot/camera-sentry/internal/models"
)

type Notifier interface {
	Notify(ctx context.Context, ev models.Event) error
}

// Multi fans one event out to several notifiers. A failing notifier
// does not block the others; every failure is joined into the returned
// error so the caller sees it, and the cooldown that granted this
// notification stays consumed either way.
type Multi struct {
	notifiers []Notifier
}

func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) Notify(ctx context.Context, ev models.Event) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
