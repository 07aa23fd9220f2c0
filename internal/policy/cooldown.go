// Package policy holds the cooldown state machines that rate-limit
// escalations and outbound alerts. One Gate instance belongs to one
// feed and one action kind; gates for different feeds share nothing.
package policy

import (
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/Capitan-Parrot/camera-sentry/internal/models"
)

// Gate grants at most one action per cooldown window. The first call
// always grants. A grant is never rolled back: a failed detection or
// notification downstream still consumes the window.
type Gate struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     time.Time
}

func NewGate(cooldown time.Duration) *Gate {
	return &Gate{cooldown: cooldown}
}

// Try grants iff the cooldown has elapsed since the last grant and
// records now as the new grant time in the same critical section.
func (g *Gate) Try(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.last.IsZero() && now.Sub(g.last) < g.cooldown {
		return false
	}
	g.last = now
	return true
}

// Alert decides whether a set of detections is worth notifying about:
// at least one detection must carry an alert-worthy label, and the
// notification cooldown must have elapsed.
type Alert struct {
	labels map[string]struct{}
	gate   *Gate
}

func NewAlert(labels []string, cooldown time.Duration) *Alert {
	return &Alert{
		labels: lo.SliceToMap(labels, func(l string) (string, struct{}) { return l, struct{}{} }),
		gate:   NewGate(cooldown),
	}
}

func (a *Alert) Try(detections []models.Detection, now time.Time) bool {
	worthy := lo.ContainsBy(detections, func(d models.Detection) bool {
		_, ok := a.labels[d.Class]
		return ok
	})
	if !worthy {
		return false
	}
	return a.gate.Try(now)
}
