// Package supervisor runs one stream controller per feed and isolates
// them from each other: one feed crashing, stalling or being stopped
// never touches its siblings.
package supervisor

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Capitan-Parrot/camera-sentry/internal/kafka"
	"github.com/Capitan-Parrot/camera-sentry/internal/models"
)

// Runner is one feed's pipeline. Run must return promptly once its
// context is cancelled and must only return an error for conditions
// fatal to that feed.
type Runner interface {
	Name() string
	Run(ctx context.Context) error
}

const defaultGrace = 10 * time.Second

type Supervisor struct {
	runners []Runner
	log     *zap.Logger
	grace   time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func New(runners []Runner, log *zap.Logger) *Supervisor {
	return &Supervisor{
		runners: runners,
		log:     log,
		grace:   defaultGrace,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Start launches every runner on its own goroutine. Panics inside a
// runner are contained: the offending feed halts, the rest keep going.
func (s *Supervisor) Start(ctx context.Context) {
	for _, r := range s.runners {
		childCtx, cancel := context.WithCancel(ctx)

		s.mu.Lock()
		s.cancels[r.Name()] = cancel
		s.mu.Unlock()

		s.wg.Add(1)
		go func(r Runner, ctx context.Context) {
			defer s.wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					s.log.Error("feed controller panicked",
						zap.String("feed", r.Name()), zap.Any("panic", rec))
				}
				s.mu.Lock()
				delete(s.cancels, r.Name())
				s.mu.Unlock()
			}()

			s.log.Info("starting feed controller", zap.String("feed", r.Name()))
			if err := r.Run(ctx); err != nil {
				s.log.Error("feed controller halted",
					zap.String("feed", r.Name()), zap.Error(err))
				return
			}
			s.log.Info("feed controller finished", zap.String("feed", r.Name()))
		}(r, childCtx)
	}
}

// StopFeed cancels a single feed's controller. Returns false if no
// such feed is running.
func (s *Supervisor) StopFeed(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.cancels[name]; ok {
		cancel()
		s.log.Info("feed stop requested", zap.String("feed", name))
		return true
	}
	return false
}

// Stop cancels every controller and waits up to the grace period for
// them to observe the cancellation and return.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	for name, cancel := range s.cancels {
		s.log.Info("stopping feed controller", zap.String("feed", name))
		cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("all feed controllers stopped")
	case <-time.After(s.grace):
		s.log.Warn("grace period elapsed with controllers still running")
	}
}

// ListenCommands consumes the command topic and applies stop commands
// to individual feeds. Malformed or unknown commands are logged and
// acknowledged so they are not redelivered forever.
func (s *Supervisor) ListenCommands(ctx context.Context, consumer *kafka.Consumer) {
	s.log.Info("listening for feed commands")
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-consumer.Messages():
			if !ok {
				return
			}

			var cmd models.FeedCommand
			if err := json.Unmarshal(msg.Value, &cmd); err != nil {
				s.log.Warn("invalid command message", zap.Error(err))
				msg.Session.MarkMessage(msg.Message, "")
				continue
			}

			switch cmd.Action {
			case models.ActionStop:
				if !s.StopFeed(cmd.Feed) {
					s.log.Warn("stop command for unknown feed", zap.String("feed", cmd.Feed))
				}
			case models.ActionStopAll:
				s.mu.Lock()
				for _, cancel := range s.cancels {
					cancel()
				}
				s.mu.Unlock()
				s.log.Info("stop_all command applied")
			default:
				s.log.Warn("unknown command action", zap.String("action", cmd.Action))
			}

			msg.Session.MarkMessage(msg.Message, "")
		}
	}
}
