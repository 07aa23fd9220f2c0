package notify

import (
	"context"
	"fmt"

	"github.com/Capitan-Parrot/camera-sentry/internal/kafka"
	"github.com/Capitan-Parrot/camera-sentry/internal/models"
)

// Kafka publishes events to the alerts topic so downstream consumers
// (dashboards, recorders) see the same stream the email alerts come
// from.
type Kafka struct {
	producer *kafka.Producer
}

func NewKafka(producer *kafka.Producer) *Kafka {
	return &Kafka{producer: producer}
}

func (k *Kafka) Notify(_ context.Context, ev models.Event) error {
	if err := k.producer.PublishEvent(ev); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
