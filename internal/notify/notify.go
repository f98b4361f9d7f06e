// README: Lifecycle event sink; AMQP publisher with a zap fallback.
package notify

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Exchange is the topic exchange ride lifecycle events publish to.
const Exchange = "ride.events"

type Kind string

const (
	KindRideRequested     Kind = "ride.requested"
	KindRideAssigned      Kind = "ride.assigned"
	KindRideStatusChanged Kind = "ride.status_changed"
	KindRideCompleted     Kind = "ride.completed"
)

type Event struct {
	Kind       Kind      `json:"kind"`
	RideID     int64     `json:"ride_id"`
	Status     string    `json:"status"`
	Recipient  string    `json:"recipient"`
	DriverID   *int64    `json:"driver_id,omitempty"`
	Note       string    `json:"note,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Sink delivers lifecycle events to downstream consumers (SMS/email
// senders). Delivery is best-effort; callers log failures and move on.
type Sink interface {
	Notify(ctx context.Context, e Event) error
}

// AMQPSink publishes events as persistent JSON messages, routed by kind.
type AMQPSink struct {
	ch       *amqp.Channel
	exchange string
}

func NewAMQPSink(ch *amqp.Channel) *AMQPSink {
	return &AMQPSink{ch: ch, exchange: Exchange}
}

func (s *AMQPSink) Notify(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.ch.PublishWithContext(ctx, s.exchange, string(e.Kind), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// LogSink records events to the log only. Used in development and tests.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Notify(_ context.Context, e Event) error {
	s.log.Info("ride event",
		zap.String("kind", string(e.Kind)),
		zap.Int64("ride_id", e.RideID),
		zap.String("status", e.Status),
	)
	return nil
}
