// README: Invoice generation trigger invoked after ride completion.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"medtransit/internal/types"
)

// Exchange is the topic exchange invoice requests publish to.
const Exchange = "billing.events"

const routingKey = "billing.invoice.requested"

type Invoice struct {
	RideID         int64       `json:"ride_id"`
	CustomerID     *int64      `json:"customer_id,omitempty"`
	PassengerName  string      `json:"passenger_name"`
	PassengerPhone string      `json:"passenger_phone"`
	Amount         types.Money `json:"amount"`
	CompletedAt    time.Time   `json:"completed_at"`
}

// Generator hands a completed ride to the invoicing collaborator and returns
// a reference. A failure leaves the ride completed with no invoice; retry is
// an operator action, not this core's concern.
type Generator interface {
	OnCompleted(ctx context.Context, inv Invoice) (string, error)
}

type AMQPGenerator struct {
	ch       *amqp.Channel
	exchange string
}

func NewAMQPGenerator(ch *amqp.Channel) *AMQPGenerator {
	return &AMQPGenerator{ch: ch, exchange: Exchange}
}

func (g *AMQPGenerator) OnCompleted(ctx context.Context, inv Invoice) (string, error) {
	ref := fmt.Sprintf("inv_%d_%d", inv.RideID, time.Now().Unix())
	payload := struct {
		Ref string `json:"ref"`
		Invoice
	}{Ref: ref, Invoice: inv}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	err = g.ch.PublishWithContext(ctx, g.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return "", err
	}
	return ref, nil
}

// LogGenerator stands in for the invoicing collaborator in development.
type LogGenerator struct {
	log *zap.Logger
}

func NewLogGenerator(log *zap.Logger) *LogGenerator {
	return &LogGenerator{log: log}
}

func (g *LogGenerator) OnCompleted(_ context.Context, inv Invoice) (string, error) {
	ref := fmt.Sprintf("inv_%d_%d", inv.RideID, time.Now().Unix())
	g.log.Info("invoice requested",
		zap.String("ref", ref),
		zap.Int64("ride_id", inv.RideID),
		zap.String("amount", inv.Amount.String()),
	)
	return ref, nil
}
