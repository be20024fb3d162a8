package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Producer serializes notifications and hands them to a MessageSender. The
// destination is a queue URL, a topic or a webhook URL depending on sender.
type Producer struct {
	sender      MessageSender
	destination string
}

func NewProducer(sender MessageSender, destination string) *Producer {
	return &Producer{
		sender:      sender,
		destination: destination,
	}
}

func (p *Producer) Notify(ctx context.Context, n Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	// Enrich the current span with the employee if the payload carries one
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(attribute.String("app.action", n.Action))
		if ev, ok := n.Data.(ClockEvent); ok && ev.Employee != "" {
			span.SetAttributes(attribute.String("app.employeeId", ev.Employee))
		}
	}

	if err := p.sender.SendMessage(ctx, p.destination, b); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
