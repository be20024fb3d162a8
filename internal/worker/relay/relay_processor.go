package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"attendance.service/internal/ports/messaging"
	"attendance.service/pkg/telemetry"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Poster delivers a raw notification body downstream.
type Poster interface {
	Post(ctx context.Context, body []byte) error
}

// Processor relays queued notifications to the downstream webhook. It uses
// a circuit breaker to avoid hammering the webhook if it's having issues.
type Processor struct {
	poster Poster
	cb     *gobreaker.CircuitBreaker
}

// NewProcessor creates a new relay processor with its circuit breaker.
func NewProcessor(poster Poster) *Processor {
	settings := gobreaker.Settings{
		Name:        "Notify-Webhook",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Trip if failure rate is bigger then 50% after at least 10 requests
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.5
		},
	}

	return &Processor{
		poster: poster,
		cb:     gobreaker.NewCircuitBreaker(settings),
	}
}

// Process validates one queued notification and posts it through the
// circuit breaker. Failed posts are retried with exponential backoff based
// on how often SQS has delivered the message.
func (p *Processor) Process(ctx context.Context, msg types.Message) (bool, int32, error) {
	if msg.Body == nil {
		return false, 0, errors.New("empty message body")
	}
	var n messaging.Notification
	if err := json.Unmarshal([]byte(*msg.Body), &n); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to unmarshal notification")
		return false, 0, err // Do not retry on malformed message
	}
	if n.Action == "" {
		return false, 0, fmt.Errorf("notification %q has no action", n.ID)
	}

	log.Ctx(ctx).Info().
		Str("action", n.Action).
		Str("employee", telemetry.EmployeeFromContext(ctx)).
		Str("notification_id", n.ID).
		Msg("Relaying notification")

	_, err := p.cb.Execute(func() (interface{}, error) {
		return nil, p.poster.Post(ctx, []byte(*msg.Body))
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			log.Ctx(ctx).Warn().Msg("Circuit breaker is open, skipping webhook call")
		}
		return true, calculateBackoff(receiveCount(msg)), err
	}
	return false, 0, nil
}

// receiveCount is how many times SQS has delivered msg, 1 on first delivery.
func receiveCount(msg types.Message) int {
	n, err := strconv.Atoi(msg.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// calculateBackoff determines how long to wait before retrying a failed job.
// It increases the delay exponentially with each retry.
func calculateBackoff(retryCount int) int32 {
	backoff := math.Pow(2, float64(retryCount)) * 10
	if backoff > 3600 {
		return 3600 // max at 1 hour
	}
	return int32(backoff)
}
