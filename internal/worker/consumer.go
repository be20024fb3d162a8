package worker

import (
	"context"
	"time"

	"attendance.service/pkg/logger"
	"attendance.service/pkg/telemetry"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// SQSClient is the part of *sqs.Client the worker uses.
type SQSClient interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// Processor handles one message. A retryable failure reports the delay, in
// seconds, before SQS should redeliver it.
type Processor interface {
	Process(ctx context.Context, msg types.Message) (shouldRetry bool, retryDelay int32, err error)
}

// Outcomes a Recorder is told about.
const (
	OutcomeDone    = "done"
	OutcomeRetry   = "retry"
	OutcomeDropped = "dropped"
)

// Recorder counts message outcomes.
type Recorder interface {
	MessageOutcome(outcome string)
}

type noopRecorder struct{}

func (noopRecorder) MessageOutcome(string) {}

// Worker long-polls a queue and hands every message to a Processor on a
// bounded pool.
type Worker struct {
	client    SQSClient
	queueURL  string
	processor Processor
	rec       Recorder
	// Concurrency bounds how many messages are processed at once.
	Concurrency int
	// ErrorBackoff is how long the poller waits after a failed receive.
	ErrorBackoff time.Duration
	// WaitTime is the SQS long-poll duration in seconds.
	WaitTime int32
}

// NewWorker creates a new SQS worker, ready to be started.
func NewWorker(client SQSClient, url string, proc Processor) *Worker {
	return &Worker{
		client:       client,
		queueURL:     url,
		processor:    proc,
		rec:          noopRecorder{},
		Concurrency:  10,
		ErrorBackoff: 5 * time.Second,
		WaitTime:     20,
	}
}

// WithRecorder reports every message outcome to rec.
func (w *Worker) WithRecorder(rec Recorder) *Worker {
	if rec != nil {
		w.rec = rec
	}
	return w
}

// Start polls until ctx is cancelled, then waits for the messages already
// received to be processed and acknowledged.
func (w *Worker) Start(ctx context.Context) {
	log.Info().Int("concurrency", w.Concurrency).Str("queue", w.queueURL).Msg("SQS worker started")

	// Handlers run detached from ctx so a shutdown never abandons a
	// message between processing and acknowledgement.
	handleCtx := context.WithoutCancel(ctx)
	p := pool.New().WithMaxGoroutines(w.Concurrency)
	defer p.Wait()

	for ctx.Err() == nil {
		msgs, err := w.receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error().Err(err).Msg("Error receiving messages")
			w.sleep(ctx, w.ErrorBackoff)
			continue
		}
		for _, msg := range msgs {
			p.Go(func() { w.handle(handleCtx, msg) })
		}
	}
	log.Info().Msg("Poller shutting down...")
}

func (w *Worker) receive(ctx context.Context) ([]types.Message, error) {
	out, err := w.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              &w.queueURL,
		MaxNumberOfMessages:   int32(min(w.Concurrency, 10)),
		WaitTimeSeconds:       w.WaitTime,
		MessageAttributeNames: []string{"All"}, // trace context
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, err
	}
	if len(out.Messages) > 0 {
		log.Debug().Int("count", len(out.Messages)).Msg("Received messages")
	}
	return out.Messages, nil
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// handle processes msg, then deletes it on success, delays its redelivery
// on a retryable failure, or leaves it for the redrive policy otherwise.
func (w *Worker) handle(ctx context.Context, msg types.Message) {
	ctx, span := telemetry.StartSpanFromSQSMessage(ctx, msg)
	defer span.End()
	ctx = logger.EnrichContextWithLogger(ctx)
	l := log.Ctx(ctx).With().Str("action", telemetry.ActionFromContext(ctx)).Logger()

	shouldRetry, retryDelay, err := w.processor.Process(ctx, msg)
	switch {
	case err == nil:
		w.rec.MessageOutcome(OutcomeDone)
		if _, derr := w.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      &w.queueURL,
			ReceiptHandle: msg.ReceiptHandle,
		}); derr != nil {
			l.Error().Err(derr).Msg("Failed to delete processed message")
		}

	case shouldRetry:
		w.rec.MessageOutcome(OutcomeRetry)
		l.Warn().Err(err).Int32("retry_delay", retryDelay).Msg("Processing failed, will retry")
		if _, verr := w.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
			QueueUrl:          &w.queueURL,
			ReceiptHandle:     msg.ReceiptHandle,
			VisibilityTimeout: retryDelay,
		}); verr != nil {
			l.Error().Err(verr).Msg("Failed to delay redelivery")
		}

	default:
		w.rec.MessageOutcome(OutcomeDropped)
		l.Error().Err(err).Msg("Unrecoverable error processing message, will not retry")
	}
}
