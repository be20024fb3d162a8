package telemetry

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceContextRoundTripThroughSQSAttributes(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, parent := tp.Tracer("test").Start(context.Background(), "producer")
	defer parent.End()

	attrs := InjectTraceContext(ctx)
	require.Contains(t, attrs, "traceparent")

	msg := types.Message{
		MessageId:         aws.String("m-1"),
		Body:              aws.String(`{"action":"clock_in","data":{"employeeId":"Somchai Jones"}}`),
		MessageAttributes: attrs,
	}
	got, span := StartSpanFromSQSMessage(context.Background(), msg)
	defer span.End()

	assert.Equal(t, parent.SpanContext().TraceID(), trace.SpanContextFromContext(got).TraceID())
	assert.Equal(t, "Somchai Jones", EmployeeFromContext(got))
	assert.Equal(t, "clock_in", ActionFromContext(got))
}

func TestStartSpanFromSQSMessage_IgnoresUnparseableBody(t *testing.T) {
	msg := types.Message{MessageId: aws.String("m-2"), Body: aws.String("not json")}
	ctx, span := StartSpanFromSQSMessage(context.Background(), msg)
	defer span.End()

	assert.Empty(t, EmployeeFromContext(ctx))
	assert.Empty(t, ActionFromContext(ctx))
}
