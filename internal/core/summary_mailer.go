package core

import (
	"context"
	"fmt"
	"strings"

	"attendance.service/internal/core/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type SummaryMailer interface {
	SendSweepSummary(ctx context.Context, summary model.SweepSummary) error
}

// SESClient is the part of *ses.Client the mailer uses.
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESSummaryMailer struct {
	client SESClient
	sender string
	to     string
}

func NewSESSummaryMailer(client SESClient, sender, to string) *SESSummaryMailer {
	return &SESSummaryMailer{client: client, sender: sender, to: to}
}

func (m *SESSummaryMailer) SendSweepSummary(ctx context.Context, summary model.SweepSummary) error {
	tracer := otel.Tracer("ses-summary-mailer")
	ctx, span := tracer.Start(ctx, "send_email", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.Int("app.sweep.processed", summary.Processed),
		attribute.Int("app.sweep.failed", summary.Failed),
	)

	input := &ses.SendEmailInput{
		Source: aws.String(m.sender),
		Destination: &types.Destination{
			ToAddresses: []string{m.to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(fmt.Sprintf("Auto checkout summary %s", summary.Cutoff)),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(summaryText(summary)),
				},
			},
		},
	}

	if _, err := m.client.SendEmail(ctx, input); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to send summary email: %w", err)
	}
	return nil
}

func summaryText(s model.SweepSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Auto checkout ran at cutoff %s.\n\n", s.Cutoff)
	fmt.Fprintf(&b, "Closed:   %d\n", s.Processed)
	fmt.Fprintf(&b, "Exempted: %d\n", s.Exempted)
	fmt.Fprintf(&b, "Skipped:  %d (sessions from an earlier day, left for manual review)\n", s.Skipped)
	fmt.Fprintf(&b, "Failed:   %d\n", s.Failed)
	if len(s.Closed) > 0 {
		fmt.Fprintf(&b, "\nClosed sessions:\n- %s\n", strings.Join(s.Closed, "\n- "))
	}
	if len(s.Errors) > 0 {
		fmt.Fprintf(&b, "\nErrors:\n- %s\n", strings.Join(s.Errors, "\n- "))
	}
	return b.String()
}
