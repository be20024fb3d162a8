package core

import (
	"context"
	"errors"
	"testing"

	"attendance.service/internal/core/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	return &ses.SendEmailOutput{}, f.err
}

func TestSESSummaryMailer(t *testing.T) {
	client := &fakeSES{}
	m := NewSESSummaryMailer(client, "noreply@example.com", "admin@example.com")

	err := m.SendSweepSummary(context.Background(), model.SweepSummary{
		Cutoff:    "10/03/2025 23:00:00",
		Processed: 2,
		Exempted:  1,
		Closed:    []string{"Somchai Jones", "Anna"},
	})
	require.NoError(t, err)

	require.NotNil(t, client.input)
	assert.Equal(t, "noreply@example.com", aws.ToString(client.input.Source))
	assert.Equal(t, []string{"admin@example.com"}, client.input.Destination.ToAddresses)
	body := aws.ToString(client.input.Message.Body.Text.Data)
	assert.Contains(t, body, "Closed:   2")
	assert.Contains(t, body, "- Somchai Jones")
}

func TestSESSummaryMailer_Error(t *testing.T) {
	m := NewSESSummaryMailer(&fakeSES{err: errors.New("throttled")}, "a@b", "c@d")
	err := m.SendSweepSummary(context.Background(), model.SweepSummary{})
	assert.ErrorContains(t, err, "throttled")
}
