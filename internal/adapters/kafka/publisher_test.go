package kafka

import (
	"context"
	"errors"
	"testing"

	"attendance.service/internal/ports/messaging"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

func TestSender_PublishesToTopic(t *testing.T) {
	w := &fakeWriter{}
	n := NewNotifier(&Sender{w: w}, "attendance.events")

	require.NoError(t, n.Notify(context.Background(), messaging.Notification{Action: messaging.ActionClockIn}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "attendance.events", w.msgs[0].Topic)
	assert.Contains(t, string(w.msgs[0].Value), `"clock_in"`)
}

func TestSender_WrapsError(t *testing.T) {
	boom := errors.New("broker down")
	s := &Sender{w: &fakeWriter{err: boom}}
	err := s.SendMessage(context.Background(), "t", []byte("x"))
	assert.ErrorIs(t, err, boom)
}
