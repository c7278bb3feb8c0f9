package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestLogSender(t *testing.T) {
	ctx := context.Background()

	ok := NewLogSender(zap.NewNop(), 0)
	assert.NoError(t, ok.Send(ctx, Message{To: "a@example.com"}))
	assert.ErrorIs(t, ok.Send(ctx, Message{}), ErrNoRecipient)

	failing := NewLogSender(zap.NewNop(), 1)
	assert.ErrorIs(t, failing.Send(ctx, Message{To: "a@example.com"}), ErrSimulatedFailure)
}

func TestLogSender_FailureRate(t *testing.T) {
	s := NewLogSender(zap.NewNop(), 0.5)
	rolls := []float64{0.1, 0.9}
	i := 0
	s.roll = func() float64 {
		r := rolls[i%len(rolls)]
		i++
		return r
	}

	assert.Error(t, s.Send(context.Background(), Message{To: "x@y.z"}))
	assert.NoError(t, s.Send(context.Background(), Message{To: "x@y.z"}))
}
