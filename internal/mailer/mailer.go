// Package mailer is the boundary to the email delivery service. Real
// transport is out of scope; LogSender stands in for it.
package mailer

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNoRecipient      = errors.New("recipient has no email address")
	ErrSimulatedFailure = errors.New("simulated delivery failure")
)

// Message is one fully personalized email.
type Message struct {
	CampaignID uuid.UUID
	ProfileID  uuid.UUID
	To         string
	FromName   string
	FromEmail  string
	ReplyTo    string
	Subject    string
	HTMLBody   string
	TextBody   string
}

// Sender attempts delivery of a single message. Implementations must be
// safe for concurrent use: a batch calls Send from many goroutines.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender logs each message instead of delivering it and fails a
// configurable fraction of sends.
type LogSender struct {
	logger      *zap.Logger
	failureRate float64
	roll        func() float64
}

func NewLogSender(logger *zap.Logger, failureRate float64) *LogSender {
	return &LogSender{logger: logger, failureRate: failureRate, roll: rand.Float64}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return ErrNoRecipient
	}
	if s.failureRate > 0 && s.roll() < s.failureRate {
		return ErrSimulatedFailure
	}
	s.logger.Debug("email sent",
		zap.String("campaign_id", msg.CampaignID.String()),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
