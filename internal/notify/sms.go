package notify

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Sender delivers an SMS to a phone number. Failures are never surfaced to
// users; callers log and move on.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

// LogSender is the default Sender: it writes the message to the log instead
// of a carrier. Useful for development and installations without SMS
// credentials.
type LogSender struct {
	log *zap.Logger
}

// NewLogSender creates a Sender that only logs.
func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send logs the message.
func (s *LogSender) Send(_ context.Context, phone, message string) error {
	s.log.Info("sms (log sender)", zap.String("phone", phone), zap.String("message", message))
	return nil
}

// RetrySender wraps a Sender with bounded exponential backoff.
type RetrySender struct {
	inner      Sender
	maxRetries uint64
}

// NewRetrySender wraps inner so each Send is retried up to maxRetries times.
func NewRetrySender(inner Sender, maxRetries int) *RetrySender {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetrySender{inner: inner, maxRetries: uint64(maxRetries)}
}

// Send delivers the message, retrying transient failures.
func (s *RetrySender) Send(ctx context.Context, phone, message string) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = 10 * time.Second

	op := func() error {
		return s.inner.Send(ctx, phone, message)
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, s.maxRetries), ctx))
}
