// Package notify holds out-of-band delivery adapters for OTP codes.
package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogSender is the development delivery channel: it writes the code to
// the application log instead of sending an SMS or email. Replace with
// a real provider adapter in production deployments.
type LogSender struct {
	log zerolog.Logger
}

// NewLogSender creates a new LogSender.
func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send delivers the code by logging it.
func (s *LogSender) Send(_ context.Context, subjectID uuid.UUID, code string) error {
	s.log.Info().
		Str("subject_id", subjectID.String()).
		Str("code", code).
		Msg("OTP delivery (dev channel)")
	return nil
}
