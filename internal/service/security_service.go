package service

import (
	"context"
	"time"

	"github.com/ruban1613/ibet/internal/core/domain"
	"github.com/ruban1613/ibet/internal/core/ports"
	"github.com/ruban1613/ibet/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// How long events stay in the redis hot tier.
const eventCacheTTL = 24 * time.Hour

// SecurityService implements ports.SecurityRecorder: the audit trail.
// Every event is logged synchronously and pushed to the redis hot tier;
// durable persistence to postgres happens asynchronously and
// best-effort, so audit failures never fail the guarded operation.
type SecurityService struct {
	repo  ports.SecurityEventRepository
	cache ports.EventCache
	log   zerolog.Logger
}

// NewSecurityService creates a new security event recorder.
// If repo is nil, events are only logged and cached.
func NewSecurityService(repo ports.SecurityEventRepository, cache ports.EventCache, log zerolog.Logger) *SecurityService {
	return &SecurityService{repo: repo, cache: cache, log: log}
}

// Record writes one security event. Details must already be masked:
// no raw OTP codes, no credentials.
func (s *SecurityService) Record(ctx context.Context, subjectID uuid.UUID, eventType domain.SecurityEventType, details map[string]any, clientIP string) {
	ev := domain.NewSecurityEvent(subjectID, eventType, details, clientIP)

	s.log.Info().
		Str("event_type", string(ev.Type)).
		Str("severity", string(ev.Severity)).
		Str("subject_id", subjectID.String()).
		Str("ip", clientIP).
		Fields(map[string]any{"details": details}).
		Msg("security event")

	metrics.SecurityEventsTotal.WithLabelValues(string(ev.Type), string(ev.Severity)).Inc()

	if s.cache != nil {
		if err := s.cache.Append(ctx, ev, eventCacheTTL); err != nil {
			s.log.Warn().Err(err).Str("event_type", string(ev.Type)).Msg("failed to cache security event")
		}
	}

	if s.repo != nil {
		// Fire-and-forget: durable persistence must not block or fail
		// the operation that produced the event.
		go func() {
			if err := s.repo.Create(context.Background(), ev); err != nil {
				s.log.Warn().Err(err).Str("event_type", string(ev.Type)).Msg("failed to persist security event")
			}
		}()
	}
}

// Recent returns the subject's events from the hot tier, newest first.
func (s *SecurityService) Recent(ctx context.Context, subjectID uuid.UUID, limit int) ([]domain.SecurityEvent, error) {
	if s.cache == nil {
		return nil, nil
	}
	return s.cache.Recent(ctx, subjectID, limit)
}
