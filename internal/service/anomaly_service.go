package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ruban1613/ibet/internal/core/domain"
	"github.com/ruban1613/ibet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AnomalyRule bounds how often an activity may recur before it is
// flagged as suspicious.
type AnomalyRule struct {
	Threshold int64
	Window    time.Duration
}

// DefaultAnomalyRules are the preset abuse thresholds per activity type.
func DefaultAnomalyRules() map[string]AnomalyRule {
	return map[string]AnomalyRule{
		ports.ActivityWithdrawalFailed: {Threshold: 3, Window: 15 * time.Minute},
		ports.ActivityDeposit:          {Threshold: 5, Window: 30 * time.Minute},
		ports.ActivityOTPFailed:        {Threshold: 3, Window: 10 * time.Minute},
		ports.ActivityLoginFailed:      {Threshold: 5, Window: 15 * time.Minute},
	}
}

// AnomalyService implements ports.AnomalyDetector: it counts activity
// occurrences in TTL windows and emits a critical security event the
// moment a rule's threshold is reached.
type AnomalyService struct {
	store    ports.ActivityStore
	recorder ports.SecurityRecorder
	rules    map[string]AnomalyRule
	log      zerolog.Logger
}

// NewAnomalyService creates an anomaly detector. Pass nil rules for the
// defaults.
func NewAnomalyService(store ports.ActivityStore, recorder ports.SecurityRecorder, rules map[string]AnomalyRule, log zerolog.Logger) *AnomalyService {
	if rules == nil {
		rules = DefaultAnomalyRules()
	}
	return &AnomalyService{
		store:    store,
		recorder: recorder,
		rules:    rules,
		log:      log,
	}
}

// RecordAndCheck bumps the counter for (subject, activityType) and
// returns true when its threshold is reached within the rule's window.
// Unknown activity types are counted but never flagged.
func (s *AnomalyService) RecordAndCheck(ctx context.Context, subjectID uuid.UUID, activityType string, clientIP string) (bool, error) {
	rule, ok := s.rules[activityType]
	if !ok {
		return false, nil
	}

	count, err := s.store.Bump(ctx, subjectID, activityType, rule.Window)
	if err != nil {
		return false, fmt.Errorf("anomaly check: %w", err)
	}

	if count < rule.Threshold {
		return false, nil
	}

	s.log.Warn().
		Str("subject_id", subjectID.String()).
		Str("activity_type", activityType).
		Int64("count", count).
		Int64("threshold", rule.Threshold).
		Msg("suspicious activity detected")

	if s.recorder != nil {
		s.recorder.Record(ctx, subjectID, domain.EventSuspiciousActivity, map[string]any{
			"activity_type": activityType,
			"count":         count,
			"threshold":     rule.Threshold,
			"window":        rule.Window.String(),
		}, clientIP)
	}

	return true, nil
}
