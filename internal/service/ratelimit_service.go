package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ruban1613/ibet/config"
	"github.com/ruban1613/ibet/internal/core/domain"
	"github.com/ruban1613/ibet/internal/core/ports"
	"github.com/ruban1613/ibet/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Rate limit scope names. Each scope carries its own fixed-window rule.
const (
	ScopeOTPGeneration      = "otp_generation"
	ScopeOTPVerification    = "otp_verification"
	ScopeWalletAccess       = "wallet_access"
	ScopeSensitiveOperation = "sensitive_operations"
)

// RateLimitService implements ports.RateLimiter with fixed-window
// counters. Denials are recorded on the audit trail.
type RateLimitService struct {
	store    ports.RateLimitStore
	recorder ports.SecurityRecorder
	rules    map[string]config.ScopeRule
	log      zerolog.Logger
}

// NewRateLimitService creates a rate limiter with the configured scope rules.
func NewRateLimitService(store ports.RateLimitStore, recorder ports.SecurityRecorder, cfg config.RateLimitConfig, log zerolog.Logger) *RateLimitService {
	return &RateLimitService{
		store:    store,
		recorder: recorder,
		rules: map[string]config.ScopeRule{
			ScopeOTPGeneration:      cfg.OTPGeneration,
			ScopeOTPVerification:    cfg.OTPVerification,
			ScopeWalletAccess:       cfg.WalletAccess,
			ScopeSensitiveOperation: cfg.SensitiveOperation,
		},
		log: log,
	}
}

// Check bumps the subject's counter for the scope and reports whether
// the request is within the limit. Unknown scopes are rejected outright.
func (s *RateLimitService) Check(ctx context.Context, subject string, scope string) (*ports.RateLimitResult, error) {
	rule, ok := s.rules[scope]
	if !ok {
		return nil, fmt.Errorf("unknown rate limit scope: %s", scope)
	}

	count, err := s.store.Increment(ctx, subject, scope, rule.Window)
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}

	windowID := time.Now().Unix() / int64(rule.Window.Seconds())
	resetAt := time.Unix((windowID+1)*int64(rule.Window.Seconds()), 0)

	remaining := rule.Limit - count
	if remaining < 0 {
		remaining = 0
	}

	result := &ports.RateLimitResult{
		Allowed:   count <= rule.Limit,
		Limit:     rule.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}

	if !result.Allowed {
		metrics.RateLimitDenialsTotal.WithLabelValues(scope).Inc()
		s.log.Warn().
			Str("subject", subject).
			Str("scope", scope).
			Int64("count", count).
			Int64("limit", rule.Limit).
			Msg("rate limit exceeded")
		if subjectID, err := uuid.Parse(subject); err == nil && s.recorder != nil {
			s.recorder.Record(ctx, subjectID, domain.EventRateLimitExceeded, map[string]any{
				"scope": scope,
				"limit": rule.Limit,
			}, "")
		}
	}

	return result, nil
}
