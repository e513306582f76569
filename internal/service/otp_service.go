package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/ruban1613/ibet/config"
	"github.com/ruban1613/ibet/internal/core/domain"
	"github.com/ruban1613/ibet/internal/core/ports"
	"github.com/ruban1613/ibet/internal/metrics"
	"github.com/ruban1613/ibet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OTPService implements ports.OTPService. Raw codes exist only in the
// issue result handed to the delivery collaborator; the store holds the
// keyed hash, and no code is ever logged.
type OTPService struct {
	store    ports.ChallengeStore
	hasher   ports.SecretHasher
	limiter  ports.RateLimiter
	anomaly  ports.AnomalyDetector
	recorder ports.SecurityRecorder
	cfg      config.OTPConfig
	log      zerolog.Logger
}

// NewOTPService creates a new OTP challenge service.
func NewOTPService(
	store ports.ChallengeStore,
	hasher ports.SecretHasher,
	limiter ports.RateLimiter,
	anomaly ports.AnomalyDetector,
	recorder ports.SecurityRecorder,
	cfg config.OTPConfig,
	log zerolog.Logger,
) *OTPService {
	return &OTPService{
		store:    store,
		hasher:   hasher,
		limiter:  limiter,
		anomaly:  anomaly,
		recorder: recorder,
		cfg:      cfg,
		log:      log,
	}
}

// Issue creates a fresh challenge for (subject, purpose).
func (s *OTPService) Issue(ctx context.Context, subjectID uuid.UUID, purpose domain.OTPPurpose, clientIP string) (*ports.OTPIssueResult, error) {
	rl, err := s.limiter.Check(ctx, subjectID.String(), ScopeOTPGeneration)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("otp generation rate check: %w", err))
	}
	if !rl.Allowed {
		return nil, apperror.ErrRateLimited(retryAfterSeconds(rl))
	}

	code, err := s.generateCode()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generating otp code: %w", err))
	}

	now := time.Now().UTC()
	challenge := &domain.OTPChallenge{
		Key:         uuid.NewString(),
		SubjectID:   subjectID,
		Purpose:     purpose,
		CodeHash:    s.hasher.Hash(code),
		MaxAttempts: s.cfg.MaxAttempts,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.TTL),
	}

	if s.cfg.SingleActive {
		prev, err := s.store.ReplaceActive(ctx, subjectID, purpose, challenge.Key, s.cfg.TTL)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("replacing active challenge: %w", err))
		}
		if prev != "" {
			if err := s.store.Delete(ctx, prev); err != nil {
				s.log.Warn().Err(err).Msg("failed to invalidate displaced challenge")
			}
		}
	}

	if err := s.store.Put(ctx, challenge, s.cfg.TTL); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("storing challenge: %w", err))
	}

	metrics.OTPChallengesTotal.WithLabelValues("generated").Inc()
	s.recorder.Record(ctx, subjectID, domain.EventOTPGenerated, map[string]any{
		"purpose":       string(purpose),
		"challenge_key": challenge.Key,
		"expires_at":    challenge.ExpiresAt.Format(time.RFC3339),
	}, clientIP)

	return &ports.OTPIssueResult{
		ChallengeKey: challenge.Key,
		Code:         code,
		ExpiresAt:    challenge.ExpiresAt,
	}, nil
}

// Verify checks a code against a pending challenge. The returned result
// carries the typed outcome; the error return is reserved for
// infrastructure faults. Terminal outcomes (success, expiry, exhaustion)
// consume the challenge.
func (s *OTPService) Verify(ctx context.Context, subjectID uuid.UUID, challengeKey string, code string, clientIP string) (*ports.OTPVerifyResult, error) {
	rl, err := s.limiter.Check(ctx, subjectID.String(), ScopeOTPVerification)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("otp verification rate check: %w", err))
	}
	if !rl.Allowed {
		return nil, apperror.ErrRateLimited(retryAfterSeconds(rl))
	}

	challenge, err := s.store.Get(ctx, challengeKey)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("loading challenge: %w", err))
	}
	if challenge == nil || challenge.SubjectID != subjectID {
		// A challenge belonging to someone else is indistinguishable
		// from a missing one.
		return s.failed(ctx, subjectID, challengeKey, ports.OTPReasonNotFound, 0, clientIP), nil
	}

	if challenge.IsExpired(time.Now().UTC()) {
		if err := s.store.Delete(ctx, challengeKey); err != nil {
			s.log.Warn().Err(err).Msg("failed to delete expired challenge")
		}
		return s.failed(ctx, subjectID, challengeKey, ports.OTPReasonExpired, 0, clientIP), nil
	}

	if challenge.IsExhausted() {
		if err := s.store.Delete(ctx, challengeKey); err != nil {
			s.log.Warn().Err(err).Msg("failed to delete exhausted challenge")
		}
		return s.failed(ctx, subjectID, challengeKey, ports.OTPReasonExhausted, 0, clientIP), nil
	}

	if !s.hasher.Compare(code, challenge.CodeHash) {
		// A mismatch always burns an attempt, including the last one.
		// Exhaustion is reported on the next fetch, so even the correct
		// code answers EXHAUSTED once the attempts are spent.
		challenge.AttemptCount++
		ttl := time.Until(challenge.ExpiresAt)
		if err := s.store.Put(ctx, challenge, ttl); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("recording failed attempt: %w", err))
		}
		return s.failed(ctx, subjectID, challengeKey, ports.OTPReasonInvalid, challenge.RemainingAttempts(), clientIP), nil
	}

	// Success consumes the challenge: a code is single-use.
	if err := s.store.Delete(ctx, challengeKey); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("consuming challenge: %w", err))
	}

	metrics.OTPChallengesTotal.WithLabelValues("verified").Inc()
	s.recorder.Record(ctx, subjectID, domain.EventOTPVerified, map[string]any{
		"purpose":       string(challenge.Purpose),
		"challenge_key": challengeKey,
	}, clientIP)

	return &ports.OTPVerifyResult{OK: true, Purpose: challenge.Purpose}, nil
}

// failed records one failed verification outcome and builds its result.
func (s *OTPService) failed(ctx context.Context, subjectID uuid.UUID, challengeKey string, reason ports.OTPVerifyReason, remaining int, clientIP string) *ports.OTPVerifyResult {
	metrics.OTPChallengesTotal.WithLabelValues("failed").Inc()
	s.recorder.Record(ctx, subjectID, domain.EventOTPFailed, map[string]any{
		"challenge_key":      challengeKey,
		"reason":             string(reason),
		"remaining_attempts": remaining,
	}, clientIP)

	if flagged, err := s.anomaly.RecordAndCheck(ctx, subjectID, ports.ActivityOTPFailed, clientIP); err != nil {
		s.log.Warn().Err(err).Msg("otp anomaly check failed")
	} else if flagged {
		s.log.Warn().Str("subject_id", subjectID.String()).Msg("repeated otp failures flagged")
	}

	return &ports.OTPVerifyResult{
		OK:                false,
		Reason:            reason,
		RemainingAttempts: remaining,
	}
}

// generateCode produces a uniform random numeric code of the configured
// length using the CSPRNG.
func (s *OTPService) generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < s.cfg.CodeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", s.cfg.CodeLength, n), nil
}

func retryAfterSeconds(rl *ports.RateLimitResult) int64 {
	secs := int64(time.Until(rl.ResetAt).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}
