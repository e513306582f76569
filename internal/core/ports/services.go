package ports

import (
	"context"
	"time"

	"github.com/ruban1613/ibet/internal/core/domain"

	"github.com/google/uuid"
)

// SecretHasher produces keyed one-way hashes of OTP codes.
// Compare must run in constant time.
type SecretHasher interface {
	Hash(code string) string
	Compare(code string, hash string) bool
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, persona domain.Persona) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID  uuid.UUID
	Persona domain.Persona
}

// ChallengeStore holds pending OTP challenges with automatic expiry.
type ChallengeStore interface {
	Put(ctx context.Context, challenge *domain.OTPChallenge, ttl time.Duration) error
	// Get returns (nil, nil) when the key is absent or already expired.
	Get(ctx context.Context, key string) (*domain.OTPChallenge, error)
	Delete(ctx context.Context, key string) error
	// ReplaceActive records key as the single active challenge for
	// (subject, purpose) and returns the key it displaced, if any.
	ReplaceActive(ctx context.Context, subjectID uuid.UUID, purpose domain.OTPPurpose, key string, ttl time.Duration) (string, error)
}

// RateLimitStore counts requests in fixed windows.
type RateLimitStore interface {
	// Increment bumps the counter for (subject, scope) in the current
	// window and returns the count after the bump.
	Increment(ctx context.Context, subject string, scope string, window time.Duration) (int64, error)
}

// ActivityStore counts recent activity occurrences for anomaly detection.
type ActivityStore interface {
	// Bump increments the counter for (subject, activityType), starting a
	// fresh TTL window on first occurrence, and returns the new count.
	Bump(ctx context.Context, subjectID uuid.UUID, activityType string, window time.Duration) (int64, error)
}

// EventCache is the short-lived hot tier of the audit trail.
type EventCache interface {
	Append(ctx context.Context, event *domain.SecurityEvent, ttl time.Duration) error
	Recent(ctx context.Context, subjectID uuid.UUID, limit int) ([]domain.SecurityEvent, error)
}

// OTPSender delivers a raw code to the subject out of band. The code
// never travels through an API response.
type OTPSender interface {
	Send(ctx context.Context, subjectID uuid.UUID, code string) error
}

// --- Service Ports (Business Logic) ---

// OTPService issues and verifies one-time-password challenges.
type OTPService interface {
	Issue(ctx context.Context, subjectID uuid.UUID, purpose domain.OTPPurpose, clientIP string) (*OTPIssueResult, error)
	Verify(ctx context.Context, subjectID uuid.UUID, challengeKey string, code string, clientIP string) (*OTPVerifyResult, error)
}

// OTPIssueResult is what issuance returns to the caller. Code is handed
// to the delivery collaborator only; handlers must not echo it.
type OTPIssueResult struct {
	ChallengeKey string
	Code         string
	ExpiresAt    time.Time
}

// OTPVerifyReason classifies a failed verification.
type OTPVerifyReason string

const (
	OTPReasonNotFound  OTPVerifyReason = "NOT_FOUND"
	OTPReasonExpired   OTPVerifyReason = "EXPIRED"
	OTPReasonExhausted OTPVerifyReason = "EXHAUSTED"
	OTPReasonInvalid   OTPVerifyReason = "INVALID"
)

// OTPVerifyResult is the typed outcome of a verification attempt.
// The error return of Verify is reserved for infrastructure faults.
type OTPVerifyResult struct {
	OK                bool
	Purpose           domain.OTPPurpose // operation the challenge authorizes, set on success
	Reason            OTPVerifyReason   // set when !OK
	RemainingAttempts int               // meaningful for INVALID
}

// WalletService is the concurrency-safe ledger.
type WalletService interface {
	Deposit(ctx context.Context, req DepositRequest) (*domain.WalletTransaction, error)
	Withdraw(ctx context.Context, req WithdrawRequest) (*domain.WalletTransaction, error)
	TransferInternal(ctx context.Context, req TransferRequest) (*domain.WalletTransaction, error)
	Balance(ctx context.Context, accountID uuid.UUID) (*domain.WalletAccount, error)
	Transactions(ctx context.Context, params TransactionListParams) ([]domain.WalletTransaction, int64, error)
	SetLocked(ctx context.Context, accountID uuid.UUID, locked bool, actorID uuid.UUID, clientIP string) error
}

// DepositRequest holds validated input for a deposit.
type DepositRequest struct {
	AccountID   uuid.UUID
	Amount      int64
	Description string
	ActorID     uuid.UUID
	ClientIP    string
}

// WithdrawRequest holds validated input for a withdrawal.
type WithdrawRequest struct {
	AccountID   uuid.UUID
	Amount      int64
	Description string
	Essential   bool // exempt from the rolling spend cap
	ActorID     uuid.UUID
	ClientIP    string
}

// TransferRequest holds validated input for an internal bucket transfer.
// An empty bucket name denotes the primary balance; exactly one side
// must be a named sub-balance.
type TransferRequest struct {
	AccountID   uuid.UUID
	Amount      int64
	FromBucket  string
	ToBucket    string
	Description string
	ActorID     uuid.UUID
	ClientIP    string
}

// AuthService defines authentication business logic.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	Login(ctx context.Context, username, password, clientIP string) (string, time.Time, error) // token, expiry, error
}

// RegisterRequest holds input for user registration.
type RegisterRequest struct {
	Username string
	Password string
	Persona  domain.Persona
}

// RegisterResponse holds the registration result.
type RegisterResponse struct {
	UserID   uuid.UUID
	WalletID uuid.UUID
}

// SecurityRecorder is the audit trail entry point. Record never returns
// an error: audit is best-effort relative to the primary operation.
type SecurityRecorder interface {
	Record(ctx context.Context, subjectID uuid.UUID, eventType domain.SecurityEventType, details map[string]any, clientIP string)
	Recent(ctx context.Context, subjectID uuid.UUID, limit int) ([]domain.SecurityEvent, error)
}

// RateLimiter enforces fixed-window request caps per scope.
type RateLimiter interface {
	Check(ctx context.Context, subject string, scope string) (*RateLimitResult, error)
}

// RateLimitResult describes the state of a rate-limit window.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// AnomalyDetector tracks activity frequency and flags abuse.
type AnomalyDetector interface {
	// RecordAndCheck bumps the activity counter and returns true when the
	// rule's threshold is reached within its window.
	RecordAndCheck(ctx context.Context, subjectID uuid.UUID, activityType string, clientIP string) (bool, error)
}

// Anomaly activity types with preset rules.
const (
	ActivityWithdrawalFailed = "withdrawal_failed"
	ActivityDeposit          = "deposit"
	ActivityOTPFailed        = "otp_failed"
	ActivityLoginFailed      = "login_failed"
)
