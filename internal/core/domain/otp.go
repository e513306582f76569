package domain

import (
	"time"

	"github.com/google/uuid"
)

// OTPPurpose scopes a challenge to the operation it authorizes.
type OTPPurpose string

const (
	OTPPurposeWithdrawal OTPPurpose = "WITHDRAWAL"
	OTPPurposeTransfer   OTPPurpose = "TRANSFER"
	OTPPurposeUnlock     OTPPurpose = "UNLOCK"
)

// OTPChallenge is a pending one-time-password challenge. Only the keyed
// hash of the code is ever stored; the raw code exists in memory at
// issuance and in the verifier's request, nowhere else.
type OTPChallenge struct {
	Key          string     `json:"key"`
	SubjectID    uuid.UUID  `json:"subject_id"`
	Purpose      OTPPurpose `json:"purpose"`
	CodeHash     string     `json:"code_hash"`
	AttemptCount int        `json:"attempt_count"`
	MaxAttempts  int        `json:"max_attempts"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
}

// IsExpired reports whether the challenge lifetime has elapsed.
func (c *OTPChallenge) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// IsExhausted reports whether all verification attempts are spent.
func (c *OTPChallenge) IsExhausted() bool {
	return c.AttemptCount >= c.MaxAttempts
}

// RemainingAttempts returns how many verification attempts are left.
func (c *OTPChallenge) RemainingAttempts() int {
	remaining := c.MaxAttempts - c.AttemptCount
	if remaining < 0 {
		return 0
	}
	return remaining
}
