package domain

import (
	"time"

	"github.com/google/uuid"
)

// SecurityEventType identifies what happened.
type SecurityEventType string

const (
	EventLoginSuccess       SecurityEventType = "login_success"
	EventLoginFailed        SecurityEventType = "login_failed"
	EventLogout             SecurityEventType = "logout"
	EventOTPGenerated       SecurityEventType = "otp_generated"
	EventOTPVerified        SecurityEventType = "otp_verified"
	EventOTPFailed          SecurityEventType = "otp_failed"
	EventWalletAccess       SecurityEventType = "wallet_access"
	EventSuspiciousActivity SecurityEventType = "suspicious_activity"
	EventRateLimitExceeded  SecurityEventType = "rate_limit_exceeded"
	EventUnauthorizedAccess SecurityEventType = "unauthorized_access"
	EventFundTransfer       SecurityEventType = "fund_transfer"
)

// Severity classifies how alarming an event is.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

var eventSeverity = map[SecurityEventType]Severity{
	EventLoginSuccess:       SeverityInfo,
	EventLoginFailed:        SeverityWarning,
	EventLogout:             SeverityInfo,
	EventOTPGenerated:       SeverityInfo,
	EventOTPVerified:        SeverityInfo,
	EventOTPFailed:          SeverityWarning,
	EventWalletAccess:       SeverityInfo,
	EventSuspiciousActivity: SeverityCritical,
	EventRateLimitExceeded:  SeverityWarning,
	EventUnauthorizedAccess: SeverityCritical,
	EventFundTransfer:       SeverityWarning,
}

// SeverityOf returns the severity for an event type, INFO for unknown types.
func SeverityOf(t SecurityEventType) Severity {
	if s, ok := eventSeverity[t]; ok {
		return s
	}
	return SeverityInfo
}

// SecurityEvent is one entry in the audit trail. Details is a JSON
// object; it must never contain raw OTP codes or credentials.
type SecurityEvent struct {
	ID        uuid.UUID         `json:"id"`
	SubjectID uuid.UUID         `json:"subject_id"`
	Type      SecurityEventType `json:"type"`
	Severity  Severity          `json:"severity"`
	Details   map[string]any    `json:"details,omitempty"`
	IPAddress string            `json:"ip_address,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewSecurityEvent builds an event with the type's mapped severity.
func NewSecurityEvent(subjectID uuid.UUID, t SecurityEventType, details map[string]any, ip string) *SecurityEvent {
	return &SecurityEvent{
		ID:        uuid.New(),
		SubjectID: subjectID,
		Type:      t,
		Severity:  SeverityOf(t),
		Details:   details,
		IPAddress: ip,
		CreatedAt: time.Now().UTC(),
	}
}
