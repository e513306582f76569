package domain

import (
	"time"

	"github.com/google/uuid"
)

// Bucket names for wallet sub-balances.
const (
	BucketEmergencyFund    = "emergency_fund"
	BucketJointGoals       = "joint_goals"
	BucketPensionFund      = "pension_fund"
	BucketEmergencyReserve = "emergency_reserve"
)

// WalletAccount represents an owner's wallet: the primary balance plus
// named sub-balances, all in minor currency units.
type WalletAccount struct {
	ID            uuid.UUID        `json:"id"`
	OwnerID       uuid.UUID        `json:"owner_id"`
	Persona       Persona          `json:"persona"`
	Balance       int64            `json:"balance"`
	SubBalances   map[string]int64 `json:"sub_balances"`
	SpendLimit    int64            `json:"spend_limit"` // rolling cap on non-essential withdrawals, 0 = unlimited
	IsLocked      bool             `json:"is_locked"`
	LastMutatedAt time.Time        `json:"last_mutated_at"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// SubBalance returns the named sub-balance, zero if absent.
func (w *WalletAccount) SubBalance(bucket string) int64 {
	if w.SubBalances == nil {
		return 0
	}
	return w.SubBalances[bucket]
}

// AvailableBalance is what the owner can actually spend right now.
// A locked wallet has nothing available.
func (w *WalletAccount) AvailableBalance() int64 {
	if w.IsLocked {
		return 0
	}
	return w.Balance
}

// TotalSavings sums all sub-balances.
func (w *WalletAccount) TotalSavings() int64 {
	var total int64
	for _, v := range w.SubBalances {
		total += v
	}
	return total
}

// WalletPolicy describes the persona-specific rules of a wallet:
// which sub-balance buckets exist and over what rolling period the
// spend limit (if any) is computed.
type WalletPolicy struct {
	Persona     Persona
	Buckets     []string
	SpendPeriod time.Duration // window for the rolling spend-limit sum, 0 = no limit
}

// HasBucket reports whether the policy declares the named bucket.
func (p WalletPolicy) HasBucket(bucket string) bool {
	for _, b := range p.Buckets {
		if b == bucket {
			return true
		}
	}
	return false
}

// HasSpendLimit reports whether withdrawals are subject to a rolling cap.
func (p WalletPolicy) HasSpendLimit() bool {
	return p.SpendPeriod > 0
}

// PolicyFor returns the wallet policy for a persona.
func PolicyFor(persona Persona) WalletPolicy {
	switch persona {
	case PersonaCouple:
		return WalletPolicy{
			Persona:     PersonaCouple,
			Buckets:     []string{BucketEmergencyFund, BucketJointGoals},
			SpendPeriod: 30 * 24 * time.Hour,
		}
	case PersonaRetiree:
		return WalletPolicy{
			Persona:     PersonaRetiree,
			Buckets:     []string{BucketPensionFund},
			SpendPeriod: 30 * 24 * time.Hour,
		}
	case PersonaDailyWager:
		return WalletPolicy{
			Persona:     PersonaDailyWager,
			Buckets:     []string{BucketEmergencyReserve},
			SpendPeriod: 7 * 24 * time.Hour,
		}
	case PersonaIndividual:
		return WalletPolicy{
			Persona:     PersonaIndividual,
			SpendPeriod: 30 * 24 * time.Hour,
		}
	default:
		// Student and parent wallets have no buckets and no spend cap.
		return WalletPolicy{Persona: persona}
	}
}

// NewWalletAccount provisions a wallet for an owner with the persona's
// policy buckets initialized to zero.
func NewWalletAccount(ownerID uuid.UUID, persona Persona) *WalletAccount {
	policy := PolicyFor(persona)
	sub := make(map[string]int64, len(policy.Buckets))
	for _, b := range policy.Buckets {
		sub[b] = 0
	}
	now := time.Now().UTC()
	return &WalletAccount{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		Persona:       persona,
		Balance:       0,
		SubBalances:   sub,
		LastMutatedAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
