package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionKind represents the kind of wallet mutation.
type TransactionKind string

const (
	TransactionKindDeposit    TransactionKind = "DEPOSIT"
	TransactionKindWithdrawal TransactionKind = "WITHDRAWAL"
	TransactionKindTransfer   TransactionKind = "TRANSFER"
)

// WalletTransaction is an immutable ledger entry. Each row carries the
// balance the wallet held after the mutation committed, so the history
// is auditable without replaying it.
type WalletTransaction struct {
	ID               uuid.UUID       `json:"id"`
	AccountID        uuid.UUID       `json:"account_id"`
	Kind             TransactionKind `json:"kind"`
	Amount           int64           `json:"amount"` // minor units, always positive
	FromBucket       string          `json:"from_bucket,omitempty"`
	ToBucket         string          `json:"to_bucket,omitempty"`
	Description      string          `json:"description"`
	Essential        bool            `json:"essential"` // exempt from the rolling spend cap
	ActorID          uuid.UUID       `json:"actor_id"`
	ResultingBalance int64           `json:"resulting_balance"`
	CreatedAt        time.Time       `json:"created_at"`
}

// CountsTowardSpendLimit reports whether this entry is summed when
// computing the rolling spend cap.
func (t *WalletTransaction) CountsTowardSpendLimit() bool {
	return t.Kind == TransactionKindWithdrawal && !t.Essential
}
