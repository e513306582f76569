package ports

import (
	"context"
	"time"

	"github.com/ruban1613/ibet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// WalletRepository defines persistence operations for wallet accounts.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	Create(ctx context.Context, account *domain.WalletAccount) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WalletAccount, error)
	GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*domain.WalletAccount, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WalletAccount, error)
	UpdateBalances(ctx context.Context, tx pgx.Tx, account *domain.WalletAccount) error
	SetLocked(ctx context.Context, id uuid.UUID, locked bool) error
}

// TransactionRepository defines persistence operations for ledger entries.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.WalletTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WalletTransaction, error)
	ListByAccount(ctx context.Context, params TransactionListParams) ([]domain.WalletTransaction, int64, error)
	// SumWithdrawalsSince sums non-essential withdrawal amounts for the
	// account since the given time. Called inside the row-lock transaction
	// so the rolling spend-limit check is race-free.
	SumWithdrawalsSince(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, since time.Time) (int64, error)
}

// TransactionListParams holds filter + pagination for listing ledger entries.
type TransactionListParams struct {
	AccountID uuid.UUID
	Kind      *domain.TransactionKind
	From      *int64 // Unix timestamp
	To        *int64 // Unix timestamp
	Page      int
	PageSize  int
}

// SecurityEventRepository defines the durable tier of the audit trail.
type SecurityEventRepository interface {
	Create(ctx context.Context, event *domain.SecurityEvent) error
	ListBySubject(ctx context.Context, subjectID uuid.UUID, since time.Time, limit int) ([]domain.SecurityEvent, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
