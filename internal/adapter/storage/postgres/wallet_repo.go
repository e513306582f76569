package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ruban1613/ibet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository. Sub-balances are stored
// as a JSONB column keyed by bucket name.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

const walletColumns = `id, owner_id, persona, balance, sub_balances, spend_limit, is_locked, last_mutated_at, created_at, updated_at`

func scanWallet(row pgx.Row) (*domain.WalletAccount, error) {
	w := &domain.WalletAccount{}
	var subRaw []byte
	err := row.Scan(
		&w.ID, &w.OwnerID, &w.Persona, &w.Balance, &subRaw,
		&w.SpendLimit, &w.IsLocked, &w.LastMutatedAt, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(subRaw) > 0 {
		if err := json.Unmarshal(subRaw, &w.SubBalances); err != nil {
			return nil, fmt.Errorf("unmarshaling sub balances: %w", err)
		}
	}
	if w.SubBalances == nil {
		w.SubBalances = map[string]int64{}
	}
	return w, nil
}

// Create inserts a new wallet account into the database.
func (r *WalletRepo) Create(ctx context.Context, w *domain.WalletAccount) error {
	subRaw, err := json.Marshal(w.SubBalances)
	if err != nil {
		return fmt.Errorf("marshaling sub balances: %w", err)
	}

	query := `INSERT INTO wallet_accounts (id, owner_id, persona, balance, sub_balances, spend_limit, is_locked, last_mutated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.pool.Exec(ctx, query,
		w.ID, w.OwnerID, w.Persona, w.Balance, subRaw,
		w.SpendLimit, w.IsLocked, w.LastMutatedAt, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet account: %w", err)
	}
	return nil
}

// GetByID fetches a wallet account by its UUID (without locking).
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WalletAccount, error) {
	query := `SELECT ` + walletColumns + ` FROM wallet_accounts WHERE id = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet by id: %w", err)
	}
	return w, nil
}

// GetByOwnerID fetches a wallet account by owner (non-locking read).
func (r *WalletRepo) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*domain.WalletAccount, error) {
	query := `SELECT ` + walletColumns + ` FROM wallet_accounts WHERE owner_id = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet by owner id: %w", err)
	}
	return w, nil
}

// GetByIDForUpdate fetches a wallet account by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WalletAccount, error) {
	query := `SELECT ` + walletColumns + ` FROM wallet_accounts WHERE id = $1 FOR UPDATE`

	w, err := scanWallet(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet for update: %w", err)
	}
	return w, nil
}

// UpdateBalances writes the primary balance and sub-balances within a
// transaction, bumping last_mutated_at.
func (r *WalletRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, w *domain.WalletAccount) error {
	subRaw, err := json.Marshal(w.SubBalances)
	if err != nil {
		return fmt.Errorf("marshaling sub balances: %w", err)
	}

	query := `UPDATE wallet_accounts
		SET balance = $1, sub_balances = $2, last_mutated_at = NOW(), updated_at = NOW()
		WHERE id = $3`

	tag, err := tx.Exec(ctx, query, w.Balance, subRaw, w.ID)
	if err != nil {
		return fmt.Errorf("update wallet balances: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", w.ID)
	}
	return nil
}

// SetLocked toggles the security lock on an account.
func (r *WalletRepo) SetLocked(ctx context.Context, id uuid.UUID, locked bool) error {
	query := `UPDATE wallet_accounts SET is_locked = $1, updated_at = NOW() WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, locked, id)
	if err != nil {
		return fmt.Errorf("set wallet locked: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", id)
	}
	return nil
}
