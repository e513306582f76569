package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ruban1613/ibet/config"
	"github.com/ruban1613/ibet/internal/core/domain"
	"github.com/ruban1613/ibet/internal/core/ports"
	"github.com/ruban1613/ibet/internal/metrics"
	"github.com/ruban1613/ibet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// pgLockNotAvailable is the SQLSTATE raised when lock_timeout expires.
const pgLockNotAvailable = "55P03"

// WalletServiceImpl implements ports.WalletService. Every mutation runs
// inside a single database transaction that holds a row lock on the
// account, so concurrent mutations of one wallet serialize and the
// balance arithmetic never races.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	transactor ports.DBTransactor
	recorder   ports.SecurityRecorder
	anomaly    ports.AnomalyDetector
	cfg        config.WalletConfig
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	recorder ports.SecurityRecorder,
	anomaly ports.AnomalyDetector,
	cfg config.WalletConfig,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		transactor: transactor,
		recorder:   recorder,
		anomaly:    anomaly,
		cfg:        cfg,
		log:        log,
	}
}

// Deposit credits the primary balance.
func (s *WalletServiceImpl) Deposit(ctx context.Context, req ports.DepositRequest) (*domain.WalletTransaction, error) {
	outcome := "error"
	defer metrics.ObserveWalletOp("deposit", &outcome)()

	if req.Amount <= 0 {
		outcome = "rejected"
		return nil, apperror.ErrInvalidAmount()
	}

	// Rapid-fire deposits are a laundering signal; block once flagged.
	flagged, err := s.anomaly.RecordAndCheck(ctx, req.ActorID, ports.ActivityDeposit, req.ClientIP)
	if err != nil {
		s.log.Warn().Err(err).Msg("deposit anomaly check failed")
	}
	if flagged {
		outcome = "rejected"
		return nil, apperror.ErrSuspiciousActivity()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	account, err := s.lockAccount(ctx, dbTx, req.AccountID)
	if err != nil {
		return nil, err
	}

	// The lock freezes debits only; credits stay open so a frozen wallet
	// can still receive funds.
	account.Balance += req.Amount

	entry := s.newEntry(account, domain.TransactionKindDeposit, req.Amount, req.Description, req.ActorID)
	if err := s.commitMutation(ctx, dbTx, account, entry); err != nil {
		return nil, err
	}

	outcome = "success"
	s.recorder.Record(ctx, req.ActorID, domain.EventWalletAccess, map[string]any{
		"operation":      "deposit",
		"account_id":     account.ID.String(),
		"amount":         req.Amount,
		"transaction_id": entry.ID.String(),
	}, req.ClientIP)

	s.log.Info().
		Str("tx_id", entry.ID.String()).
		Str("account_id", account.ID.String()).
		Int64("amount", req.Amount).
		Msg("deposit processed")

	return entry, nil
}

// Withdraw debits the primary balance, enforcing the lock flag, the
// available balance, and the persona's rolling spend cap.
func (s *WalletServiceImpl) Withdraw(ctx context.Context, req ports.WithdrawRequest) (*domain.WalletTransaction, error) {
	outcome := "error"
	defer metrics.ObserveWalletOp("withdraw", &outcome)()

	entry, err := s.withdraw(ctx, req)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code != "SYS_001" {
			outcome = "rejected"
			s.recordRejection(ctx, req.ActorID, req.AccountID, "withdraw", appErr.Code, req.ClientIP)
			s.noteFailedWithdrawal(ctx, req.ActorID, req.ClientIP)
		}
		return nil, err
	}

	outcome = "success"
	s.recorder.Record(ctx, req.ActorID, domain.EventWalletAccess, map[string]any{
		"operation":      "withdraw",
		"account_id":     req.AccountID.String(),
		"amount":         req.Amount,
		"essential":      req.Essential,
		"transaction_id": entry.ID.String(),
	}, req.ClientIP)

	s.log.Info().
		Str("tx_id", entry.ID.String()).
		Str("account_id", req.AccountID.String()).
		Int64("amount", req.Amount).
		Bool("essential", req.Essential).
		Msg("withdrawal processed")

	return entry, nil
}

func (s *WalletServiceImpl) withdraw(ctx context.Context, req ports.WithdrawRequest) (*domain.WalletTransaction, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	account, err := s.lockAccount(ctx, dbTx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if account.IsLocked {
		return nil, apperror.ErrAccountLocked()
	}
	if account.Balance < req.Amount {
		return nil, apperror.ErrInsufficientFunds()
	}

	// Rolling spend cap: non-essential withdrawals within the persona's
	// period may not exceed the per-wallet limit. Summed under the row
	// lock so two concurrent withdrawals cannot both squeeze under it.
	policy := domain.PolicyFor(account.Persona)
	if !req.Essential && account.SpendLimit > 0 && policy.HasSpendLimit() {
		since := time.Now().UTC().Add(-policy.SpendPeriod)
		spent, err := s.txRepo.SumWithdrawalsSince(ctx, dbTx, account.ID, since)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("sum recent withdrawals: %w", err))
		}
		if spent+req.Amount > account.SpendLimit {
			return nil, apperror.ErrLimitExceeded()
		}
	}

	account.Balance -= req.Amount

	entry := s.newEntry(account, domain.TransactionKindWithdrawal, req.Amount, req.Description, req.ActorID)
	entry.Essential = req.Essential
	if err := s.commitMutation(ctx, dbTx, account, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// TransferInternal moves funds between the primary balance and one of
// the wallet's sub-balance buckets. Exactly one side names a bucket;
// the other (empty) side is the primary balance.
func (s *WalletServiceImpl) TransferInternal(ctx context.Context, req ports.TransferRequest) (*domain.WalletTransaction, error) {
	outcome := "error"
	defer metrics.ObserveWalletOp("transfer", &outcome)()

	if req.Amount <= 0 {
		outcome = "rejected"
		return nil, apperror.ErrInvalidAmount()
	}
	if (req.FromBucket == "") == (req.ToBucket == "") {
		outcome = "rejected"
		return nil, apperror.Validation("Exactly one of from_bucket and to_bucket must be set")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	account, err := s.lockAccount(ctx, dbTx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if account.IsLocked {
		outcome = "rejected"
		s.recordRejection(ctx, req.ActorID, account.ID, "transfer", "WAL_003", req.ClientIP)
		return nil, apperror.ErrAccountLocked()
	}

	policy := domain.PolicyFor(account.Persona)
	bucket := req.FromBucket
	if bucket == "" {
		bucket = req.ToBucket
	}
	if !policy.HasBucket(bucket) {
		outcome = "rejected"
		return nil, apperror.ErrUnknownBucket(bucket)
	}

	if req.FromBucket == "" {
		// primary -> bucket
		if account.Balance < req.Amount {
			outcome = "rejected"
			return nil, apperror.ErrInsufficientFunds()
		}
		account.Balance -= req.Amount
		account.SubBalances[bucket] += req.Amount
	} else {
		// bucket -> primary
		if account.SubBalance(bucket) < req.Amount {
			outcome = "rejected"
			return nil, apperror.ErrInsufficientFunds()
		}
		account.SubBalances[bucket] -= req.Amount
		account.Balance += req.Amount
	}

	entry := s.newEntry(account, domain.TransactionKindTransfer, req.Amount, req.Description, req.ActorID)
	entry.FromBucket = req.FromBucket
	entry.ToBucket = req.ToBucket
	if err := s.commitMutation(ctx, dbTx, account, entry); err != nil {
		return nil, err
	}

	outcome = "success"
	s.recorder.Record(ctx, req.ActorID, domain.EventFundTransfer, map[string]any{
		"account_id":     account.ID.String(),
		"amount":         req.Amount,
		"from_bucket":    req.FromBucket,
		"to_bucket":      req.ToBucket,
		"transaction_id": entry.ID.String(),
	}, req.ClientIP)

	s.log.Info().
		Str("tx_id", entry.ID.String()).
		Str("account_id", account.ID.String()).
		Int64("amount", req.Amount).
		Str("from_bucket", req.FromBucket).
		Str("to_bucket", req.ToBucket).
		Msg("internal transfer processed")

	return entry, nil
}

// Balance returns the current account snapshot.
func (s *WalletServiceImpl) Balance(ctx context.Context, accountID uuid.UUID) (*domain.WalletAccount, error) {
	account, err := s.walletRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return account, nil
}

// Transactions lists ledger entries for an account, newest first.
func (s *WalletServiceImpl) Transactions(ctx context.Context, params ports.TransactionListParams) ([]domain.WalletTransaction, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}
	entries, total, err := s.txRepo.ListByAccount(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return entries, total, nil
}

// SetLocked flips the wallet lock flag. Locking is idempotent.
func (s *WalletServiceImpl) SetLocked(ctx context.Context, accountID uuid.UUID, locked bool, actorID uuid.UUID, clientIP string) error {
	account, err := s.walletRepo.GetByID(ctx, accountID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if account == nil {
		return apperror.ErrNotFound("wallet")
	}

	if err := s.walletRepo.SetLocked(ctx, accountID, locked); err != nil {
		return apperror.InternalError(fmt.Errorf("set wallet lock: %w", err))
	}

	operation := "unlock"
	if locked {
		operation = "lock"
	}
	s.recorder.Record(ctx, actorID, domain.EventWalletAccess, map[string]any{
		"operation":  operation,
		"account_id": accountID.String(),
	}, clientIP)

	s.log.Info().
		Str("account_id", accountID.String()).
		Bool("locked", locked).
		Msg("wallet lock flag updated")

	return nil
}

// lockAccount bounds the lock wait, then acquires the row lock. A lock
// timeout surfaces as WAL_005 so the client knows to retry.
func (s *WalletServiceImpl) lockAccount(ctx context.Context, dbTx pgx.Tx, accountID uuid.UUID) (*domain.WalletAccount, error) {
	lockMillis := s.cfg.LockTimeout.Milliseconds()
	if lockMillis <= 0 {
		lockMillis = 3000
	}
	if _, err := dbTx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", lockMillis)); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("set lock timeout: %w", err))
	}

	account, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, accountID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
			return nil, apperror.ErrWalletBusy(err)
		}
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return account, nil
}

// newEntry builds a ledger entry carrying the post-mutation balance.
func (s *WalletServiceImpl) newEntry(account *domain.WalletAccount, kind domain.TransactionKind, amount int64, description string, actorID uuid.UUID) *domain.WalletTransaction {
	return &domain.WalletTransaction{
		ID:               uuid.New(),
		AccountID:        account.ID,
		Kind:             kind,
		Amount:           amount,
		Description:      description,
		ActorID:          actorID,
		ResultingBalance: account.Balance,
		CreatedAt:        time.Now().UTC(),
	}
}

// commitMutation persists the mutated balances and the ledger entry,
// then commits. The entry row and the balance update land atomically.
func (s *WalletServiceImpl) commitMutation(ctx context.Context, dbTx pgx.Tx, account *domain.WalletAccount, entry *domain.WalletTransaction) error {
	if err := s.walletRepo.UpdateBalances(ctx, dbTx, account); err != nil {
		return apperror.InternalError(fmt.Errorf("update balances: %w", err))
	}
	if err := s.txRepo.Create(ctx, dbTx, entry); err != nil {
		return apperror.InternalError(fmt.Errorf("create ledger entry: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// recordRejection notes a typed rejection in the audit trail.
func (s *WalletServiceImpl) recordRejection(ctx context.Context, actorID, accountID uuid.UUID, operation, code, clientIP string) {
	s.recorder.Record(ctx, actorID, domain.EventWalletAccess, map[string]any{
		"operation":  operation,
		"account_id": accountID.String(),
		"rejected":   code,
	}, clientIP)
}

// noteFailedWithdrawal feeds the anomaly detector; the flag itself is
// recorded by the detector, the current rejection stands either way.
func (s *WalletServiceImpl) noteFailedWithdrawal(ctx context.Context, actorID uuid.UUID, clientIP string) {
	if _, err := s.anomaly.RecordAndCheck(ctx, actorID, ports.ActivityWithdrawalFailed, clientIP); err != nil {
		s.log.Warn().Err(err).Msg("withdrawal anomaly check failed")
	}
}
