package service

import (
	"context"
	"testing"
	"time"

	"github.com/ruban1613/ibet/config"
	"github.com/ruban1613/ibet/internal/core/domain"
	"github.com/ruban1613/ibet/internal/core/ports"
	"github.com/ruban1613/ibet/internal/core/ports/mocks"
	"github.com/ruban1613/ibet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type walletTestDeps struct {
	svc        *WalletServiceImpl
	walletRepo *mocks.MockWalletRepository
	txRepo     *mocks.MockTransactionRepository
	transactor *mocks.MockDBTransactor
	recorder   *mocks.MockSecurityRecorder
	anomaly    *mocks.MockAnomalyDetector
	ctrl       *gomock.Controller
}

func setupWalletService(t *testing.T) *walletTestDeps {
	ctrl := gomock.NewController(t)
	d := &walletTestDeps{
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		recorder:   mocks.NewMockSecurityRecorder(ctrl),
		anomaly:    mocks.NewMockAnomalyDetector(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewWalletService(
		d.walletRepo, d.txRepo, d.transactor, d.recorder, d.anomaly,
		config.WalletConfig{LockTimeout: 3 * time.Second}, zerolog.Nop(),
	)
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}

func testAccount(persona domain.Persona) *domain.WalletAccount {
	acct := domain.NewWalletAccount(uuid.New(), persona)
	acct.Balance = 100000
	return acct
}

// ==================== Deposit Tests ====================

func TestWalletService_Deposit_Success(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	acct := testAccount(domain.PersonaStudent)
	actorID := acct.OwnerID
	tx := &mockTx{}

	d.anomaly.EXPECT().RecordAndCheck(ctx, actorID, ports.ActivityDeposit, "1.2.3.4").Return(false, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, acct.ID).Return(acct, nil)
	d.walletRepo.EXPECT().UpdateBalances(ctx, tx, acct).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.recorder.EXPECT().Record(ctx, actorID, domain.EventWalletAccess, gomock.Any(), "1.2.3.4")

	entry, err := d.svc.Deposit(ctx, ports.DepositRequest{
		AccountID:   acct.ID,
		Amount:      5000,
		Description: "salary",
		ActorID:     actorID,
		ClientIP:    "1.2.3.4",
	})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, domain.TransactionKindDeposit, entry.Kind)
	assert.Equal(t, int64(5000), entry.Amount)
	assert.Equal(t, int64(105000), entry.ResultingBalance)
	assert.Equal(t, int64(105000), acct.Balance)
}

func TestWalletService_Deposit_InvalidAmount(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	entry, err := d.svc.Deposit(context.Background(), ports.DepositRequest{
		AccountID: uuid.New(),
		Amount:    0,
		ActorID:   uuid.New(),
	})
	assert.Nil(t, entry)
	assertAppError(t, err, "WAL_001")
}

func TestWalletService_Deposit_FlaggedAsSuspicious(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	actorID := uuid.New()

	d.anomaly.EXPECT().RecordAndCheck(ctx, actorID, ports.ActivityDeposit, "1.2.3.4").Return(true, nil)

	entry, err := d.svc.Deposit(ctx, ports.DepositRequest{
		AccountID: uuid.New(),
		Amount:    5000,
		ActorID:   actorID,
		ClientIP:  "1.2.3.4",
	})
	assert.Nil(t, entry)
	assertAppError(t, err, "SEC_001")
}

// The lock blocks debits only; a locked wallet still accepts credits.
func TestWalletService_Deposit_LockedAccountStillCredits(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	acct := testAccount(domain.PersonaStudent)
	acct.IsLocked = true
	actorID := acct.OwnerID
	tx := &mockTx{}

	d.anomaly.EXPECT().RecordAndCheck(ctx, actorID, ports.ActivityDeposit, "").Return(false, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, acct.ID).Return(acct, nil)
	d.walletRepo.EXPECT().UpdateBalances(ctx, tx, acct).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.recorder.EXPECT().Record(ctx, actorID, domain.EventWalletAccess, gomock.Any(), "")

	entry, err := d.svc.Deposit(ctx, ports.DepositRequest{
		AccountID: acct.ID,
		Amount:    5000,
		ActorID:   actorID,
	})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(105000), acct.Balance)
}

// ==================== Withdraw Tests ====================

func TestWalletService_Withdraw_Success(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	acct := testAccount(domain.PersonaIndividual)
	acct.SpendLimit = 50000
	actorID := acct.OwnerID
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, acct.ID).Return(acct, nil)
	d.txRepo.EXPECT().SumWithdrawalsSince(ctx, tx, acct.ID, gomock.Any()).Return(int64(20000), nil)
	d.walletRepo.EXPECT().UpdateBalances(ctx, tx, acct).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.recorder.EXPECT().Record(ctx, actorID, domain.EventWalletAccess, gomock.Any(), "1.2.3.4")

	entry, err := d.svc.Withdraw(ctx, ports.WithdrawRequest{
		AccountID:   acct.ID,
		Amount:      10000,
		Description: "groceries",
		ActorID:     actorID,
		ClientIP:    "1.2.3.4",
	})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, domain.TransactionKindWithdrawal, entry.Kind)
	assert.Equal(t, int64(90000), entry.ResultingBalance)
	assert.False(t, entry.Essential)
}

func TestWalletService_Withdraw_InsufficientFunds(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	acct := testAccount(domain.PersonaStudent)
	acct.Balance = 500
	actorID := acct.OwnerID
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, acct.ID).Return(acct, nil)
	d.recorder.EXPECT().Record(ctx, actorID, domain.EventWalletAccess, gomock.Any(), "")
	d.anomaly.EXPECT().RecordAndCheck(ctx, actorID, ports.ActivityWithdrawalFailed, "").Return(false, nil)

	entry, err := d.svc.Withdraw(ctx, ports.WithdrawRequest{
		AccountID: acct.ID,
		Amount:    10000,
		ActorID:   actorID,
	})
	assert.Nil(t, entry)
	assertAppError(t, err, "WAL_002")
}

func TestWalletService_Withdraw_SpendLimitExceeded(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	acct := testAccount(domain.PersonaDailyWager)
	acct.SpendLimit = 30000
	actorID := acct.OwnerID
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, acct.ID).Return(acct, nil)
	d.txRepo.EXPECT().SumWithdrawalsSince(ctx, tx, acct.ID, gomock.Any()).Return(int64(25000), nil)
	d.recorder.EXPECT().Record(ctx, actorID, domain.EventWalletAccess, gomock.Any(), "")
	d.anomaly.EXPECT().RecordAndCheck(ctx, actorID, ports.ActivityWithdrawalFailed, "").Return(false, nil)

	entry, err := d.svc.Withdraw(ctx, ports.WithdrawRequest{
		AccountID: acct.ID,
		Amount:    10000,
		ActorID:   actorID,
	})
	assert.Nil(t, entry)
	assertAppError(t, err, "WAL_004")
	assert.Equal(t, int64(100000), acct.Balance)
}

func TestWalletService_Withdraw_EssentialBypassesSpendLimit(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	acct := testAccount(domain.PersonaDailyWager)
	acct.SpendLimit = 30000
	actorID := acct.OwnerID
	tx := &mockTx{}

	// No SumWithdrawalsSince expectation: the cap is not consulted.
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, acct.ID).Return(acct, nil)
	d.walletRepo.EXPECT().UpdateBalances(ctx, tx, acct).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.recorder.EXPECT().Record(ctx, actorID, domain.EventWalletAccess, gomock.Any(), "")

	entry, err := d.svc.Withdraw(ctx, ports.WithdrawRequest{
		AccountID: acct.ID,
		Amount:    40000,
		Essential: true,
		ActorID:   actorID,
	})
	require.NoError(t, err)
	assert.True(t, entry.Essential)
	assert.Equal(t, int64(60000), entry.ResultingBalance)
}

func TestWalletService_Withdraw_LockWaitExpired(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	actorID := uuid.New()
	tx := &mockTx{}

	lockErr := &pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"}
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, accountID).Return(nil, lockErr)
	d.recorder.EXPECT().Record(ctx, actorID, domain.EventWalletAccess, gomock.Any(), "")
	d.anomaly.EXPECT().RecordAndCheck(ctx, actorID, ports.ActivityWithdrawalFailed, "").Return(false, nil)

	entry, err := d.svc.Withdraw(ctx, ports.WithdrawRequest{
		AccountID: accountID,
		Amount:    1000,
		ActorID:   actorID,
	})
	assert.Nil(t, entry)
	assertAppError(t, err, "WAL_005")
}

// ==================== TransferInternal Tests ====================

func TestWalletService_TransferInternal_PrimaryToBucket(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	acct := testAccount(domain.PersonaCouple)
	actorID := acct.OwnerID
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, acct.ID).Return(acct, nil)
	d.walletRepo.EXPECT().UpdateBalances(ctx, tx, acct).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.recorder.EXPECT().Record(ctx, actorID, domain.EventFundTransfer, gomock.Any(), "1.2.3.4")

	entry, err := d.svc.TransferInternal(ctx, ports.TransferRequest{
		AccountID: acct.ID,
		Amount:    30000,
		ToBucket:  domain.BucketEmergencyFund,
		ActorID:   actorID,
		ClientIP:  "1.2.3.4",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionKindTransfer, entry.Kind)
	assert.Equal(t, int64(70000), acct.Balance)
	assert.Equal(t, int64(30000), acct.SubBalance(domain.BucketEmergencyFund))
	assert.Equal(t, int64(70000), entry.ResultingBalance)
}

func TestWalletService_TransferInternal_BucketToPrimary(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	acct := testAccount(domain.PersonaRetiree)
	acct.SubBalances[domain.BucketPensionFund] = 50000
	actorID := acct.OwnerID
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, acct.ID).Return(acct, nil)
	d.walletRepo.EXPECT().UpdateBalances(ctx, tx, acct).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.recorder.EXPECT().Record(ctx, actorID, domain.EventFundTransfer, gomock.Any(), "")

	entry, err := d.svc.TransferInternal(ctx, ports.TransferRequest{
		AccountID:  acct.ID,
		Amount:     20000,
		FromBucket: domain.BucketPensionFund,
		ActorID:    actorID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(120000), acct.Balance)
	assert.Equal(t, int64(30000), acct.SubBalance(domain.BucketPensionFund))
	assert.Equal(t, int64(120000), entry.ResultingBalance)
}

func TestWalletService_TransferInternal_UnknownBucket(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	acct := testAccount(domain.PersonaStudent)
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, acct.ID).Return(acct, nil)

	entry, err := d.svc.TransferInternal(ctx, ports.TransferRequest{
		AccountID: acct.ID,
		Amount:    1000,
		ToBucket:  domain.BucketPensionFund,
		ActorID:   acct.OwnerID,
	})
	assert.Nil(t, entry)
	assertAppError(t, err, "WAL_006")
}

func TestWalletService_TransferInternal_BothSidesNamed(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	entry, err := d.svc.TransferInternal(context.Background(), ports.TransferRequest{
		AccountID:  uuid.New(),
		Amount:     1000,
		FromBucket: domain.BucketEmergencyFund,
		ToBucket:   domain.BucketJointGoals,
		ActorID:    uuid.New(),
	})
	assert.Nil(t, entry)
	assertAppError(t, err, "VAL_001")
}

func TestWalletService_TransferInternal_InsufficientBucketFunds(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	acct := testAccount(domain.PersonaCouple)
	acct.SubBalances[domain.BucketJointGoals] = 100
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, acct.ID).Return(acct, nil)

	entry, err := d.svc.TransferInternal(ctx, ports.TransferRequest{
		AccountID:  acct.ID,
		Amount:     1000,
		FromBucket: domain.BucketJointGoals,
		ActorID:    acct.OwnerID,
	})
	assert.Nil(t, entry)
	assertAppError(t, err, "WAL_002")
}

// ==================== Balance / SetLocked Tests ====================

func TestWalletService_Balance_NotFound(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()

	d.walletRepo.EXPECT().GetByID(ctx, accountID).Return(nil, nil)

	acct, err := d.svc.Balance(ctx, accountID)
	assert.Nil(t, acct)
	assertAppError(t, err, "WAL_007")
}

func TestWalletService_SetLocked(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	acct := testAccount(domain.PersonaParent)
	actorID := uuid.New()

	d.walletRepo.EXPECT().GetByID(ctx, acct.ID).Return(acct, nil)
	d.walletRepo.EXPECT().SetLocked(ctx, acct.ID, true).Return(nil)
	d.recorder.EXPECT().Record(ctx, actorID, domain.EventWalletAccess, gomock.Any(), "9.9.9.9")

	err := d.svc.SetLocked(ctx, acct.ID, true, actorID, "9.9.9.9")
	require.NoError(t, err)
}
