package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ruban1613/ibet/internal/adapter/http/dto"
	"github.com/ruban1613/ibet/internal/adapter/http/middleware"
	"github.com/ruban1613/ibet/internal/core/domain"
	"github.com/ruban1613/ibet/internal/core/ports"
	"github.com/ruban1613/ibet/internal/core/ports/mocks"
	"github.com/ruban1613/ibet/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func jsonRequest(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, bytes.NewReader(raw))
	c.Request.Header.Set("Content-Type", "application/json")
	return w, c
}

func authenticate(c *gin.Context, uid uuid.UUID) {
	c.Set(middleware.CtxUserID, uid)
	c.Set(middleware.CtxPersona, domain.PersonaIndividual)
}

// --- Auth Handler Tests ---

func TestRegister_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	userID := uuid.New()
	walletID := uuid.New()
	mockAuth.EXPECT().Register(gomock.Any(), ports.RegisterRequest{
		Username: "testuser",
		Password: "password123",
		Persona:  domain.PersonaCouple,
	}).Return(&ports.RegisterResponse{
		UserID:   userID,
		WalletID: walletID,
	}, nil)

	w, c := jsonRequest(t, http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		Username: "testuser",
		Password: "password123",
		Persona:  "COUPLE",
	})

	h.Register(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, userID.String(), data["user_id"])
	assert.Equal(t, walletID.String(), data["wallet_id"])
}

func TestRegister_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewAuthHandler(mocks.NewMockAuthService(ctrl))

	// Empty body => binding error
	w, c := jsonRequest(t, http.MethodPost, "/api/v1/auth/register", map[string]any{})

	h.Register(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister_UnknownPersonaRejectedByBinding(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewAuthHandler(mocks.NewMockAuthService(ctrl))

	w, c := jsonRequest(t, http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		Username: "testuser",
		Password: "password123",
		Persona:  "ASTRONAUT",
	})

	h.Register(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister_ServiceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrUsernameExists())

	w, c := jsonRequest(t, http.MethodPost, "/", dto.RegisterRequest{
		Username: "taken",
		Password: "password123",
		Persona:  "STUDENT",
	})

	h.Register(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogin_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	expiry := time.Now().Add(24 * time.Hour)
	mockAuth.EXPECT().Login(gomock.Any(), "testuser", "password123", gomock.Any()).
		Return("jwt-token", expiry, nil)

	w, c := jsonRequest(t, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Username: "testuser",
		Password: "password123",
	})

	h.Login(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "jwt-token", data["token"])
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Login(gomock.Any(), "testuser", "wrong", gomock.Any()).
		Return("", time.Time{}, apperror.ErrInvalidCredentials())

	w, c := jsonRequest(t, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Username: "testuser",
		Password: "wrong",
	})

	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- OTP Handler Tests ---

func TestOTPRequest_CodeNeverInResponse(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOTP := mocks.NewMockOTPService(ctrl)
	mockSender := mocks.NewMockOTPSender(ctrl)
	h := NewOTPHandler(mockOTP, mockSender, zerolog.Nop())

	uid := uuid.New()
	mockOTP.EXPECT().Issue(gomock.Any(), uid, domain.OTPPurposeWithdrawal, gomock.Any()).
		Return(&ports.OTPIssueResult{
			ChallengeKey: "challenge-key-1",
			Code:         "482913",
			ExpiresAt:    time.Now().Add(10 * time.Minute),
		}, nil)
	mockSender.EXPECT().Send(gomock.Any(), uid, "482913").Return(nil)

	w, c := jsonRequest(t, http.MethodPost, "/api/v1/otp/request", dto.OTPRequestRequest{Purpose: "WITHDRAWAL"})
	authenticate(c, uid)

	h.Request(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "challenge-key-1")
	assert.NotContains(t, w.Body.String(), "482913", "raw code must never appear in the response")
}

func TestOTPRequest_Unauthenticated(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewOTPHandler(mocks.NewMockOTPService(ctrl), nil, zerolog.Nop())

	w, c := jsonRequest(t, http.MethodPost, "/api/v1/otp/request", dto.OTPRequestRequest{Purpose: "WITHDRAWAL"})

	h.Request(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOTPRequest_RateLimited(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOTP := mocks.NewMockOTPService(ctrl)
	h := NewOTPHandler(mockOTP, nil, zerolog.Nop())

	uid := uuid.New()
	mockOTP.EXPECT().Issue(gomock.Any(), uid, domain.OTPPurposeTransfer, gomock.Any()).
		Return(nil, apperror.ErrRateLimited(120))

	w, c := jsonRequest(t, http.MethodPost, "/api/v1/otp/request", dto.OTPRequestRequest{Purpose: "TRANSFER"})
	authenticate(c, uid)

	h.Request(c)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestOTPVerify_Failed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOTP := mocks.NewMockOTPService(ctrl)
	h := NewOTPHandler(mockOTP, nil, zerolog.Nop())

	uid := uuid.New()
	mockOTP.EXPECT().Verify(gomock.Any(), uid, "ck", "000000", gomock.Any()).
		Return(&ports.OTPVerifyResult{
			OK:                false,
			Reason:            ports.OTPReasonInvalid,
			RemainingAttempts: 1,
		}, nil)

	w, c := jsonRequest(t, http.MethodPost, "/api/v1/otp/verify", dto.OTPVerifyRequest{
		ChallengeKey: "ck",
		Code:         "000000",
	})
	authenticate(c, uid)

	h.Verify(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, false, data["verified"])
	assert.Equal(t, "INVALID", data["reason"])
}

// --- Wallet Handler Tests ---

func walletHandlerMocks(ctrl *gomock.Controller) (*WalletHandler, *mocks.MockWalletService, *mocks.MockOTPService, *mocks.MockWalletRepository) {
	walletSvc := mocks.NewMockWalletService(ctrl)
	otpSvc := mocks.NewMockOTPService(ctrl)
	walletRepo := mocks.NewMockWalletRepository(ctrl)
	return NewWalletHandler(walletSvc, otpSvc, walletRepo), walletSvc, otpSvc, walletRepo
}

func TestWalletBalance_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h, _, _, walletRepo := walletHandlerMocks(ctrl)

	uid := uuid.New()
	acct := domain.NewWalletAccount(uid, domain.PersonaCouple)
	acct.Balance = 42000
	walletRepo.EXPECT().GetByOwnerID(gomock.Any(), uid).Return(acct, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil)
	authenticate(c, uid)

	h.Balance(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(42000), data["balance"])
	assert.Equal(t, "COUPLE", data["persona"])
}

func TestWalletDeposit_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h, walletSvc, _, walletRepo := walletHandlerMocks(ctrl)

	uid := uuid.New()
	acct := domain.NewWalletAccount(uid, domain.PersonaStudent)
	walletRepo.EXPECT().GetByOwnerID(gomock.Any(), uid).Return(acct, nil)
	walletSvc.EXPECT().Deposit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ports.DepositRequest) (*domain.WalletTransaction, error) {
			assert.Equal(t, acct.ID, req.AccountID)
			assert.Equal(t, int64(5000), req.Amount)
			assert.Equal(t, uid, req.ActorID)
			return &domain.WalletTransaction{
				ID:               uuid.New(),
				AccountID:        acct.ID,
				Kind:             domain.TransactionKindDeposit,
				Amount:           5000,
				ResultingBalance: 5000,
				CreatedAt:        time.Now().UTC(),
			}, nil
		})

	w, c := jsonRequest(t, http.MethodPost, "/api/v1/wallet/deposit", dto.DepositRequest{Amount: 5000})
	authenticate(c, uid)

	h.Deposit(c)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestWalletWithdraw_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h, walletSvc, otpSvc, walletRepo := walletHandlerMocks(ctrl)

	uid := uuid.New()
	acct := domain.NewWalletAccount(uid, domain.PersonaIndividual)

	otpSvc.EXPECT().Verify(gomock.Any(), uid, "ck", "482913", gomock.Any()).
		Return(&ports.OTPVerifyResult{OK: true, Purpose: domain.OTPPurposeWithdrawal}, nil)
	walletRepo.EXPECT().GetByOwnerID(gomock.Any(), uid).Return(acct, nil)
	walletSvc.EXPECT().Withdraw(gomock.Any(), gomock.Any()).
		Return(&domain.WalletTransaction{
			ID:               uuid.New(),
			AccountID:        acct.ID,
			Kind:             domain.TransactionKindWithdrawal,
			Amount:           3000,
			ResultingBalance: 7000,
			CreatedAt:        time.Now().UTC(),
		}, nil)

	w, c := jsonRequest(t, http.MethodPost, "/api/v1/wallet/withdraw", dto.WithdrawRequest{
		Amount:       3000,
		ChallengeKey: "ck",
		Code:         "482913",
	})
	authenticate(c, uid)

	h.Withdraw(c)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestWalletWithdraw_WrongPurposeChallenge(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h, _, otpSvc, _ := walletHandlerMocks(ctrl)

	uid := uuid.New()
	otpSvc.EXPECT().Verify(gomock.Any(), uid, "ck", "482913", gomock.Any()).
		Return(&ports.OTPVerifyResult{OK: true, Purpose: domain.OTPPurposeTransfer}, nil)

	w, c := jsonRequest(t, http.MethodPost, "/api/v1/wallet/withdraw", dto.WithdrawRequest{
		Amount:       3000,
		ChallengeKey: "ck",
		Code:         "482913",
	})
	authenticate(c, uid)

	h.Withdraw(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "OTP_001")
}

func TestWalletWithdraw_InvalidCode(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h, _, otpSvc, _ := walletHandlerMocks(ctrl)

	uid := uuid.New()
	otpSvc.EXPECT().Verify(gomock.Any(), uid, "ck", "000000", gomock.Any()).
		Return(&ports.OTPVerifyResult{
			OK:                false,
			Reason:            ports.OTPReasonInvalid,
			RemainingAttempts: 2,
		}, nil)

	w, c := jsonRequest(t, http.MethodPost, "/api/v1/wallet/withdraw", dto.WithdrawRequest{
		Amount:       3000,
		ChallengeKey: "ck",
		Code:         "000000",
	})
	authenticate(c, uid)

	h.Withdraw(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "OTP_004")
}

func TestWalletTransfer_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h, walletSvc, otpSvc, walletRepo := walletHandlerMocks(ctrl)

	uid := uuid.New()
	acct := domain.NewWalletAccount(uid, domain.PersonaCouple)

	otpSvc.EXPECT().Verify(gomock.Any(), uid, "ck", "482913", gomock.Any()).
		Return(&ports.OTPVerifyResult{OK: true, Purpose: domain.OTPPurposeTransfer}, nil)
	walletRepo.EXPECT().GetByOwnerID(gomock.Any(), uid).Return(acct, nil)
	walletSvc.EXPECT().TransferInternal(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ports.TransferRequest) (*domain.WalletTransaction, error) {
			assert.Equal(t, domain.BucketJointGoals, req.ToBucket)
			return &domain.WalletTransaction{
				ID:        uuid.New(),
				AccountID: acct.ID,
				Kind:      domain.TransactionKindTransfer,
				Amount:    1000,
				ToBucket:  domain.BucketJointGoals,
				CreatedAt: time.Now().UTC(),
			}, nil
		})

	w, c := jsonRequest(t, http.MethodPost, "/api/v1/wallet/transfer", dto.TransferRequest{
		Amount:       1000,
		ToBucket:     domain.BucketJointGoals,
		ChallengeKey: "ck",
		Code:         "482913",
	})
	authenticate(c, uid)

	h.Transfer(c)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestWalletUnlock_RequiresChallenge(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h, _, _, _ := walletHandlerMocks(ctrl)

	uid := uuid.New()
	w, c := jsonRequest(t, http.MethodPut, "/api/v1/wallet/lock", dto.LockRequest{Locked: false})
	authenticate(c, uid)

	h.SetLock(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWalletLock_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h, walletSvc, _, walletRepo := walletHandlerMocks(ctrl)

	uid := uuid.New()
	acct := domain.NewWalletAccount(uid, domain.PersonaParent)
	walletRepo.EXPECT().GetByOwnerID(gomock.Any(), uid).Return(acct, nil)
	walletSvc.EXPECT().SetLocked(gomock.Any(), acct.ID, true, uid, gomock.Any()).Return(nil)

	w, c := jsonRequest(t, http.MethodPut, "/api/v1/wallet/lock", dto.LockRequest{Locked: true})
	authenticate(c, uid)

	h.SetLock(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

// --- Security Handler Tests ---

func TestSecurityEvents_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	recorder := mocks.NewMockSecurityRecorder(ctrl)
	h := NewSecurityHandler(recorder)

	uid := uuid.New()
	recorder.EXPECT().Recent(gomock.Any(), uid, 50).Return([]domain.SecurityEvent{
		{
			ID:        uuid.New(),
			SubjectID: uid,
			Type:      domain.EventWalletAccess,
			Severity:  domain.SeverityInfo,
			CreatedAt: time.Now().UTC(),
		},
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/security/events", nil)
	authenticate(c, uid)

	h.Events(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "wallet_access")
}

// --- Health Handler Tests ---

type fakeChecker struct {
	name string
	err  error
}

func (f fakeChecker) Ping(_ context.Context) error { return f.err }
func (f fakeChecker) Name() string                 { return f.name }

func TestHealthCheck_AllHealthy(t *testing.T) {
	healthy := fakeChecker{name: "postgresql"}
	alsoHealthy := fakeChecker{name: "redis"}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(healthy, alsoHealthy)(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestHealthCheck_Degraded(t *testing.T) {
	healthy := fakeChecker{name: "postgresql"}
	broken := fakeChecker{name: "redis", err: errors.New("connection refused")}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(healthy, broken)(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
}
