package service

import (
	"context"
	"testing"
	"time"

	"github.com/ruban1613/ibet/internal/core/domain"
	"github.com/ruban1613/ibet/internal/core/ports"
	"github.com/ruban1613/ibet/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type authTestDeps struct {
	svc        *AuthServiceImpl
	userRepo   *mocks.MockUserRepository
	walletRepo *mocks.MockWalletRepository
	hashSvc    *mocks.MockHashService
	tokenSvc   *mocks.MockTokenService
	recorder   *mocks.MockSecurityRecorder
	anomaly    *mocks.MockAnomalyDetector
	ctrl       *gomock.Controller
}

func setupAuthService(t *testing.T) *authTestDeps {
	ctrl := gomock.NewController(t)
	d := &authTestDeps{
		userRepo:   mocks.NewMockUserRepository(ctrl),
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		hashSvc:    mocks.NewMockHashService(ctrl),
		tokenSvc:   mocks.NewMockTokenService(ctrl),
		recorder:   mocks.NewMockSecurityRecorder(ctrl),
		anomaly:    mocks.NewMockAnomalyDetector(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewAuthService(
		d.userRepo, d.walletRepo, d.hashSvc, d.tokenSvc,
		d.recorder, d.anomaly, zerolog.Nop(),
	)
	return d
}

// ==================== Register Tests ====================

func TestAuthService_Register_Success(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	var createdUser *domain.User
	var createdWallet *domain.WalletAccount
	d.userRepo.EXPECT().GetByUsername(ctx, "priya").Return(nil, nil)
	d.hashSvc.EXPECT().Hash("s3cret-pass").Return("$argon2id$hash", nil)
	d.userRepo.EXPECT().Create(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, u *domain.User) error {
			createdUser = u
			return nil
		})
	d.walletRepo.EXPECT().Create(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, w *domain.WalletAccount) error {
			createdWallet = w
			return nil
		})

	resp, err := d.svc.Register(ctx, ports.RegisterRequest{
		Username: "priya",
		Password: "s3cret-pass",
		Persona:  domain.PersonaCouple,
	})
	require.NoError(t, err)
	require.NotNil(t, resp)

	require.NotNil(t, createdUser)
	assert.Equal(t, resp.UserID, createdUser.ID)
	assert.Equal(t, "$argon2id$hash", createdUser.PasswordHash)

	require.NotNil(t, createdWallet)
	assert.Equal(t, resp.WalletID, createdWallet.ID)
	assert.Equal(t, createdUser.ID, createdWallet.OwnerID)
	assert.Equal(t, domain.PersonaCouple, createdWallet.Persona)
	assert.Contains(t, createdWallet.SubBalances, domain.BucketEmergencyFund)
	assert.Contains(t, createdWallet.SubBalances, domain.BucketJointGoals)
}

func TestAuthService_Register_UnknownPersona(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	resp, err := d.svc.Register(context.Background(), ports.RegisterRequest{
		Username: "bob",
		Password: "pass",
		Persona:  "ASTRONAUT",
	})
	assert.Nil(t, resp)
	assertAppError(t, err, "VAL_001")
}

func TestAuthService_Register_UsernameExists(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.userRepo.EXPECT().GetByUsername(ctx, "priya").Return(&domain.User{ID: uuid.New()}, nil)

	resp, err := d.svc.Register(ctx, ports.RegisterRequest{
		Username: "priya",
		Password: "pass",
		Persona:  domain.PersonaStudent,
	})
	assert.Nil(t, resp)
	assertAppError(t, err, "AUTH_002")
}

// ==================== Login Tests ====================

func TestAuthService_Login_Success(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	user := &domain.User{
		ID:           uuid.New(),
		Username:     "priya",
		PasswordHash: "$argon2id$hash",
		Persona:      domain.PersonaRetiree,
	}
	expiry := time.Now().Add(24 * time.Hour)

	d.userRepo.EXPECT().GetByUsername(ctx, "priya").Return(user, nil)
	d.hashSvc.EXPECT().Verify("s3cret-pass", "$argon2id$hash").Return(true, nil)
	d.tokenSvc.EXPECT().Generate(user.ID, domain.PersonaRetiree).Return("jwt-token", expiry, nil)
	d.recorder.EXPECT().Record(ctx, user.ID, domain.EventLoginSuccess, gomock.Any(), "1.2.3.4")

	token, expiresAt, err := d.svc.Login(ctx, "priya", "s3cret-pass", "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)
	assert.Equal(t, expiry, expiresAt)
}

func TestAuthService_Login_UnknownUsername(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.userRepo.EXPECT().GetByUsername(ctx, "ghost").Return(nil, nil)
	d.recorder.EXPECT().Record(ctx, uuid.Nil, domain.EventLoginFailed, gomock.Any(), "")

	token, _, err := d.svc.Login(ctx, "ghost", "pass", "")
	assert.Empty(t, token)
	assertAppError(t, err, "AUTH_001")
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	user := &domain.User{
		ID:           uuid.New(),
		Username:     "priya",
		PasswordHash: "$argon2id$hash",
		Persona:      domain.PersonaStudent,
	}

	d.userRepo.EXPECT().GetByUsername(ctx, "priya").Return(user, nil)
	d.hashSvc.EXPECT().Verify("wrong", "$argon2id$hash").Return(false, nil)
	d.recorder.EXPECT().Record(ctx, user.ID, domain.EventLoginFailed, gomock.Any(), "1.2.3.4")
	d.anomaly.EXPECT().RecordAndCheck(ctx, user.ID, ports.ActivityLoginFailed, "1.2.3.4").Return(false, nil)

	token, _, err := d.svc.Login(ctx, "priya", "wrong", "1.2.3.4")
	assert.Empty(t, token)
	assertAppError(t, err, "AUTH_001")
}
