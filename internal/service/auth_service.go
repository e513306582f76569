package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ruban1613/ibet/internal/core/domain"
	"github.com/ruban1613/ibet/internal/core/ports"
	"github.com/ruban1613/ibet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuthServiceImpl implements ports.AuthService. Registration provisions
// the user together with a persona-shaped wallet in one call.
type AuthServiceImpl struct {
	userRepo   ports.UserRepository
	walletRepo ports.WalletRepository
	hashSvc    ports.HashService
	tokenSvc   ports.TokenService
	recorder   ports.SecurityRecorder
	anomaly    ports.AnomalyDetector
	log        zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	userRepo ports.UserRepository,
	walletRepo ports.WalletRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	recorder ports.SecurityRecorder,
	anomaly ports.AnomalyDetector,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		userRepo:   userRepo,
		walletRepo: walletRepo,
		hashSvc:    hashSvc,
		tokenSvc:   tokenSvc,
		recorder:   recorder,
		anomaly:    anomaly,
		log:        log,
	}
}

// Register creates a user and provisions their wallet.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*ports.RegisterResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, apperror.Validation("Username and password are required")
	}
	if !domain.ValidPersona(req.Persona) {
		return nil, apperror.Validation(fmt.Sprintf("Unknown persona %q", req.Persona))
	}

	existing, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check username: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrUsernameExists()
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Username:     req.Username,
		PasswordHash: passwordHash,
		Persona:      req.Persona,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create user: %w", err))
	}

	wallet := domain.NewWalletAccount(user.ID, req.Persona)
	if err := s.walletRepo.Create(ctx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("wallet_id", wallet.ID.String()).
		Str("persona", string(req.Persona)).
		Msg("user registered")

	return &ports.RegisterResponse{UserID: user.ID, WalletID: wallet.ID}, nil
}

// Login verifies credentials and mints a JWT.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password, clientIP string) (string, time.Time, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("get user: %w", err))
	}
	if user == nil {
		// Unknown subject: audit against the nil ID but keep the
		// response indistinguishable from a wrong password.
		s.recorder.Record(ctx, uuid.Nil, domain.EventLoginFailed, map[string]any{
			"username": username,
			"reason":   "unknown_username",
		}, clientIP)
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	ok, err := s.hashSvc.Verify(password, user.PasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !ok {
		s.recorder.Record(ctx, user.ID, domain.EventLoginFailed, map[string]any{
			"username": username,
			"reason":   "wrong_password",
		}, clientIP)
		if flagged, err := s.anomaly.RecordAndCheck(ctx, user.ID, ports.ActivityLoginFailed, clientIP); err != nil {
			s.log.Warn().Err(err).Msg("login anomaly check failed")
		} else if flagged {
			s.log.Warn().Str("user_id", user.ID.String()).Msg("repeated login failures flagged")
		}
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiresAt, err := s.tokenSvc.Generate(user.ID, user.Persona)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	s.recorder.Record(ctx, user.ID, domain.EventLoginSuccess, map[string]any{
		"username": username,
	}, clientIP)

	return token, expiresAt, nil
}
