package handler

import (
	"strconv"
	"time"

	"github.com/ruban1613/ibet/internal/adapter/http/dto"
	"github.com/ruban1613/ibet/internal/core/domain"
	"github.com/ruban1613/ibet/internal/core/ports"
	"github.com/ruban1613/ibet/pkg/apperror"
	"github.com/ruban1613/ibet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles ledger endpoints. Withdrawals, transfers and
// unlocks are challenge-gated: the request carries a challenge key and
// code that are verified (and consumed) before the ledger mutates.
type WalletHandler struct {
	walletSvc  ports.WalletService
	otpSvc     ports.OTPService
	walletRepo ports.WalletRepository
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, otpSvc ports.OTPService, walletRepo ports.WalletRepository) *WalletHandler {
	return &WalletHandler{
		walletSvc:  walletSvc,
		otpSvc:     otpSvc,
		walletRepo: walletRepo,
	}
}

// Balance handles GET /api/v1/wallet.
func (h *WalletHandler) Balance(c *gin.Context) {
	uid, ok := subjectID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	account, err := h.resolveWallet(c, uid)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toWalletResponse(account))
}

// Deposit handles POST /api/v1/wallet/deposit.
func (h *WalletHandler) Deposit(c *gin.Context) {
	uid, ok := subjectID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	account, err := h.resolveWallet(c, uid)
	if err != nil {
		response.Error(c, err)
		return
	}

	entry, err := h.walletSvc.Deposit(c.Request.Context(), ports.DepositRequest{
		AccountID:   account.ID,
		Amount:      req.Amount,
		Description: req.Description,
		ActorID:     uid,
		ClientIP:    c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(entry))
}

// Withdraw handles POST /api/v1/wallet/withdraw.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	uid, ok := subjectID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	if err := h.authorize(c, uid, req.ChallengeKey, req.Code, domain.OTPPurposeWithdrawal); err != nil {
		response.Error(c, err)
		return
	}

	account, err := h.resolveWallet(c, uid)
	if err != nil {
		response.Error(c, err)
		return
	}

	entry, err := h.walletSvc.Withdraw(c.Request.Context(), ports.WithdrawRequest{
		AccountID:   account.ID,
		Amount:      req.Amount,
		Description: req.Description,
		Essential:   req.Essential,
		ActorID:     uid,
		ClientIP:    c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(entry))
}

// Transfer handles POST /api/v1/wallet/transfer.
func (h *WalletHandler) Transfer(c *gin.Context) {
	uid, ok := subjectID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	if err := h.authorize(c, uid, req.ChallengeKey, req.Code, domain.OTPPurposeTransfer); err != nil {
		response.Error(c, err)
		return
	}

	account, err := h.resolveWallet(c, uid)
	if err != nil {
		response.Error(c, err)
		return
	}

	entry, err := h.walletSvc.TransferInternal(c.Request.Context(), ports.TransferRequest{
		AccountID:   account.ID,
		Amount:      req.Amount,
		FromBucket:  req.FromBucket,
		ToBucket:    req.ToBucket,
		Description: req.Description,
		ActorID:     uid,
		ClientIP:    c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(entry))
}

// Transactions handles GET /api/v1/wallet/transactions.
func (h *WalletHandler) Transactions(c *gin.Context) {
	uid, ok := subjectID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	account, err := h.resolveWallet(c, uid)
	if err != nil {
		response.Error(c, err)
		return
	}

	params := ports.TransactionListParams{
		AccountID: account.ID,
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 20),
	}
	if k := c.Query("kind"); k != "" {
		kind := domain.TransactionKind(k)
		params.Kind = &kind
	}
	if from, err := strconv.ParseInt(c.Query("from"), 10, 64); err == nil {
		params.From = &from
	}
	if to, err := strconv.ParseInt(c.Query("to"), 10, 64); err == nil {
		params.To = &to
	}

	entries, total, err := h.walletSvc.Transactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(entries))
	for i := range entries {
		items = append(items, toTransactionResponse(&entries[i]))
	}

	totalPages := int((total + int64(params.PageSize) - 1) / int64(params.PageSize))
	response.OK(c, dto.TransactionListResponse{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	})
}

// SetLock handles PUT /api/v1/wallet/lock. Locking a wallet is always
// allowed; unlocking requires a verified UNLOCK challenge.
func (h *WalletHandler) SetLock(c *gin.Context) {
	uid, ok := subjectID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.LockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if !req.Locked {
		if req.ChallengeKey == "" || req.Code == "" {
			response.Error(c, apperror.Validation("Unlocking requires challenge_key and code"))
			return
		}
		if err := h.authorize(c, uid, req.ChallengeKey, req.Code, domain.OTPPurposeUnlock); err != nil {
			response.Error(c, err)
			return
		}
	}

	account, err := h.resolveWallet(c, uid)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.walletSvc.SetLocked(c.Request.Context(), account.ID, req.Locked, uid, c.ClientIP()); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"locked": req.Locked})
}

// authorize verifies (and consumes) the challenge gating an operation.
// A challenge issued for a different purpose is treated as absent.
func (h *WalletHandler) authorize(c *gin.Context, uid uuid.UUID, key, code string, purpose domain.OTPPurpose) error {
	result, err := h.otpSvc.Verify(c.Request.Context(), uid, key, code, c.ClientIP())
	if err != nil {
		return err
	}
	if result.OK {
		if result.Purpose != purpose {
			return apperror.ErrChallengeNotFound()
		}
		return nil
	}
	switch result.Reason {
	case ports.OTPReasonExpired:
		return apperror.ErrChallengeExpired()
	case ports.OTPReasonExhausted:
		return apperror.ErrChallengeExhausted()
	case ports.OTPReasonInvalid:
		return apperror.ErrChallengeMismatch(result.RemainingAttempts)
	default:
		return apperror.ErrChallengeNotFound()
	}
}

func (h *WalletHandler) resolveWallet(c *gin.Context, ownerID uuid.UUID) (*domain.WalletAccount, error) {
	account, err := h.walletRepo.GetByOwnerID(c.Request.Context(), ownerID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if account == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return account, nil
}

func toWalletResponse(a *domain.WalletAccount) dto.WalletResponse {
	return dto.WalletResponse{
		ID:           a.ID.String(),
		Persona:      string(a.Persona),
		Balance:      a.Balance,
		SubBalances:  a.SubBalances,
		TotalSavings: a.TotalSavings(),
		SpendLimit:   a.SpendLimit,
		IsLocked:     a.IsLocked,
	}
}

func toTransactionResponse(t *domain.WalletTransaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:               t.ID.String(),
		Kind:             string(t.Kind),
		Amount:           t.Amount,
		FromBucket:       t.FromBucket,
		ToBucket:         t.ToBucket,
		Description:      t.Description,
		Essential:        t.Essential,
		ResultingBalance: t.ResultingBalance,
		CreatedAt:        t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func queryInt(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
