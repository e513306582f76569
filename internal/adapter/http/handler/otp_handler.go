package handler

import (
	"time"

	"github.com/ruban1613/ibet/internal/adapter/http/dto"
	"github.com/ruban1613/ibet/internal/core/domain"
	"github.com/ruban1613/ibet/internal/core/ports"
	"github.com/ruban1613/ibet/pkg/apperror"
	"github.com/ruban1613/ibet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// OTPHandler handles challenge issuance and verification. Responses
// never carry the raw code: delivery goes through the sender.
type OTPHandler struct {
	otpSvc ports.OTPService
	sender ports.OTPSender // nil = codes are generated but not delivered
	log    zerolog.Logger
}

// NewOTPHandler creates a new OTPHandler.
func NewOTPHandler(otpSvc ports.OTPService, sender ports.OTPSender, log zerolog.Logger) *OTPHandler {
	return &OTPHandler{otpSvc: otpSvc, sender: sender, log: log}
}

// Request handles POST /api/v1/otp/request.
func (h *OTPHandler) Request(c *gin.Context) {
	uid, ok := subjectID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.OTPRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.otpSvc.Issue(c.Request.Context(), uid, domain.OTPPurpose(req.Purpose), c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.sender != nil {
		if err := h.sender.Send(c.Request.Context(), uid, result.Code); err != nil {
			h.log.Warn().Err(err).Str("subject_id", uid.String()).Msg("otp delivery failed")
		}
	}

	response.Created(c, dto.OTPRequestResponse{
		ChallengeKey: result.ChallengeKey,
		ExpiresAt:    result.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Verify handles POST /api/v1/otp/verify. Success consumes the
// challenge.
func (h *OTPHandler) Verify(c *gin.Context) {
	uid, ok := subjectID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.OTPVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.otpSvc.Verify(c.Request.Context(), uid, req.ChallengeKey, req.Code, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.OTPVerifyResponse{
		Verified:          result.OK,
		Reason:            string(result.Reason),
		RemainingAttempts: result.RemainingAttempts,
	})
}
