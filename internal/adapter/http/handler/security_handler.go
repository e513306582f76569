package handler

import (
	"time"

	"github.com/ruban1613/ibet/internal/adapter/http/dto"
	"github.com/ruban1613/ibet/internal/core/ports"
	"github.com/ruban1613/ibet/pkg/apperror"
	"github.com/ruban1613/ibet/pkg/response"

	"github.com/gin-gonic/gin"
)

// SecurityHandler exposes the subject's own audit trail.
type SecurityHandler struct {
	recorder ports.SecurityRecorder
}

// NewSecurityHandler creates a new SecurityHandler.
func NewSecurityHandler(recorder ports.SecurityRecorder) *SecurityHandler {
	return &SecurityHandler{recorder: recorder}
}

// Events handles GET /api/v1/security/events — recent events for the
// authenticated subject, newest first.
func (h *SecurityHandler) Events(c *gin.Context) {
	uid, ok := subjectID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	limit := queryInt(c, "limit", 50)
	if limit > 200 {
		limit = 200
	}

	events, err := h.recorder.Recent(c.Request.Context(), uid, limit)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	items := make([]dto.SecurityEventResponse, 0, len(events))
	for i := range events {
		ev := &events[i]
		items = append(items, dto.SecurityEventResponse{
			ID:        ev.ID.String(),
			Type:      string(ev.Type),
			Severity:  string(ev.Severity),
			Details:   ev.Details,
			IPAddress: ev.IPAddress,
			CreatedAt: ev.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	response.OK(c, items)
}
