package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ruban1613/ibet/internal/core/ports"
	"github.com/ruban1613/ibet/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

const testScope = "wallet_access"

func rateLimitedRouter(limiter ports.RateLimiter, uid *uuid.UUID) *gin.Engine {
	r := gin.New()
	if uid != nil {
		r.Use(func(c *gin.Context) {
			c.Set(CtxUserID, *uid)
			c.Next()
		})
	}
	r.Use(RateLimit(limiter, testScope, zerolog.Nop()))
	r.GET("/resource", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRateLimit_Allowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	uid := uuid.New()
	resetAt := time.Now().Add(30 * time.Minute)
	limiter := mocks.NewMockRateLimiter(ctrl)
	limiter.EXPECT().Check(gomock.Any(), uid.String(), testScope).Return(&ports.RateLimitResult{
		Allowed:   true,
		Limit:     10,
		Remaining: 7,
		ResetAt:   resetAt,
	}, nil)

	w := httptest.NewRecorder()
	rateLimitedRouter(limiter, &uid).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/resource", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "7", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimit_Denied(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	uid := uuid.New()
	limiter := mocks.NewMockRateLimiter(ctrl)
	limiter.EXPECT().Check(gomock.Any(), uid.String(), testScope).Return(&ports.RateLimitResult{
		Allowed:   false,
		Limit:     10,
		Remaining: 0,
		ResetAt:   time.Now().Add(45 * time.Second),
	}, nil)

	w := httptest.NewRecorder()
	rateLimitedRouter(limiter, &uid).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/resource", nil))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_001")
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimit_SubjectFallsBackToClientIP(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No authenticated user on the context; httptest requests come from 192.0.2.1.
	limiter := mocks.NewMockRateLimiter(ctrl)
	limiter.EXPECT().Check(gomock.Any(), "192.0.2.1", testScope).Return(&ports.RateLimitResult{
		Allowed:   true,
		Limit:     10,
		Remaining: 9,
		ResetAt:   time.Now().Add(time.Minute),
	}, nil)

	w := httptest.NewRecorder()
	rateLimitedRouter(limiter, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/resource", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_StoreFailureDegradesOpen(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	uid := uuid.New()
	limiter := mocks.NewMockRateLimiter(ctrl)
	limiter.EXPECT().Check(gomock.Any(), uid.String(), testScope).
		Return(nil, errors.New("redis: connection refused"))

	w := httptest.NewRecorder()
	rateLimitedRouter(limiter, &uid).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/resource", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}
