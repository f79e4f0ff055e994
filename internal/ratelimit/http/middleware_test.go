package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/goleak"

	ratelimitDomain "github.com/roofline/crmcore/internal/ratelimit/domain"
	"github.com/roofline/crmcore/internal/ratelimit/usecase/mocks"
	"github.com/roofline/crmcore/internal/tenant"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testScope() *tenant.Context {
	return &tenant.Context{
		TenantID: uuid.Must(uuid.NewV7()),
		Actor:    tenant.Actor{UserID: uuid.Must(uuid.NewV7()), Role: tenant.RoleSalesRep},
	}
}

func newRouter(scope func() *tenant.Context, middleware gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if tc := scope(); tc != nil {
			c.Request = c.Request.WithContext(tenant.WithContext(c.Request.Context(), tc))
		}
		c.Next()
	})
	router.Use(middleware)
	router.POST("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func post(router *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/test", nil))
	return w
}

func TestMiddleware(t *testing.T) {
	rule := Rule{Resource: "pipeline.transition", Limit: 2, Window: time.Minute}

	t.Run("Allowed", func(t *testing.T) {
		useCase := mocks.NewMockRateLimitUseCase(t)
		tc := testScope()
		router := newRouter(func() *tenant.Context { return tc }, Middleware(useCase, rule, discardLogger()))

		key := ratelimitDomain.Key{TenantID: tc.TenantID, UserID: tc.Actor.UserID, Resource: rule.Resource}
		useCase.On("CheckAndIncrement", mock.Anything, key, 2, time.Minute).
			Return(&ratelimitDomain.Decision{Allowed: true, Count: 1, Limit: 2, Remaining: 1}, nil).Once()

		w := post(router)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get(HeaderLimit))
		assert.Equal(t, "1", w.Header().Get(HeaderRemaining))
	})

	t.Run("Denied", func(t *testing.T) {
		useCase := mocks.NewMockRateLimitUseCase(t)
		tc := testScope()
		router := newRouter(func() *tenant.Context { return tc }, Middleware(useCase, rule, discardLogger()))

		useCase.On("CheckAndIncrement", mock.Anything, mock.Anything, 2, time.Minute).
			Return(&ratelimitDomain.Decision{
				Allowed:    false,
				Count:      3,
				Limit:      2,
				RetryAfter: 12500 * time.Millisecond,
			}, nil).Once()

		w := post(router)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "13", w.Header().Get("Retry-After"))
		assert.Equal(t, "0", w.Header().Get(HeaderRemaining))
		assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
	})

	t.Run("StoreFailureLetsRequestThrough", func(t *testing.T) {
		useCase := mocks.NewMockRateLimitUseCase(t)
		tc := testScope()
		router := newRouter(func() *tenant.Context { return tc }, Middleware(useCase, rule, discardLogger()))

		useCase.On("CheckAndIncrement", mock.Anything, mock.Anything, 2, time.Minute).
			Return(nil, errors.New("redis unavailable")).Once()

		w := post(router)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get(HeaderLimit))
	})

	t.Run("MissingScope", func(t *testing.T) {
		useCase := mocks.NewMockRateLimitUseCase(t)
		router := newRouter(func() *tenant.Context { return nil }, Middleware(useCase, rule, discardLogger()))

		w := post(router)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestTenantThrottleMiddleware(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("BlocksTenantAfterBurst", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		tc := testScope()
		router := newRouter(func() *tenant.Context { return tc },
			TenantThrottleMiddleware(ctx, 1.0, 2, discardLogger()))

		for i := 0; i < 2; i++ {
			assert.Equal(t, http.StatusOK, post(router).Code)
		}

		w := post(router)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
	})

	t.Run("IndependentBucketsPerTenant", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		first := testScope()
		second := testScope()
		current := first
		router := newRouter(func() *tenant.Context { return current },
			TenantThrottleMiddleware(ctx, 0.5, 1, discardLogger()))

		assert.Equal(t, http.StatusOK, post(router).Code)
		assert.Equal(t, http.StatusTooManyRequests, post(router).Code)

		current = second
		assert.Equal(t, http.StatusOK, post(router).Code)
	})
}

func TestThrottleStore_EvictIdle(t *testing.T) {
	store := &throttleStore{rps: 1, burst: 1}
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	idleTenant := uuid.Must(uuid.NewV7())
	activeTenant := uuid.Must(uuid.NewV7())

	store.getLimiter(idleTenant, now.Add(-2*time.Hour))
	store.getLimiter(activeTenant, now)

	store.evictIdle(now.Add(-time.Hour))

	_, idleKept := store.limiters.Load(idleTenant)
	_, activeKept := store.limiters.Load(activeTenant)
	assert.False(t, idleKept)
	assert.True(t, activeKept)
}
