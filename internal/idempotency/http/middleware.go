// Package http provides the gin middleware that applies the idempotency store to
// mutating requests carrying an Idempotency-Key header.
package http

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roofline/crmcore/internal/httputil"
	idempotencyDomain "github.com/roofline/crmcore/internal/idempotency/domain"
	idempotencyUseCase "github.com/roofline/crmcore/internal/idempotency/usecase"
	"github.com/roofline/crmcore/internal/tenant"
)

const (
	// HeaderIdempotencyKey carries the caller supplied key.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderReplayed marks responses served from the store.
	HeaderReplayed = "Idempotent-Replayed"

	// maxBodyBytes bounds the request body read for hashing.
	maxBodyBytes = 1 << 20
)

// bookkeepingTimeout bounds Complete and Release after the handler ran, even
// when the client went away.
const bookkeepingTimeout = 5 * time.Second

// MiddlewareConfig configures the idempotency middleware.
type MiddlewareConfig struct {
	// TTL is how long completed responses are replayed.
	TTL time.Duration
}

// responseRecorder tees the handler's response body into a buffer.
type responseRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *responseRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware deduplicates POST, PUT, PATCH and DELETE requests that carry an
// Idempotency-Key. It must run after the tenant middleware.
func Middleware(
	useCase idempotencyUseCase.IdempotencyUseCase,
	cfg MiddlewareConfig,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || !isMutation(c.Request.Method) {
			c.Next()
			return
		}

		tc, ok := tenant.MustFromGin(c, logger)
		if !ok {
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
		if err != nil {
			httputil.HandleBadRequestGin(c, err, logger)
			c.Abort()
			return
		}
		if len(body) > maxBodyBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, httputil.ErrorResponse{
				Error:   "payload_too_large",
				Message: "request body exceeds 1 MiB",
			})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		// The concrete path, not the route template: a key reused on another
		// entry or event is a different request.
		hash := idempotencyDomain.HashRequest(c.Request.Method, c.Request.URL.Path, body)

		result, err := useCase.Begin(c.Request.Context(), tc.TenantID, key, hash)
		if err != nil {
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		switch result.Outcome {
		case idempotencyDomain.OutcomeReplayed:
			c.Header(HeaderReplayed, "true")
			c.Data(result.Record.StatusCode, result.Record.ContentType, result.Record.ResponseBody)
			c.Abort()
			return
		case idempotencyDomain.OutcomeConflict:
			httputil.HandleErrorGin(c, idempotencyDomain.ErrKeyReused, logger)
			c.Abort()
			return
		case idempotencyDomain.OutcomeInFlight:
			httputil.SetRetryAfter(c, result.RetryAfter)
			httputil.HandleErrorGin(c, idempotencyDomain.ErrRequestInFlight, logger)
			c.Abort()
			return
		}

		recorder := &responseRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder

		c.Next()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), bookkeepingTimeout)
		defer cancel()

		status := recorder.Status()
		if status >= http.StatusInternalServerError {
			if err := useCase.Release(ctx, tc.TenantID, key, hash); err != nil {
				logger.Error("failed to release idempotency key",
					slog.String("tenant_id", tc.TenantID.String()),
					slog.Any("error", err),
				)
			}
			return
		}

		contentType := recorder.Header().Get("Content-Type")
		if err := useCase.Complete(
			ctx, tc.TenantID, key, hash, recorder.body.Bytes(), contentType, status, cfg.TTL,
		); err != nil {
			logger.Error("failed to store idempotent response",
				slog.String("tenant_id", tc.TenantID.String()),
				slog.Int("status", status),
				slog.Any("error", err),
			)
		}
	}
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
