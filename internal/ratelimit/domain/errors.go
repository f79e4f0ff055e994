package domain

import (
	apperrors "github.com/roofline/crmcore/internal/errors"
)

// Rate limiting errors.
var (
	// ErrInvalidKey indicates a key without tenant or with an unusable resource name.
	ErrInvalidKey = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid rate limit key")

	// ErrInvalidWindow indicates a non-positive window size.
	ErrInvalidWindow = apperrors.Wrap(apperrors.ErrInvalidInput, "rate limit window must be positive")

	// ErrLimitExceeded is returned to callers that were denied.
	ErrLimitExceeded = apperrors.Wrap(apperrors.ErrTooManyRequests, "rate limit exceeded")
)
