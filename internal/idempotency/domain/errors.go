package domain

import (
	"github.com/roofline/crmcore/internal/errors"
)

// Idempotency errors.
var (
	// ErrRecordNotFound indicates no record exists for the tenant and key.
	ErrRecordNotFound = errors.Wrap(errors.ErrNotFound, "idempotency record not found")

	// ErrInvalidKey indicates a blank, oversized or non printable key.
	ErrInvalidKey = errors.Wrap(errors.ErrInvalidInput, "idempotency key must be 1-255 printable characters")

	// ErrKeyReused indicates the key was already used for a different request.
	ErrKeyReused = errors.Wrap(errors.ErrInvalidInput, "idempotency key was already used with a different request")

	// ErrRequestInFlight indicates the same request is still being processed.
	ErrRequestInFlight = errors.Wrap(errors.ErrConflict, "a request with this idempotency key is in progress")

	// ErrNotOwner indicates the record is not in progress for the request hash.
	ErrNotOwner = errors.Wrap(errors.ErrConflict, "idempotency record is not held by this request")
)
