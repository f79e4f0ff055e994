package domain

import (
	"github.com/roofline/crmcore/internal/errors"
)

// Outbox errors.
var (
	// ErrEventNotFound indicates no event with the id exists for the tenant.
	ErrEventNotFound = errors.Wrap(errors.ErrNotFound, "outbox event not found")

	// ErrEventNotCancelable indicates the event is processing, completed or already canceled.
	ErrEventNotCancelable = errors.Wrap(errors.ErrConflict, "outbox event cannot be canceled in its current status")

	// ErrLeaseLost indicates the claim on an event expired and another dispatcher
	// took it over before the outcome was recorded.
	ErrLeaseLost = errors.New("outbox event lease lost")

	// ErrNoSender indicates no sender is registered for the event type.
	ErrNoSender = errors.New("no sender registered for event type")

	// ErrInvalidEvent indicates append parameters are incomplete.
	ErrInvalidEvent = errors.Wrap(errors.ErrInvalidInput, "invalid outbox event")
)
