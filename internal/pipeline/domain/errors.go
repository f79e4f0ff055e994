package domain

import (
	"github.com/roofline/crmcore/internal/errors"
)

// Pipeline errors.
var (
	ErrEntryNotFound    = errors.Wrap(errors.ErrNotFound, "pipeline entry not found")
	ErrRuleNotFound     = errors.Wrap(errors.ErrNotFound, "transition rule not found")
	ErrApprovalNotFound = errors.Wrap(errors.ErrNotFound, "approval request not found")

	ErrRuleAlreadyExists      = errors.Wrap(errors.ErrConflict, "a transition rule for this status pair already exists")
	ErrApprovalNotPending     = errors.Wrap(errors.ErrConflict, "approval request has already been decided")
	ErrApprovalAlreadyPending = errors.Wrap(errors.ErrConflict, "entry already has a pending approval request")
	ErrEntryAlreadyDeleted    = errors.Wrap(errors.ErrConflict, "pipeline entry is already deleted")

	ErrInvalidStatus  = errors.Wrap(errors.ErrInvalidInput, "invalid pipeline status")
	ErrInvalidRule    = errors.Wrap(errors.ErrInvalidInput, "invalid transition rule")
	ErrInvalidActor   = errors.Wrap(errors.ErrInvalidInput, "invalid actor")
	ErrReasonRequired = errors.Wrap(errors.ErrInvalidInput, "a reason is required")

	ErrNotApprover      = errors.Wrap(errors.ErrForbidden, "only managers, admins and owners can decide approvals")
	ErrNotAdministrator = errors.Wrap(errors.ErrForbidden, "only admins and owners can manage transition rules")
)
