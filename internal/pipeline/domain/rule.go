package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/roofline/crmcore/internal/errors"
	"github.com/roofline/crmcore/internal/tenant"
)

// Roles is a set of tenant roles stored as a JSON array.
type Roles []tenant.Role

// Value stores the roles as a JSON array.
func (r Roles) Value() (driver.Value, error) {
	if r == nil {
		r = Roles{}
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads a JSON array column.
func (r *Roles) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = nil
		return nil
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return fmt.Errorf("cannot scan %T into Roles", src)
	}
}

// Contains reports whether role is in the set.
func (r Roles) Contains(role tenant.Role) bool {
	for _, candidate := range r {
		if candidate == role {
			return true
		}
	}
	return false
}

// TransitionRule declares that an entry may move from one status to another and
// under which conditions. Rules are unique per tenant and (from, to) pair.
type TransitionRule struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	FromStatus       Status
	ToStatus         Status
	RequiredRoles    Roles
	RequiresApproval bool
	RequiresReason   bool
	MinTimeInStage   time.Duration
	MinValueCents    *int64
	MaxValueCents    *int64
	Active           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AllowsRole reports whether role may request the transition. An empty role set
// allows everyone.
func (r *TransitionRule) AllowsRole(role tenant.Role) bool {
	return len(r.RequiredRoles) == 0 || r.RequiredRoles.Contains(role)
}

// HasValueRange reports whether the rule constrains the estimated value.
func (r *TransitionRule) HasValueRange() bool {
	return r.MinValueCents != nil || r.MaxValueCents != nil
}

// Validate checks the rule definition.
func (r *TransitionRule) Validate() error {
	switch {
	case !r.FromStatus.Valid():
		return apperrors.Wrapf(ErrInvalidRule, "unknown from status %q", r.FromStatus)
	case !r.ToStatus.Valid():
		return apperrors.Wrapf(ErrInvalidRule, "unknown to status %q", r.ToStatus)
	case r.FromStatus == r.ToStatus:
		return apperrors.Wrap(ErrInvalidRule, "from and to status must differ")
	case r.MinTimeInStage < 0:
		return apperrors.Wrap(ErrInvalidRule, "min time in stage must not be negative")
	case r.MinValueCents != nil && r.MaxValueCents != nil && *r.MinValueCents > *r.MaxValueCents:
		return apperrors.Wrap(ErrInvalidRule, "min value must not exceed max value")
	}

	for _, role := range r.RequiredRoles {
		if !role.Valid() {
			return apperrors.Wrapf(ErrInvalidRule, "invalid role %q", role)
		}
	}
	return nil
}
