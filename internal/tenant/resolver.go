package tenant

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/roofline/crmcore/internal/errors"
)

// Header names set by the upstream gateway after authentication.
const (
	HeaderTenantID   = "X-Tenant-ID"
	HeaderLocationID = "X-Location-ID"
	HeaderUserID     = "X-User-ID"
	HeaderUserRole   = "X-User-Role"
)

var (
	// ErrMissingTenant indicates the request carries no tenant id.
	ErrMissingTenant = apperrors.Wrap(apperrors.ErrUnauthorized, "missing tenant id")

	// ErrMissingActor indicates the request carries no user id or role.
	ErrMissingActor = apperrors.Wrap(apperrors.ErrUnauthorized, "missing actor")

	// ErrInvalidTenant indicates the tenant or location header is not a valid id.
	ErrInvalidTenant = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid tenant scope")
)

// Resolver turns an inbound request into a tenant scope.
type Resolver interface {
	Resolve(r *http.Request) (*Context, error)
}

// HeaderResolver reads the tenant scope from trusted gateway headers.
type HeaderResolver struct{}

// NewHeaderResolver creates a HeaderResolver.
func NewHeaderResolver() *HeaderResolver {
	return &HeaderResolver{}
}

// Resolve parses the tenant, optional location and actor headers.
func (h *HeaderResolver) Resolve(r *http.Request) (*Context, error) {
	rawTenant := strings.TrimSpace(r.Header.Get(HeaderTenantID))
	if rawTenant == "" {
		return nil, ErrMissingTenant
	}
	tenantID, err := uuid.Parse(rawTenant)
	if err != nil || tenantID == uuid.Nil {
		return nil, ErrInvalidTenant
	}

	tc := &Context{TenantID: tenantID}

	if rawLocation := strings.TrimSpace(r.Header.Get(HeaderLocationID)); rawLocation != "" {
		locationID, err := uuid.Parse(rawLocation)
		if err != nil {
			return nil, ErrInvalidTenant
		}
		tc.LocationID = &locationID
	}

	rawUser := strings.TrimSpace(r.Header.Get(HeaderUserID))
	role := Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole))))
	if rawUser == "" || role == "" {
		return nil, ErrMissingActor
	}
	userID, err := uuid.Parse(rawUser)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "invalid user id")
	}
	if !role.Valid() {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "invalid user role")
	}
	tc.Actor = Actor{UserID: userID, Role: role}

	return tc, nil
}
