package domain

import (
	"github.com/roofline/crmcore/internal/tenant"
)

var (
	fieldRoles  = Roles{tenant.RoleSalesRep, tenant.RoleOffice, tenant.RoleManager, tenant.RoleAdmin, tenant.RoleOwner}
	officeRoles = Roles{tenant.RoleOffice, tenant.RoleManager, tenant.RoleAdmin, tenant.RoleOwner}
	crewRoles   = Roles{tenant.RoleFieldTech, tenant.RoleOffice, tenant.RoleManager, tenant.RoleAdmin, tenant.RoleOwner}
)

// DefaultRules returns the rule set seeded for tenants without a rule file. The
// rules carry no ids or tenant; the caller stamps them.
func DefaultRules() []TransitionRule {
	forward := func(from, to Status, roles Roles) TransitionRule {
		return TransitionRule{FromStatus: from, ToStatus: to, RequiredRoles: roles, Active: true}
	}
	withReason := func(r TransitionRule) TransitionRule {
		r.RequiresReason = true
		return r
	}
	withApproval := func(r TransitionRule) TransitionRule {
		r.RequiresApproval = true
		return r
	}

	rules := []TransitionRule{
		forward(StatusLead, StatusLegalReview, fieldRoles),
		forward(StatusLegalReview, StatusContingencySigned, fieldRoles),
		withApproval(forward(StatusContingencySigned, StatusProject, officeRoles)),
		forward(StatusProject, StatusCompleted, crewRoles),
		withApproval(forward(StatusCompleted, StatusClosed, officeRoles)),

		withReason(forward(StatusLegalReview, StatusLead, fieldRoles)),
		withApproval(withReason(forward(StatusContingencySigned, StatusLegalReview, officeRoles))),
		withApproval(withReason(forward(StatusProject, StatusContingencySigned, officeRoles))),

		withReason(forward(StatusLead, StatusDuplicate, fieldRoles)),
	}

	for _, from := range []Status{StatusLead, StatusLegalReview, StatusContingencySigned} {
		rules = append(rules, withReason(forward(from, StatusLost, fieldRoles)))
		rules = append(rules, withReason(forward(from, StatusCanceled, fieldRoles)))
	}
	rules = append(rules, withApproval(withReason(forward(StatusProject, StatusCanceled, officeRoles))))

	return rules
}
