// Package domain defines the pipeline state machine: statuses, entries, transition
// rules, approvals and the rule evaluation that decides each transition.
package domain

import (
	"regexp"
)

// Status is a pipeline stage. The built-in vocabulary is closed; tenants may add
// substates named "hold:<name>" or "approval:<name>".
type Status string

const (
	StatusLead              Status = "lead"
	StatusLegalReview       Status = "legal_review"
	StatusContingencySigned Status = "contingency_signed"
	StatusProject           Status = "project"
	StatusCompleted         Status = "completed"
	StatusClosed            Status = "closed"
	StatusLost              Status = "lost"
	StatusCanceled          Status = "canceled"
	StatusDuplicate         Status = "duplicate"
)

var substateRegex = regexp.MustCompile(`^(hold|approval):[a-z0-9_]{1,50}$`)

// stageRank orders the forward path of the pipeline. Statuses without a rank
// (lost, canceled, duplicate and substates) are never considered backward moves.
var stageRank = map[Status]int{
	StatusLead:              1,
	StatusLegalReview:       2,
	StatusContingencySigned: 3,
	StatusProject:           4,
	StatusCompleted:         5,
	StatusClosed:            6,
}

// Valid reports whether s is a built-in status or a well-formed substate.
func (s Status) Valid() bool {
	switch s {
	case StatusLead, StatusLegalReview, StatusContingencySigned, StatusProject,
		StatusCompleted, StatusClosed, StatusLost, StatusCanceled, StatusDuplicate:
		return true
	default:
		return s.IsSubstate()
	}
}

// IsSubstate reports whether s is a tenant-defined hold or approval substate.
func (s Status) IsSubstate() bool {
	return substateRegex.MatchString(string(s))
}

// IsTerminal reports whether s ends the lifecycle. The default rule set has no
// outbound edges from terminal statuses, although a tenant rule may reopen one.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusClosed, StatusLost, StatusCanceled, StatusDuplicate:
		return true
	default:
		return false
	}
}

// SoftDeletes reports whether entering s flags the entry as deleted.
func (s Status) SoftDeletes() bool {
	return s == StatusCanceled || s == StatusDuplicate
}

// Rank returns the position of s on the forward path, or 0 when it has none.
func (s Status) Rank() int {
	return stageRank[s]
}

// IsBackward reports whether moving from one status to another returns the entry
// to an earlier stage.
func IsBackward(from, to Status) bool {
	fromRank, toRank := from.Rank(), to.Rank()
	return fromRank > 0 && toRank > 0 && toRank < fromRank
}
