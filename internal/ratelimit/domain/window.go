// Package domain defines the fixed-window rate limiting model.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxResourceLength bounds the resource name stored with each window.
const MaxResourceLength = 100

// Key identifies one counter: a user acting on a resource inside a tenant.
type Key struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Resource string
}

// Validate checks that the key can be stored.
func (k Key) Validate() error {
	if k.TenantID == uuid.Nil {
		return ErrInvalidKey
	}
	resource := strings.TrimSpace(k.Resource)
	if resource == "" || resource != k.Resource || len(resource) > MaxResourceLength {
		return ErrInvalidKey
	}
	return nil
}

// String renders the key for stores addressed by a flat string.
func (k Key) String() string {
	return k.TenantID.String() + ":" + k.UserID.String() + ":" + k.Resource
}

// Window is the counter state after an increment.
type Window struct {
	Key          Key
	RequestCount int
	WindowStart  time.Time
	UpdatedAt    time.Time
}

// Expired reports whether the window no longer covers now.
func (w *Window) Expired(size time.Duration, now time.Time) bool {
	return !w.WindowStart.Add(size).After(now)
}

// Decision is the result of CheckAndIncrement.
type Decision struct {
	Allowed     bool
	Count       int
	Limit       int
	Remaining   int
	WindowStart time.Time
	RetryAfter  time.Duration
}

// Decide evaluates a freshly incremented window against limit. A denied decision
// always carries a positive RetryAfter.
func Decide(w *Window, limit int, size time.Duration, now time.Time) *Decision {
	d := &Decision{
		Allowed:     w.RequestCount <= limit,
		Count:       w.RequestCount,
		Limit:       limit,
		Remaining:   max(limit-w.RequestCount, 0),
		WindowStart: w.WindowStart,
	}
	if !d.Allowed {
		d.RetryAfter = w.WindowStart.Add(size).Sub(now)
		if d.RetryAfter <= 0 {
			d.RetryAfter = time.Millisecond
		}
	}
	return d
}
