// Package domain defines idempotency records used to deduplicate retried mutations.
package domain

import (
	"bytes"
	"encoding/hex"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// MaxKeyLength bounds caller supplied idempotency keys.
const MaxKeyLength = 255

// Status is the lifecycle state of an idempotency record.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Outcome is the result of beginning a request.
type Outcome string

const (
	// OutcomeFresh means the caller owns the key and must complete or release it.
	OutcomeFresh Outcome = "fresh"
	// OutcomeReplayed means an identical request already completed.
	OutcomeReplayed Outcome = "replayed"
	// OutcomeConflict means the key was used with a different request.
	OutcomeConflict Outcome = "conflict"
	// OutcomeInFlight means an identical request holds the key right now.
	OutcomeInFlight Outcome = "in_flight"
)

// Record is the stored state of one (tenant, key) pair.
type Record struct {
	TenantID     uuid.UUID
	Key          string
	RequestHash  string
	Status       Status
	ResponseBody []byte
	ContentType  string
	StatusCode   int
	LockedUntil  time.Time
	ExpiresAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsCompleted reports whether the response was stored.
func (r *Record) IsCompleted() bool {
	return r.Status == StatusCompleted
}

// IsLive reports whether the record still binds its key at now. Completed
// records live until they expire; in-progress records until their lock lapses.
func (r *Record) IsLive(now time.Time) bool {
	if r.IsCompleted() {
		return r.ExpiresAt != nil && now.Before(*r.ExpiresAt)
	}
	return now.Before(r.LockedUntil)
}

// Matches reports whether hash identifies the same request as the record.
func (r *Record) Matches(hash string) bool {
	return r.RequestHash == hash
}

// BeginResult is returned by Begin.
type BeginResult struct {
	Outcome Outcome
	// Record is the replayable response on OutcomeReplayed.
	Record *Record
	// RetryAfter is set on OutcomeInFlight.
	RetryAfter time.Duration
}

// ValidateKey checks a caller supplied key.
func ValidateKey(key string) error {
	if key == "" || len(key) > MaxKeyLength {
		return ErrInvalidKey
	}
	if strings.TrimSpace(key) != key {
		return ErrInvalidKey
	}
	for _, r := range key {
		if !unicode.IsPrint(r) {
			return ErrInvalidKey
		}
	}
	return nil
}

// HashRequest returns the hex BLAKE2b-256 digest identifying a request by its
// method, concrete path and body.
func HashRequest(method, path string, body []byte) string {
	var buf bytes.Buffer
	buf.Grow(len(method) + len(path) + len(body) + 2)
	buf.WriteString(method)
	buf.WriteByte('\n')
	buf.WriteString(path)
	buf.WriteByte('\n')
	buf.Write(body)

	sum := blake2b.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}
