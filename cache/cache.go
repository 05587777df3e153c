package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonwraymond/xbrlmcp/auth"
)

// MaxKeyLength is the maximum allowed length for a session identifier.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrInvalidKey = errors.New("cache: session id is invalid")
	ErrKeyTooLong = errors.New("cache: session id exceeds max length")
	ErrNilRecord  = errors.New("cache: record is nil")
)

// Record is cached proof of a successful authentication.
// A Record is owned by the cache entry that holds it and is replaced
// wholesale, never mutated.
type Record struct {
	// Handle is the authenticated client handle.
	Handle *auth.Handle

	// Fingerprint identifies the credential set that produced Handle.
	Fingerprint string

	// IssuedAt is when the handle was issued.
	IssuedAt time.Time

	// ExpiresAt is when the handle stops being valid. Always set.
	ExpiresAt time.Time
}

// NewRecord builds a Record from a freshly issued handle.
func NewRecord(h *auth.Handle, fingerprint string) *Record {
	return &Record{
		Handle:      h,
		Fingerprint: fingerprint,
		IssuedAt:    h.IssuedAt(),
		ExpiresAt:   h.ExpiresAt(),
	}
}

// SessionCache maps session identifiers to authentication records.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Lookup is a pure read; it returns (nil, false) when absent.
// - Store inserts or overwrites; last writer wins, no merging.
// - Entries live for the life of the cache; there is no eviction.
type SessionCache interface {
	// Lookup returns the record for sessionID, if any.
	Lookup(ctx context.Context, sessionID string) (*Record, bool)

	// Store replaces the record for sessionID.
	Store(ctx context.Context, sessionID string, rec *Record) error
}

// ValidateKey checks if a session identifier can be used as a cache key.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
