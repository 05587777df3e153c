package cache

import "time"

// Policy configures when a cached record may be reused.
type Policy struct {
	// ExpiryLeeway treats a record as expired this long before its
	// ExpiresAt, so a handle is not handed to a tool moments before it lapses.
	// Zero applies the exact predicate ExpiresAt > now.
	ExpiryLeeway time.Duration
}

// DefaultPolicy returns the default reuse policy (no leeway).
func DefaultPolicy() Policy {
	return Policy{}
}

// IsReusable reports whether rec may serve a request presenting
// fingerprint at time now: the fingerprints must match and the record must
// not have expired.
func (p Policy) IsReusable(rec *Record, fingerprint string, now time.Time) bool {
	if rec == nil || rec.Handle == nil {
		return false
	}
	if rec.Fingerprint != fingerprint {
		return false
	}
	return rec.ExpiresAt.After(now.Add(p.leeway()))
}

func (p Policy) leeway() time.Duration {
	if p.ExpiryLeeway < 0 {
		return 0
	}
	return p.ExpiryLeeway
}

// IsReusable applies DefaultPolicy.
func IsReusable(rec *Record, fingerprint string, now time.Time) bool {
	return DefaultPolicy().IsReusable(rec, fingerprint, now)
}
