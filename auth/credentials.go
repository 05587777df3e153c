package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Query parameter names that carry a credential set.
const (
	ParamUsername     = "username"
	ParamPassword     = "password"
	ParamClientID     = "client_id"
	ParamClientSecret = "client_secret"
)

// credentialParams lists the credential fields in canonical order.
// The fingerprint depends on this order; do not reorder.
var credentialParams = []string{ParamUsername, ParamPassword, ParamClientID, ParamClientSecret}

// Credentials is the four-field secret bundle needed to authenticate
// against the data service.
//
// A Credentials value is treated as immutable once constructed for a request.
// Its String method never prints secret material.
type Credentials struct {
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
}

// ValidationError reports which credential fields were missing or blank.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: missing or empty %s", ErrMalformedCredentials, strings.Join(e.Fields, ", "))
}

// Unwrap allows errors.Is(err, ErrMalformedCredentials).
func (e *ValidationError) Unwrap() error {
	return ErrMalformedCredentials
}

// ParseCredentials extracts a credential set from URL query values.
//
// It returns (nil, nil) when none of the credential parameters is present:
// that is the "no credentials offered" state and is not an error. When at
// least one parameter is present, all four must be present and non-blank;
// otherwise a *ValidationError is returned.
func ParseCredentials(values url.Values) (*Credentials, error) {
	if !offersCredentials(values) {
		return nil, nil
	}

	creds := &Credentials{
		Username:     values.Get(ParamUsername),
		Password:     values.Get(ParamPassword),
		ClientID:     values.Get(ParamClientID),
		ClientSecret: values.Get(ParamClientSecret),
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return creds, nil
}

func offersCredentials(values url.Values) bool {
	for _, p := range credentialParams {
		if _, ok := values[p]; ok {
			return true
		}
	}
	return false
}

// Validate checks that all four fields are non-blank.
func (c *Credentials) Validate() error {
	if c == nil {
		return ErrNilCredentials
	}

	var missing []string
	for i, v := range c.fields() {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, credentialParams[i])
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// Fingerprint returns the hex SHA-256 digest of the canonical field
// concatenation. Equal credential sets always produce equal fingerprints.
func (c *Credentials) Fingerprint() string {
	return Fingerprint(c)
}

// Equal reports whether two credential sets are field-wise equal.
func (c *Credentials) Equal(other *Credentials) bool {
	if c == nil || other == nil {
		return c == other
	}
	return *c == *other
}

// String returns a representation safe for logs. No field is printed;
// compare credential sets with Fingerprint instead.
func (c *Credentials) String() string {
	if c == nil {
		return "<nil>"
	}
	return "Credentials{username=[REDACTED], password=[REDACTED], client_id=[REDACTED], client_secret=[REDACTED]}"
}

// GoString keeps %#v from printing credential fields.
func (c *Credentials) GoString() string {
	return c.String()
}

func (c *Credentials) fields() [4]string {
	return [4]string{c.Username, c.Password, c.ClientID, c.ClientSecret}
}

// Fingerprint hashes a credential set for equality comparison.
// A nil set hashes to the empty string.
//
// Each field is written as "<byte length>:<value>", so no choice of field
// contents can make two different sets encode to the same input.
func Fingerprint(c *Credentials) string {
	if c == nil {
		return ""
	}
	h := sha256.New()
	for _, f := range c.fields() {
		h.Write([]byte(strconv.Itoa(len(f))))
		h.Write([]byte{':'})
		h.Write([]byte(f))
	}
	return hex.EncodeToString(h.Sum(nil))
}
