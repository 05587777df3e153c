package secret

import (
	"context"
	"fmt"
	"os"
	"strings"
)

const refPrefix = "secretref:"

// Resolver expands environment variables and resolves secret references.
type Resolver struct {
	providers map[string]Provider
	lookup    LookupFunc
	strict    bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithProvider registers p, replacing any provider with the same name.
func WithProvider(p Provider) Option {
	return func(r *Resolver) {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
}

// WithLookup replaces os.LookupEnv for ${VAR} expansion and the env provider.
func WithLookup(lookup LookupFunc) Option {
	return func(r *Resolver) {
		r.lookup = lookup
		r.providers["env"] = EnvProvider{Lookup: lookup}
	}
}

// WithStrict makes an empty resolved secret an error.
func WithStrict(strict bool) Option {
	return func(r *Resolver) { r.strict = strict }
}

// NewResolver creates a resolver with the env and file providers registered.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		providers: map[string]Provider{
			"env":  EnvProvider{},
			"file": FileProvider{},
		},
		lookup: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveValue expands value and, if it is a secret reference, resolves it.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	expanded, err := expand(value, r.lookup)
	if err != nil {
		return "", err
	}

	providerName, ref, ok := ParseSecretRef(expanded)
	if !ok {
		return expanded, nil
	}

	provider, ok := r.providers[providerName]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, providerName)
	}
	resolved, err := provider.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if r.strict && resolved == "" {
		return "", fmt.Errorf("%w: %s%s:%s", ErrEmptySecret, refPrefix, providerName, ref)
	}
	return resolved, nil
}

// ResolveAll resolves each pointer in place. It stops at the first error,
// naming the field by its key.
func (r *Resolver) ResolveAll(ctx context.Context, fields map[string]*string) error {
	for name, p := range fields {
		if p == nil || *p == "" {
			continue
		}
		v, err := r.ResolveValue(ctx, *p)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", name, err)
		}
		*p = v
	}
	return nil
}

// ParseSecretRef parses a full secret reference of the form:
//
//	secretref:<provider>:<ref>
func ParseSecretRef(value string) (provider string, ref string, ok bool) {
	if !strings.HasPrefix(value, refPrefix) {
		return "", "", false
	}
	provider, ref, found := strings.Cut(strings.TrimPrefix(value, refPrefix), ":")
	if !found || provider == "" || ref == "" {
		return "", "", false
	}
	return provider, ref, true
}
