package gate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/xbrlmcp/auth"
	"github.com/jonwraymond/xbrlmcp/cache"
	"github.com/jonwraymond/xbrlmcp/observe"
)

// Errors returned by the gate.
var (
	// ErrNoAuthenticator is returned by New when Config.Authenticator is nil.
	ErrNoAuthenticator = errors.New("gate: authenticator is required")

	// ErrInternalFault wraps unexpected failures inside the gate, including
	// recovered panics.
	ErrInternalFault = errors.New("gate: internal fault")
)

// Config configures a Gate.
type Config struct {
	// Authenticator exchanges credentials for a handle. Required.
	Authenticator auth.Authenticator

	// Cache stores one record per session. Defaults to a new MemoryCache.
	Cache cache.SessionCache

	// Policy decides when a cached record may be reused.
	Policy cache.Policy

	// AllowConcurrentAuth disables collapsing of concurrent exchanges for
	// the same session and credential set.
	AllowConcurrentAuth bool

	// Logger receives one entry per resolution. Defaults to a no-op.
	Logger observe.Logger

	// Metrics counts resolutions by outcome. Defaults to a no-op.
	Metrics observe.GateMetrics

	// Tracer records spans for resolutions and exchanges. Defaults to a no-op.
	Tracer observe.Tracer

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// NewRequestID generates request ids. Defaults to uuid.NewString.
	NewRequestID func() string
}

// Gate resolves and publishes the authenticated handle for each request.
type Gate struct {
	authn        auth.Authenticator
	cache        cache.SessionCache
	policy       cache.Policy
	collapse     bool
	flight       singleflight.Group
	logger       observe.Logger
	metrics      observe.GateMetrics
	tracer       observe.Tracer
	now          func() time.Time
	newRequestID func() string

	counts    map[Outcome]*atomic.Int64
	exchanges atomic.Int64
}

// New creates a Gate.
func New(cfg Config) (*Gate, error) {
	if cfg.Authenticator == nil {
		return nil, ErrNoAuthenticator
	}

	g := &Gate{
		authn:        cfg.Authenticator,
		cache:        cfg.Cache,
		policy:       cfg.Policy,
		collapse:     !cfg.AllowConcurrentAuth,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		tracer:       cfg.Tracer,
		now:          cfg.Now,
		newRequestID: cfg.NewRequestID,
		counts:       make(map[Outcome]*atomic.Int64, len(Outcomes)),
	}
	if g.cache == nil {
		g.cache = cache.NewMemoryCache()
	}
	if g.logger == nil {
		g.logger = observe.NopLogger()
	}
	if g.metrics == nil {
		g.metrics = observe.NopGateMetrics()
	}
	if g.tracer == nil {
		g.tracer = observe.NopTracer()
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.newRequestID == nil {
		g.newRequestID = uuid.NewString
	}
	for _, o := range Outcomes {
		g.counts[o] = new(atomic.Int64)
	}

	return g, nil
}

// Cache returns the session cache used by the gate.
func (g *Gate) Cache() cache.SessionCache {
	return g.cache
}

// Resolve decides the handle for one request.
//
// sessionID is the transport's session identifier; empty means the session
// could not be resolved, in which case the request is authenticated on its
// own and nothing is cached. query carries the offered credentials.
//
// Resolve never panics. Every failure is reported through the returned
// Resolution with a nil Handle.
func (g *Gate) Resolve(ctx context.Context, sessionID string, query url.Values) (res Resolution) {
	start := g.now()
	res = Resolution{SessionID: sessionID, RequestID: g.newRequestID()}

	ctx, span := g.tracer.Start(ctx, "auth.gate.resolve",
		attribute.String("session_id", sessionID),
		attribute.String("request_id", res.RequestID),
	)

	defer func() {
		if r := recover(); r != nil {
			res.Outcome = OutcomeInternalFault
			res.Handle = nil
			res.Err = fmt.Errorf("%w: panic: %v", ErrInternalFault, r)
		}
		span.SetAttributes(attribute.String("outcome", res.Outcome.String()))
		g.tracer.EndSpan(span, res.Err)
		g.record(ctx, res, g.now().Sub(start))
	}()

	creds, err := auth.ParseCredentials(query)
	if err != nil {
		res.Outcome = OutcomeMalformedCredentials
		res.Err = err
		return res
	}
	if creds == nil {
		res.Outcome = OutcomeNoCredentials
		return res
	}

	if sessionID == "" {
		return g.resolveEphemeral(ctx, res, creds)
	}

	fp := creds.Fingerprint()
	if rec, ok := g.reusable(ctx, sessionID, fp); ok {
		res.Outcome = OutcomeReused
		res.Handle = rec.Handle
		return res
	}

	return g.resolveRefresh(ctx, res, creds, fp)
}

func (g *Gate) reusable(ctx context.Context, sessionID, fp string) (*cache.Record, bool) {
	rec, ok := g.cache.Lookup(ctx, sessionID)
	if !ok || !g.policy.IsReusable(rec, fp, g.now()) {
		return nil, false
	}
	return rec, true
}

func (g *Gate) resolveEphemeral(ctx context.Context, res Resolution, creds *auth.Credentials) Resolution {
	h, err := g.authenticate(ctx, creds)
	if err != nil {
		res.Outcome = classifyAuthError(err)
		res.Err = err
		return res
	}
	res.Outcome = OutcomeEphemeral
	res.Handle = h
	return res
}

// refreshResult is shared by callers collapsed into one exchange.
type refreshResult struct {
	handle  *auth.Handle
	outcome Outcome
	err     error
}

func (g *Gate) resolveRefresh(ctx context.Context, res Resolution, creds *auth.Credentials, fp string) Resolution {
	var out refreshResult
	if g.collapse {
		// The flight outlives any single caller's cancellation; every
		// collapsed caller waits on the same exchange.
		flightCtx := context.WithoutCancel(ctx)
		v, _, _ := g.flight.Do(res.SessionID+"\x00"+fp, func() (any, error) {
			if rec, ok := g.reusable(flightCtx, res.SessionID, fp); ok {
				return refreshResult{handle: rec.Handle, outcome: OutcomeReused}, nil
			}
			return g.refresh(flightCtx, res.SessionID, creds, fp), nil
		})
		out = v.(refreshResult)
	} else {
		out = g.refresh(ctx, res.SessionID, creds, fp)
	}

	res.Outcome = out.outcome
	res.Handle = out.handle
	res.Err = out.err
	return res
}

// refresh authenticates and overwrites the session's cache entry.
func (g *Gate) refresh(ctx context.Context, sessionID string, creds *auth.Credentials, fp string) refreshResult {
	h, err := g.authenticate(ctx, creds)
	if err != nil {
		return refreshResult{outcome: classifyAuthError(err), err: err}
	}

	if err := g.cache.Store(ctx, sessionID, cache.NewRecord(h, fp)); err != nil {
		g.logger.Warn(ctx, "session cache store failed",
			observe.F("session_id", sessionID),
			observe.F("error", err.Error()),
		)
		return refreshResult{handle: h, outcome: OutcomeEphemeral}
	}
	return refreshResult{handle: h, outcome: OutcomeRefreshed}
}

// authenticate performs one exchange with the identity service.
func (g *Gate) authenticate(ctx context.Context, creds *auth.Credentials) (*auth.Handle, error) {
	ctx, span := g.tracer.Start(ctx, "auth.authenticate",
		attribute.String("authenticator", g.authn.Name()),
	)
	start := g.now()
	g.exchanges.Add(1)

	h, err := g.authn.Authenticate(ctx, creds)
	if err == nil && h == nil {
		err = fmt.Errorf("%w: authenticator %q returned no handle", ErrInternalFault, g.authn.Name())
	}

	g.metrics.RecordAuthentication(ctx, g.now().Sub(start), err)
	g.tracer.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (g *Gate) record(ctx context.Context, res Resolution, duration time.Duration) {
	if c, ok := g.counts[res.Outcome]; ok {
		c.Add(1)
	}
	g.metrics.RecordResolution(ctx, res.Outcome.String(), duration)

	fields := []observe.Field{
		observe.F("session_id", res.SessionID),
		observe.F("outcome", res.Outcome.String()),
		observe.F("request_id", res.RequestID),
		observe.F("duration_ms", float64(duration)/float64(time.Millisecond)),
	}
	if res.Handle != nil {
		fields = append(fields,
			observe.F("token_prefix", res.Handle.TokenPrefix()),
			observe.F("expires_at", res.Handle.ExpiresAt().UTC().Format(time.RFC3339)),
		)
	}
	if res.Err != nil {
		fields = append(fields, observe.F("error", res.Err.Error()))
	}

	const msg = "auth gate resolved"
	switch res.Outcome {
	case OutcomeReused, OutcomeNoCredentials:
		g.logger.Debug(ctx, msg, fields...)
	case OutcomeRefreshed, OutcomeEphemeral:
		g.logger.Info(ctx, msg, fields...)
	case OutcomeInternalFault:
		g.logger.Error(ctx, msg, fields...)
	default:
		g.logger.Warn(ctx, msg, fields...)
	}
}

// Stats is a point-in-time view of gate activity.
type Stats struct {
	// Outcomes counts resolutions by outcome.
	Outcomes map[Outcome]int64

	// Exchanges counts calls to the Authenticator.
	Exchanges int64
}

// Stats returns counters accumulated since New.
func (g *Gate) Stats() Stats {
	s := Stats{
		Outcomes:  make(map[Outcome]int64, len(g.counts)),
		Exchanges: g.exchanges.Load(),
	}
	for o, c := range g.counts {
		s.Outcomes[o] = c.Load()
	}
	return s
}
