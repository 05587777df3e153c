package gate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/jonwraymond/xbrlmcp/auth"
	"github.com/jonwraymond/xbrlmcp/cache"
	"github.com/jonwraymond/xbrlmcp/observe"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: epoch} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to epoch + offset.
func (c *fakeClock) Set(offset time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = epoch.Add(offset)
}

// fakeAuthenticator issues handles that expire ttl after the clock's now.
type fakeAuthenticator struct {
	clock *fakeClock
	ttl   time.Duration
	calls atomic.Int64
	err   error
	delay time.Duration
}

func (f *fakeAuthenticator) Name() string { return "fake" }

func (f *fakeAuthenticator) Authenticate(ctx context.Context, creds *auth.Credentials) (*auth.Handle, error) {
	n := f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	issued := f.clock.Now()
	tok := &oauth2.Token{AccessToken: fmt.Sprintf("tok-%s-%d", creds.Username, n)}
	return auth.NewHandle(ctx, tok, issued, issued.Add(f.ttl), nil), nil
}

func credQuery(user string) url.Values {
	return url.Values{
		auth.ParamUsername:     {user},
		auth.ParamPassword:     {"pw-" + user},
		auth.ParamClientID:     {"client"},
		auth.ParamClientSecret: {"client-secret"},
	}
}

func newTestGate(t *testing.T, mutate func(*Config)) (*Gate, *fakeAuthenticator, *fakeClock, *cache.MemoryCache) {
	t.Helper()
	clock := newFakeClock()
	authn := &fakeAuthenticator{clock: clock, ttl: time.Hour}
	mem := cache.NewMemoryCache()
	cfg := Config{
		Authenticator: authn,
		Cache:         mem,
		Now:           clock.Now,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	g, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return g, authn, clock, mem
}

func TestNew_RequiresAuthenticator(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoAuthenticator) {
		t.Fatalf("New() error = %v, want %v", err, ErrNoAuthenticator)
	}
}

func TestNew_Defaults(t *testing.T) {
	g, err := New(Config{Authenticator: &fakeAuthenticator{clock: newFakeClock()}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := g.Cache().(*cache.MemoryCache); !ok {
		t.Fatalf("default cache = %T, want *cache.MemoryCache", g.Cache())
	}
	if res := g.Resolve(context.Background(), "s1", nil); res.RequestID == "" {
		t.Fatal("expected generated request id")
	}
}

func TestResolve_NoCredentials(t *testing.T) {
	g, authn, _, _ := newTestGate(t, nil)

	for _, q := range []url.Values{nil, {}, {"year": {"2023"}}} {
		res := g.Resolve(context.Background(), "s1", q)
		if res.Outcome != OutcomeNoCredentials || res.Handle != nil || res.Err != nil {
			t.Fatalf("Resolve(%v) = %+v, want no_credentials with nil handle", q, res)
		}
	}
	if authn.calls.Load() != 0 {
		t.Fatalf("authenticator called %d times, want 0", authn.calls.Load())
	}
}

func TestResolve_MalformedCredentials(t *testing.T) {
	g, authn, _, _ := newTestGate(t, nil)

	q := credQuery("alice")
	q.Set(auth.ParamClientSecret, "  ")
	q.Del(auth.ParamPassword)

	res := g.Resolve(context.Background(), "s1", q)
	if res.Outcome != OutcomeMalformedCredentials || res.Handle != nil {
		t.Fatalf("Resolve() = %+v, want malformed_credentials", res)
	}
	if !errors.Is(res.Err, auth.ErrMalformedCredentials) {
		t.Fatalf("Err = %v, want %v", res.Err, auth.ErrMalformedCredentials)
	}
	var verr *auth.ValidationError
	if !errors.As(res.Err, &verr) || len(verr.Fields) != 2 {
		t.Fatalf("Err = %#v, want ValidationError listing 2 fields", res.Err)
	}
	if authn.calls.Load() != 0 {
		t.Fatal("authenticator must not be called for malformed credentials")
	}
}

func TestResolve_ReusesCachedRecord(t *testing.T) {
	g, authn, _, mem := newTestGate(t, nil)
	ctx := context.Background()

	first := g.Resolve(ctx, "s1", credQuery("alice"))
	if first.Outcome != OutcomeRefreshed || first.Handle == nil {
		t.Fatalf("first Resolve() = %+v, want refreshed", first)
	}

	second := g.Resolve(ctx, "s1", credQuery("alice"))
	if second.Outcome != OutcomeReused {
		t.Fatalf("second Resolve() outcome = %s, want reused", second.Outcome)
	}
	if second.Handle != first.Handle {
		t.Fatal("reused resolution must return the cached handle")
	}
	if got := authn.calls.Load(); got != 1 {
		t.Fatalf("authenticator called %d times, want 1", got)
	}
	if mem.Len() != 1 {
		t.Fatalf("cache has %d entries, want 1", mem.Len())
	}
}

func TestResolve_ExpiredRecordReauthenticates(t *testing.T) {
	g, authn, clock, mem := newTestGate(t, nil)
	ctx := context.Background()

	first := g.Resolve(ctx, "s1", credQuery("alice"))

	// Expiry is exclusive: a record is not reusable at exactly ExpiresAt.
	clock.Set(time.Hour)
	second := g.Resolve(ctx, "s1", credQuery("alice"))
	if second.Outcome != OutcomeRefreshed {
		t.Fatalf("outcome = %s, want refreshed", second.Outcome)
	}
	if second.Handle == first.Handle {
		t.Fatal("expected a new handle after expiry")
	}
	if authn.calls.Load() != 2 {
		t.Fatalf("authenticator called %d times, want 2", authn.calls.Load())
	}

	rec, _ := mem.Lookup(ctx, "s1")
	if rec.Handle != second.Handle || !rec.ExpiresAt.Equal(epoch.Add(2*time.Hour)) {
		t.Fatalf("cache not overwritten: %+v", rec)
	}
	if mem.Stats().Overwrites != 1 {
		t.Fatalf("overwrites = %d, want 1", mem.Stats().Overwrites)
	}
}

func TestResolve_CredentialChangeOverwrites(t *testing.T) {
	g, authn, _, mem := newTestGate(t, nil)
	ctx := context.Background()

	g.Resolve(ctx, "s1", credQuery("alice"))
	res := g.Resolve(ctx, "s1", credQuery("bob"))
	if res.Outcome != OutcomeRefreshed {
		t.Fatalf("outcome = %s, want refreshed", res.Outcome)
	}
	if authn.calls.Load() != 2 {
		t.Fatalf("authenticator called %d times, want 2", authn.calls.Load())
	}

	bob, _ := auth.ParseCredentials(credQuery("bob"))
	rec, _ := mem.Lookup(ctx, "s1")
	if rec.Fingerprint != bob.Fingerprint() {
		t.Fatal("cache entry must carry the new fingerprint")
	}

	// Switching back to alice is also a mismatch.
	if res := g.Resolve(ctx, "s1", credQuery("alice")); res.Outcome != OutcomeRefreshed {
		t.Fatalf("outcome = %s, want refreshed", res.Outcome)
	}
}

func TestResolve_SessionsAreIndependent(t *testing.T) {
	g, authn, _, mem := newTestGate(t, nil)
	ctx := context.Background()

	a := g.Resolve(ctx, "s1", credQuery("alice"))
	b := g.Resolve(ctx, "s2", credQuery("alice"))
	if a.Handle == b.Handle || b.Outcome != OutcomeRefreshed {
		t.Fatalf("sessions must not share records: %+v %+v", a, b)
	}
	if authn.calls.Load() != 2 || mem.Len() != 2 {
		t.Fatalf("calls=%d entries=%d, want 2 and 2", authn.calls.Load(), mem.Len())
	}
}

func TestResolve_AuthenticatorFailure(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    Outcome
		wantLvl string
	}{
		{"rejected", fmt.Errorf("%w: status 401", auth.ErrInvalidCredentials), OutcomeInvalidCredentials, "warn"},
		{"unreachable", fmt.Errorf("%w: dial tcp: refused", auth.ErrIdentityUnavailable), OutcomeInternalFault, "error"},
		{"unclassified", errors.New("boom"), OutcomeInternalFault, "error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			g, authn, _, mem := newTestGate(t, func(c *Config) {
				c.Logger = observe.NewLoggerWithWriter("debug", &buf)
			})
			authn.err = tc.err

			res := g.Resolve(context.Background(), "s1", credQuery("alice"))
			if res.Outcome != tc.want || res.Handle != nil {
				t.Fatalf("Resolve() = %+v, want %s with nil handle", res, tc.want)
			}
			if !errors.Is(res.Err, tc.err) {
				t.Fatalf("Err = %v, want %v", res.Err, tc.err)
			}
			if mem.Len() != 0 {
				t.Fatal("failed authentication must not be cached")
			}

			out := buf.String()
			if !strings.Contains(out, `"outcome":"`+string(tc.want)+`"`) || !strings.Contains(out, `"level":"`+tc.wantLvl+`"`) {
				t.Fatalf("log output missing outcome/level: %s", out)
			}
			if strings.Contains(out, "pw-alice") || strings.Contains(out, "client-secret") {
				t.Fatalf("log output leaked a secret: %s", out)
			}
		})
	}
}

func TestResolve_ExpiryScenario(t *testing.T) {
	g, authn, clock, mem := newTestGate(t, nil)
	ctx := context.Background()

	clock.Set(0)
	first := g.Resolve(ctx, "s1", credQuery("a"))
	if first.Outcome != OutcomeRefreshed || !first.Handle.ExpiresAt().Equal(epoch.Add(3600*time.Second)) {
		t.Fatalf("t=0: %+v", first)
	}

	clock.Set(1800 * time.Second)
	second := g.Resolve(ctx, "s1", credQuery("a"))
	if second.Outcome != OutcomeReused || second.Handle != first.Handle || authn.calls.Load() != 1 {
		t.Fatalf("t=1800: outcome=%s calls=%d", second.Outcome, authn.calls.Load())
	}

	clock.Set(4000 * time.Second)
	third := g.Resolve(ctx, "s1", credQuery("a"))
	if third.Outcome != OutcomeRefreshed || authn.calls.Load() != 2 {
		t.Fatalf("t=4000: outcome=%s calls=%d", third.Outcome, authn.calls.Load())
	}
	rec, _ := mem.Lookup(ctx, "s1")
	if !rec.ExpiresAt.After(first.Handle.ExpiresAt()) {
		t.Fatalf("new record expiry %v not after %v", rec.ExpiresAt, first.Handle.ExpiresAt())
	}
}

func TestResolve_UnresolvedSessionIsNeverCached(t *testing.T) {
	g, authn, _, mem := newTestGate(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res := g.Resolve(ctx, "", credQuery("alice"))
		if res.Outcome != OutcomeEphemeral || res.Handle == nil {
			t.Fatalf("Resolve() = %+v, want ephemeral with handle", res)
		}
	}
	if authn.calls.Load() != 3 {
		t.Fatalf("authenticator called %d times, want 3", authn.calls.Load())
	}
	if mem.Len() != 0 {
		t.Fatalf("cache has %d entries, want 0", mem.Len())
	}
}

func TestResolve_StoreFailureStillPublishesHandle(t *testing.T) {
	g, _, _, mem := newTestGate(t, nil)

	res := g.Resolve(context.Background(), strings.Repeat("x", cache.MaxKeyLength+1), credQuery("alice"))
	if res.Outcome != OutcomeEphemeral || res.Handle == nil {
		t.Fatalf("Resolve() = %+v, want ephemeral with handle", res)
	}
	if mem.Len() != 0 {
		t.Fatal("rejected key must not be cached")
	}
}

type panickingAuthenticator struct{}

func (panickingAuthenticator) Name() string { return "panics" }

func (panickingAuthenticator) Authenticate(context.Context, *auth.Credentials) (*auth.Handle, error) {
	panic("identity client exploded")
}

func TestResolve_RecoversPanics(t *testing.T) {
	for _, allow := range []bool{false, true} {
		t.Run(fmt.Sprintf("allow_concurrent=%v", allow), func(t *testing.T) {
			g, err := New(Config{Authenticator: panickingAuthenticator{}, AllowConcurrentAuth: allow})
			if err != nil {
				t.Fatal(err)
			}
			res := g.Resolve(context.Background(), "s1", credQuery("alice"))
			if res.Outcome != OutcomeInternalFault || res.Handle != nil {
				t.Fatalf("Resolve() = %+v, want internal_fault", res)
			}
			if !errors.Is(res.Err, ErrInternalFault) || !strings.Contains(res.Err.Error(), "exploded") {
				t.Fatalf("Err = %v", res.Err)
			}
		})
	}
}

func TestResolve_NilHandleIsInternalFault(t *testing.T) {
	authn := auth.NewAuthenticatorFunc("nil", func(context.Context, *auth.Credentials) (*auth.Handle, error) {
		return nil, nil
	})
	g, err := New(Config{Authenticator: authn})
	if err != nil {
		t.Fatal(err)
	}
	res := g.Resolve(context.Background(), "s1", credQuery("alice"))
	if res.Outcome != OutcomeInternalFault || !errors.Is(res.Err, ErrInternalFault) {
		t.Fatalf("Resolve() = %+v, want internal_fault", res)
	}
}

func TestResolve_CollapsesConcurrentAuthentication(t *testing.T) {
	g, authn, _, _ := newTestGate(t, nil)
	authn.delay = 20 * time.Millisecond

	const n = 16
	var wg sync.WaitGroup
	handles := make([]*auth.Handle, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i] = g.Resolve(context.Background(), "s1", credQuery("alice")).Handle
		}(i)
	}
	wg.Wait()

	if got := authn.calls.Load(); got != 1 {
		t.Fatalf("authenticator called %d times, want 1", got)
	}
	for i, h := range handles {
		if h == nil || h != handles[0] {
			t.Fatalf("handle %d differs from the shared handle", i)
		}
	}
}

// barrierAuthenticator blocks until n exchanges are in flight at once.
type barrierAuthenticator struct {
	fakeAuthenticator
	arrived sync.WaitGroup
}

func (b *barrierAuthenticator) Authenticate(ctx context.Context, creds *auth.Credentials) (*auth.Handle, error) {
	b.arrived.Done()
	done := make(chan struct{})
	go func() {
		b.arrived.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		return nil, errors.New("exchanges were serialized")
	}
	return b.fakeAuthenticator.Authenticate(ctx, creds)
}

func TestResolve_AllowConcurrentAuth(t *testing.T) {
	const n = 4
	authn := &barrierAuthenticator{fakeAuthenticator: fakeAuthenticator{clock: newFakeClock(), ttl: time.Hour}}
	authn.arrived.Add(n)

	g, err := New(Config{Authenticator: authn, AllowConcurrentAuth: true})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	outcomes := make([]Outcome, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = g.Resolve(context.Background(), "s1", credQuery("alice")).Outcome
		}(i)
	}
	wg.Wait()

	for i, o := range outcomes {
		if o != OutcomeRefreshed {
			t.Fatalf("resolution %d outcome = %s, want refreshed", i, o)
		}
	}
	if authn.calls.Load() != n {
		t.Fatalf("authenticator called %d times, want %d", authn.calls.Load(), n)
	}
}

func TestResolve_ExpiryLeeway(t *testing.T) {
	g, authn, clock, _ := newTestGate(t, func(c *Config) {
		c.Policy = cache.Policy{ExpiryLeeway: time.Minute}
	})
	ctx := context.Background()

	g.Resolve(ctx, "s1", credQuery("alice"))
	clock.Set(time.Hour - 30*time.Second)
	if res := g.Resolve(ctx, "s1", credQuery("alice")); res.Outcome != OutcomeRefreshed {
		t.Fatalf("outcome = %s, want refreshed inside leeway", res.Outcome)
	}
	if authn.calls.Load() != 2 {
		t.Fatalf("authenticator called %d times, want 2", authn.calls.Load())
	}
}

type recordingGateMetrics struct {
	mu       sync.Mutex
	outcomes []string
	auths    int
}

func (r *recordingGateMetrics) RecordResolution(_ context.Context, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingGateMetrics) RecordAuthentication(context.Context, time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auths++
}

func TestResolve_RecordsMetricsAndStats(t *testing.T) {
	metrics := &recordingGateMetrics{}
	g, _, _, _ := newTestGate(t, func(c *Config) {
		c.Metrics = metrics
		c.NewRequestID = func() string { return "req-1" }
	})
	ctx := context.Background()

	res := g.Resolve(ctx, "s1", credQuery("alice"))
	if res.RequestID != "req-1" || res.SessionID != "s1" {
		t.Fatalf("Resolution ids = %q/%q", res.RequestID, res.SessionID)
	}
	g.Resolve(ctx, "s1", credQuery("alice"))
	g.Resolve(ctx, "s1", nil)

	want := []string{"refreshed", "reused", "no_credentials"}
	if strings.Join(metrics.outcomes, ",") != strings.Join(want, ",") || metrics.auths != 1 {
		t.Fatalf("metrics outcomes=%v auths=%d", metrics.outcomes, metrics.auths)
	}

	stats := g.Stats()
	if stats.Exchanges != 1 || stats.Outcomes[OutcomeReused] != 1 || stats.Outcomes[OutcomeRefreshed] != 1 {
		t.Fatalf("Stats() = %+v", stats)
	}
	if len(stats.Outcomes) != len(Outcomes) {
		t.Fatalf("Stats() has %d outcomes, want %d", len(stats.Outcomes), len(Outcomes))
	}
}

func TestOutcome_Authenticated(t *testing.T) {
	want := map[Outcome]bool{
		OutcomeReused:               true,
		OutcomeRefreshed:            true,
		OutcomeEphemeral:            true,
		OutcomeNoCredentials:        false,
		OutcomeMalformedCredentials: false,
		OutcomeInvalidCredentials:   false,
		OutcomeInternalFault:        false,
	}
	for _, o := range Outcomes {
		if o.Authenticated() != want[o] {
			t.Errorf("%s.Authenticated() = %v", o, o.Authenticated())
		}
	}
}
