package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewRetry_Defaults(t *testing.T) {
	r := NewRetry(RetryConfig{})
	cfg := r.Config()

	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.InitialDelay != 100*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 100ms", cfg.InitialDelay)
	}
	if cfg.MaxDelay != 5*time.Second {
		t.Errorf("MaxDelay = %v, want 5s", cfg.MaxDelay)
	}
	if cfg.Multiplier != 2.0 {
		t.Errorf("Multiplier = %v, want 2", cfg.Multiplier)
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond})
	calls := 0

	err := r.Execute(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errUpstream
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_Exhausted(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond})
	calls := 0

	err := r.Execute(context.Background(), func(context.Context) error {
		calls++
		return errUpstream
	})
	if !errors.Is(err, ErrMaxRetriesExceeded) {
		t.Errorf("error = %v, want ErrMaxRetriesExceeded", err)
	}
	if !errors.Is(err, errUpstream) {
		t.Errorf("error = %v, want wrapped upstream error", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetry_SingleAttemptReturnsError(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 1})
	err := r.Execute(context.Background(), fail)
	if !errors.Is(err, errUpstream) || errors.Is(err, ErrMaxRetriesExceeded) {
		t.Errorf("error = %v, want bare upstream error", err)
	}
}

func TestRetry_NotRetried(t *testing.T) {
	errBadRequest := errors.New("bad request")

	tests := []struct {
		name string
		cfg  RetryConfig
		err  error
	}{
		{
			name: "permanent",
			cfg:  RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond},
			err:  Permanent(errBadRequest),
		},
		{
			name: "retry if rejects",
			cfg: RetryConfig{
				MaxAttempts:  5,
				InitialDelay: time.Millisecond,
				RetryIf:      func(err error) bool { return !errors.Is(err, errBadRequest) },
			},
			err: errBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := NewRetry(tt.cfg).Execute(context.Background(), func(context.Context) error {
				calls++
				return tt.err
			})
			if calls != 1 {
				t.Errorf("calls = %d, want 1", calls)
			}
			if !errors.Is(err, errBadRequest) {
				t.Errorf("error = %v, want %v", err, errBadRequest)
			}
		})
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRetry(RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Hour,
		OnRetry:      func(int, error, time.Duration) { cancel() },
	})

	err := r.Execute(ctx, fail)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestRetry_OnRetry(t *testing.T) {
	var attempts []int
	r := NewRetry(RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		OnRetry: func(attempt int, err error, _ time.Duration) {
			attempts = append(attempts, attempt)
		},
	})
	_ = r.Execute(context.Background(), fail)

	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", attempts)
	}
}

func TestRetry_Delay(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RetryConfig
		attempt int
		want    time.Duration
	}{
		{"exponential first", RetryConfig{InitialDelay: 100 * time.Millisecond}, 1, 100 * time.Millisecond},
		{"exponential third", RetryConfig{InitialDelay: 100 * time.Millisecond}, 3, 400 * time.Millisecond},
		{"linear", RetryConfig{InitialDelay: 100 * time.Millisecond, Strategy: BackoffLinear}, 3, 300 * time.Millisecond},
		{"constant", RetryConfig{InitialDelay: 100 * time.Millisecond, Strategy: BackoffConstant}, 3, 100 * time.Millisecond},
		{"capped", RetryConfig{InitialDelay: time.Second, MaxDelay: 2 * time.Second}, 5, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewRetry(tt.cfg).delay(tt.attempt); got != tt.want {
				t.Errorf("delay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestRetry_Jitter(t *testing.T) {
	r := NewRetry(RetryConfig{InitialDelay: 100 * time.Millisecond, Jitter: true})
	for i := 0; i < 50; i++ {
		d := r.delay(1)
		if d < 100*time.Millisecond || d >= 125*time.Millisecond {
			t.Fatalf("jittered delay %v outside [100ms, 125ms)", d)
		}
	}
}

func TestPermanent(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
	err := Permanent(errUpstream)
	if !IsPermanent(err) {
		t.Error("IsPermanent() = false")
	}
	if !errors.Is(err, errUpstream) {
		t.Error("Permanent should unwrap")
	}
	if IsPermanent(errUpstream) {
		t.Error("plain error reported permanent")
	}
}
