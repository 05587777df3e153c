package xbrl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonwraymond/xbrlmcp/auth"
	"github.com/jonwraymond/xbrlmcp/observe"
	"github.com/jonwraymond/xbrlmcp/resilience"
)

const (
	// DefaultBaseURL is the public XBRL US API root.
	DefaultBaseURL = "https://api.xbrl.us/api/v1"

	// EndpointFactSearch searches reported facts.
	EndpointFactSearch = "/fact/search"

	maxErrorBody = 512
)

// Config configures the data client. A zero Config talks to DefaultBaseURL
// with a single attempt and no timeout.
type Config struct {
	BaseURL string

	// Timeout bounds each attempt. Zero disables it.
	Timeout time.Duration

	// MaxAttempts includes the initial attempt. Values below 1 mean 1.
	MaxAttempts int

	// RetryDelay is the initial backoff between attempts.
	RetryDelay time.Duration

	// Breaker is shared by every client built from this Config.
	Breaker *resilience.CircuitBreaker

	Logger observe.Logger
}

// Query describes one data API request.
type Query struct {
	// Endpoint defaults to EndpointFactSearch.
	Endpoint string

	// Fields lists the returned fields, e.g. "fact.*".
	Fields []string

	// Parameters are filters keyed by API name, e.g. "period.fiscal-year".
	Parameters map[string]string

	// Limit caps the number of rows. Zero leaves the API default.
	Limit int
}

// Client calls the data API as one authenticated caller.
type Client struct {
	base     string
	http     *http.Client
	executor *resilience.Executor
	logger   observe.Logger
}

// NewClient builds a client that sends requests with the handle's token.
func NewClient(handle *auth.Handle, cfg Config) (*Client, error) {
	if handle == nil {
		return nil, ErrNoHandle
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}

	var opts []resilience.ExecutorOption
	if cfg.Breaker != nil {
		opts = append(opts, resilience.WithCircuitBreaker(cfg.Breaker))
	}
	if cfg.MaxAttempts > 1 {
		opts = append(opts, resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: cfg.RetryDelay,
			Jitter:       true,
			RetryIf:      IsTransient,
			OnRetry: func(attempt int, err error, delay time.Duration) {
				logger.Warn(context.Background(), "xbrl request retry",
					observe.F("attempt", attempt),
					observe.F("delay_ms", delay.Milliseconds()),
					observe.F("error", err.Error()),
				)
			},
		})))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, resilience.WithTimeout(cfg.Timeout))
	}

	return &Client{
		base:     base,
		http:     handle.Client(),
		executor: resilience.NewExecutor(opts...),
		logger:   logger,
	}, nil
}

// Query runs q and returns the rows of the response's data array.
func (c *Client) Query(ctx context.Context, q Query) ([]map[string]any, error) {
	u, err := c.buildURL(q)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	err = c.executor.Execute(ctx, func(ctx context.Context) error {
		var err error
		rows, err = c.do(ctx, u)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) buildURL(q Query) (string, error) {
	endpoint := q.Endpoint
	if endpoint == "" {
		endpoint = EndpointFactSearch
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}

	u, err := url.Parse(c.base + endpoint)
	if err != nil {
		return "", fmt.Errorf("xbrl: invalid endpoint %q: %w", endpoint, err)
	}

	values := url.Values{}
	for k, v := range q.Parameters {
		values.Set(k, v)
	}
	if fields := fieldList(q); fields != "" {
		values.Set("fields", fields)
	}
	// The API expects literal commas and parentheses in the fields list.
	u.RawQuery = strings.NewReplacer("%2C", ",", "%28", "(", "%29", ")").Replace(values.Encode())
	return u.String(), nil
}

// fieldList appends the row limit as "<object>.limit(n)", the form the API
// accepts in the fields parameter.
func fieldList(q Query) string {
	fields := append([]string(nil), q.Fields...)
	if q.Limit > 0 {
		object := "fact"
		if len(fields) > 0 {
			if i := strings.Index(fields[0], "."); i > 0 {
				object = fields[0][:i]
			}
		}
		fields = append(fields, object+".limit("+strconv.Itoa(q.Limit)+")")
	}
	return strings.Join(fields, ",")
}

func (c *Client) do(ctx context.Context, u string) ([]map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("xbrl: build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("xbrl: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if payload.Data == nil {
		payload.Data = []map[string]any{}
	}
	return payload.Data, nil
}
