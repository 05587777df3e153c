// Package app assembles the xbrlmcp server from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/jonwraymond/xbrlmcp/auth"
	"github.com/jonwraymond/xbrlmcp/cache"
	"github.com/jonwraymond/xbrlmcp/gate"
	"github.com/jonwraymond/xbrlmcp/health"
	"github.com/jonwraymond/xbrlmcp/internal/config"
	"github.com/jonwraymond/xbrlmcp/observe"
	"github.com/jonwraymond/xbrlmcp/resilience"
	"github.com/jonwraymond/xbrlmcp/tools"
	"github.com/jonwraymond/xbrlmcp/xbrl"
)

// Name is the MCP server name reported at initialize.
const Name = "XBRL-US Data Server"

// Version is set at build time.
var Version = "dev"

// Options overrides components for tests. Zero values build the defaults.
type Options struct {
	Observer      observe.Observer
	Authenticator auth.Authenticator
	HTTPClient    *http.Client
}

// App is a fully wired server.
type App struct {
	cfg       config.Config
	observer  observe.Observer
	logger    observe.Logger
	gate      *gate.Gate
	mcp       *server.MCPServer
	transport *server.StreamableHTTPServer
	handler   http.Handler
}

// New wires the server. It does not start listening.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	obs := opts.Observer
	if obs == nil {
		cfg.Observe.Version = Version
		var err error
		if obs, err = observe.NewObserver(ctx, cfg.Observe); err != nil {
			return nil, fmt.Errorf("app: observer: %w", err)
		}
	}
	logger := obs.Logger()

	authn := opts.Authenticator
	if authn == nil {
		authOpts := cfg.AuthenticatorOptions()
		a, err := auth.DefaultRegistry.CreateAuthenticator(cfg.Auth.Authenticator, authOpts)
		if err != nil {
			return nil, fmt.Errorf("app: authenticator: %w", err)
		}
		authn = a
	}

	gateMetrics, err := observe.NewGateMetrics(obs.Meter())
	if err != nil {
		return nil, fmt.Errorf("app: gate metrics: %w", err)
	}
	sessions := cache.NewMemoryCache()
	g, err := gate.New(gate.Config{
		Authenticator:       authn,
		Cache:               sessions,
		Policy:              cache.Policy{ExpiryLeeway: cfg.Auth.ExpiryLeeway},
		AllowConcurrentAuth: !cfg.Auth.CollapseConcurrentAuth,
		Logger:              logger.With(observe.F("component", "auth_gate")),
		Metrics:             gateMetrics,
		Tracer:              observe.NewTracer(obs.Tracer()),
	})
	if err != nil {
		return nil, fmt.Errorf("app: gate: %w", err)
	}

	toolMW, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return nil, fmt.Errorf("app: tool middleware: %w", err)
	}

	mcpServer := server.NewMCPServer(Name, Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(toolMW.WithNamespace("xbrl").ToolMiddleware()),
		server.WithToolHandlerMiddleware(g.ToolMiddleware()),
	)

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		MaxFailures:  cfg.XBRL.BreakerFailures,
		ResetTimeout: cfg.XBRL.BreakerReset,
		IsFailure:    xbrl.IsTransient,
		OnStateChange: func(from, to resilience.State) {
			logger.Warn(context.Background(), "xbrl api circuit changed",
				observe.F("from", from.String()), observe.F("to", to.String()))
		},
	})
	tools.Register(mcpServer, xbrl.Config{
		BaseURL:     cfg.XBRL.BaseURL,
		Timeout:     cfg.XBRL.Timeout,
		MaxAttempts: cfg.XBRL.MaxAttempts,
		RetryDelay:  cfg.XBRL.RetryDelay,
		Breaker:     breaker,
		Logger:      logger.With(observe.F("component", "xbrl")),
	})

	transport := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath(cfg.Server.Path),
		server.WithHTTPContextFunc(auth.QueryContextFunc),
		server.WithLogger(observe.TransportLogger(logger)),
	)

	agg := health.NewAggregator()
	agg.Register(health.NewSessionCacheChecker(sessions, g))
	agg.Register(health.NewBreakerChecker("xbrl_api", breaker))

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.Path, transport)
	health.RegisterHandlers(mux, agg)
	if scrape := obs.MetricsHandler(); scrape != nil {
		mux.Handle("/metrics", scrape)
	}

	return &App{
		cfg:       cfg,
		observer:  obs,
		logger:    logger,
		gate:      g,
		mcp:       mcpServer,
		transport: transport,
		handler:   mux,
	}, nil
}

// Handler serves the MCP endpoint and the health endpoints.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Gate returns the auth gate.
func (a *App) Gate() *gate.Gate {
	return a.gate
}

// MCPServer returns the underlying MCP server.
func (a *App) MCPServer() *server.MCPServer {
	return a.mcp
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully within Server.ShutdownTimeout.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	a.logger.Info(ctx, "xbrlmcp listening",
		observe.F("addr", ln.Addr().String()),
		observe.F("path", a.cfg.Server.Path),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	a.logger.Info(shutdownCtx, "xbrlmcp shutting down")

	err := errors.Join(
		srv.Shutdown(shutdownCtx),
		a.transport.Shutdown(shutdownCtx),
		a.observer.Shutdown(shutdownCtx),
	)
	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		err = errors.Join(err, serveErr)
	}
	return err
}

// ListenAndServe listens on Server.Addr and calls Serve.
func (a *App) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", a.cfg.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}
