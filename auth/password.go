package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// DefaultTokenURL is the XBRL US OAuth2 token endpoint.
const DefaultTokenURL = "https://api.xbrl.us/oauth2/token"

// PasswordGrantConfig configures the resource-owner password grant authenticator.
type PasswordGrantConfig struct {
	// TokenURL is the OAuth2 token endpoint.
	// Default: DefaultTokenURL
	TokenURL string

	// Scopes are requested with every exchange (optional).
	Scopes []string

	// AuthStyle is how the client id and secret are sent.
	// Options: "params" (default), "header", "auto"
	AuthStyle string

	// DefaultTTL is used when neither the token response nor the access
	// token itself carries an expiry.
	// Default: 1 hour
	DefaultTTL time.Duration

	// Timeout bounds a single exchange when HTTPClient is nil.
	// Default: 30 seconds
	Timeout time.Duration

	// HTTPClient is the HTTP client used for the exchange and embedded in
	// issued handles. If nil, a client with Timeout is created.
	HTTPClient *http.Client

	// Now is the clock used to stamp issuance. Default: time.Now
	Now func() time.Time
}

// PasswordGrantAuthenticator exchanges a credential set for an access token
// using the OAuth2 resource-owner password credentials grant.
type PasswordGrantAuthenticator struct {
	config     PasswordGrantConfig
	httpClient *http.Client
	authStyle  oauth2.AuthStyle
}

// NewPasswordGrantAuthenticator creates a new password grant authenticator.
func NewPasswordGrantAuthenticator(config PasswordGrantConfig) *PasswordGrantAuthenticator {
	// Apply defaults
	if config.TokenURL == "" {
		config.TokenURL = DefaultTokenURL
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = time.Hour
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &PasswordGrantAuthenticator{
		config:     config,
		httpClient: httpClient,
		authStyle:  parseAuthStyle(config.AuthStyle),
	}
}

// Name returns "oauth2_password".
func (a *PasswordGrantAuthenticator) Name() string {
	return "oauth2_password"
}

// Authenticate performs one token exchange. It never retries.
func (a *PasswordGrantAuthenticator) Authenticate(ctx context.Context, creds *Credentials) (*Handle, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	cfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  a.config.TokenURL,
			AuthStyle: a.authStyle,
		},
		Scopes: a.config.Scopes,
	}

	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	issuedAt := a.config.Now()

	token, err := cfg.PasswordCredentialsToken(exchangeCtx, creds.Username, creds.Password)
	if err != nil {
		return nil, classifyExchangeError(err)
	}

	expiresAt := tokenExpiry(token, issuedAt, a.config.DefaultTTL)
	return NewHandle(ctx, token, issuedAt, expiresAt, a.httpClient), nil
}

// classifyExchangeError separates rejections from transport failures.
// The token endpoint's response body is never included because it may echo
// request parameters.
func classifyExchangeError(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}

	status := 0
	if re.Response != nil {
		status = re.Response.StatusCode
	}
	if status >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrIdentityUnavailable, status)
	}

	detail := re.ErrorCode
	if re.ErrorDescription != "" {
		detail += ": " + re.ErrorDescription
	}
	if detail == "" {
		detail = "rejected"
	}
	return fmt.Errorf("%w: status %d: %s", ErrInvalidCredentials, status, detail)
}

// tokenExpiry picks the first available expiry: expires_in relative to
// issuedAt, an absolute expiry from the response, the exp claim of a JWT
// access token, or issuedAt+defaultTTL.
func tokenExpiry(token *oauth2.Token, issuedAt time.Time, defaultTTL time.Duration) time.Time {
	if token.ExpiresIn > 0 {
		return issuedAt.Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	if !token.Expiry.IsZero() {
		return token.Expiry
	}
	if exp, ok := jwtExpiry(token.AccessToken); ok {
		return exp
	}
	return issuedAt.Add(defaultTTL)
}

// jwtExpiry reads the exp claim without verifying the signature. The value
// only schedules re-authentication; the data service still validates the token.
func jwtExpiry(accessToken string) (time.Time, bool) {
	if strings.Count(accessToken, ".") != 2 {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func parseAuthStyle(s string) oauth2.AuthStyle {
	switch strings.ToLower(s) {
	case "header", "basic", "client_secret_basic":
		return oauth2.AuthStyleInHeader
	case "auto":
		// Auto-detect may send a second request after a rejection.
		return oauth2.AuthStyleAutoDetect
	default:
		return oauth2.AuthStyleInParams
	}
}

// Ensure PasswordGrantAuthenticator implements Authenticator
var _ Authenticator = (*PasswordGrantAuthenticator)(nil)
