package mondo

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/mondo/internal/logging"
)

const (
	DefaultAPIURL  = "https://api.getmondo.co.uk/"
	DefaultAuthURL = "https://auth.getmondo.co.uk/"
)

// Config carries the OAuth2 application settings of a Client.
type Config struct {
	ClientID     string
	ClientSecret string
	// LoginURL is the redirect URI registered with the provider.
	LoginURL string

	// APIURL, AuthURL and TokenURL default to the production endpoints.
	// TokenURL defaults to APIURL + "oauth2/token".
	APIURL   string
	AuthURL  string
	TokenURL string
}

func (c Config) withDefaults() Config {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if !strings.HasSuffix(c.APIURL, "/") {
		c.APIURL += "/"
	}
	if c.AuthURL == "" {
		c.AuthURL = DefaultAuthURL
	}
	if c.TokenURL == "" {
		c.TokenURL = c.APIURL + "oauth2/token"
	}
	return c
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient sets the transport used for API, token and upload calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces time.Now for expiry computations.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithToken pre-seeds the client with a persisted token record without any
// network call. Use AdoptTokens instead when the account scope must be
// resolved or freshness validated immediately.
func WithToken(t Token) Option {
	return func(c *Client) {
		c.setTokenLocked(t)
	}
}
