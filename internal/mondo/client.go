package mondo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/dmitrijs2005/mondo/internal/logging"
)

// Client talks to the banking API on behalf of one user.
type Client struct {
	cfg        Config
	apiURL     *url.URL
	oauth      *oauth2.Config
	httpClient *http.Client
	logger     logging.Logger
	now        func() time.Time

	mu        sync.Mutex
	token     *credentials
	accountID string
}

// credentials is the mutable token pair. A nil *credentials on the client
// means no token has been obtained yet.
type credentials struct {
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

// New builds a Client. It performs no network calls.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()

	apiURL, err := url.Parse(cfg.APIURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	if !apiURL.IsAbs() {
		return nil, fmt.Errorf("invalid api url %q: not absolute", cfg.APIURL)
	}

	c := &Client{
		cfg:        cfg,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.NewNop(),
		now:        time.Now,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.LoginURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AccountID returns the active account scope.
func (c *Client) AccountID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accountID
}

// SetAccountID replaces the active account scope.
func (c *Client) SetAccountID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accountID = id
}

// scope applies a per-call override and returns the account id to use.
func (c *Client) scope(override string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if override != "" {
		c.accountID = override
	}
	if c.accountID == "" {
		return "", ErrNoAccount
	}
	return c.accountID, nil
}

// Request performs an authenticated call and decodes the JSON response into
// out (which may be nil). rawURL is relative to the API base URL, or
// absolute on the base's host. A non-nil form is sent url-encoded as the request body.
func (c *Client) Request(ctx context.Context, method, rawURL string, form url.Values, out any) error {
	accessToken, err := c.freshAccessToken(ctx)
	if err != nil {
		return err
	}

	target, err := c.resolve(rawURL)
	if err != nil {
		return err
	}
	method = strings.ToUpper(method)

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, target.Path, err)
	}

	c.logger.Debug(ctx, "api request",
		"method", method,
		"path", target.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Method:     method,
			URL:        target.Redacted(),
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, target.Path, err)
	}
	return nil
}

// resolve joins rawURL onto the API base and strips a trailing slash from the
// path, which the remote API rejects. Absolute URLs must share the base's
// scheme and host.
func (c *Client) resolve(rawURL string) (*url.URL, error) {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	u := ref
	if ref.IsAbs() || ref.Host != "" {
		if !strings.EqualFold(ref.Scheme, c.apiURL.Scheme) || !strings.EqualFold(ref.Host, c.apiURL.Host) {
			return nil, fmt.Errorf("%w: %s", ErrForeignURL, ref.Redacted())
		}
	} else {
		u = c.apiURL.ResolveReference(ref)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	if u.RawPath != "" {
		u.RawPath = strings.TrimSuffix(u.RawPath, "/")
	}
	return u, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.Request(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	if form == nil {
		form = url.Values{}
	}
	return c.Request(ctx, http.MethodPost, path, form, out)
}

func (c *Client) patch(ctx context.Context, path string, form url.Values, out any) error {
	if form == nil {
		form = url.Values{}
	}
	return c.Request(ctx, http.MethodPatch, path, form, out)
}

func (c *Client) delete(ctx context.Context, path string, out any) error {
	return c.Request(ctx, http.MethodDelete, path, nil, out)
}
