package mondo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// AuthorizationURL returns the provider's authorization page URL carrying
// client_id, redirect_uri and response_type=code.
func (c *Client) AuthorizationURL() string {
	return c.oauth.AuthCodeURL("")
}

// AuthorizationURLWithState is AuthorizationURL with an opaque state value
// that the provider echoes back on the redirect.
func (c *Client) AuthorizationURLWithState(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// ExchangeCode trades an authorization code for a token pair and makes it
// the client's current token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Grant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	octx, rec := c.oauthContext(ctx)
	tok, err := c.oauth.Exchange(octx, code)
	if err != nil {
		return nil, tokenEndpointError("exchange authorization code", err)
	}

	grant := c.applyGrantLocked(tok, rec.body)
	c.logger.Info(ctx, "authorization code exchanged",
		"user_id", grant.UserID,
		"expires_at", grant.ExpiresAt,
	)
	return grant, nil
}

// RefreshToken mints a new token pair. A non-empty refreshToken is adopted
// as the current refresh token first. Rejections are returned as *AuthError
// and are not retried.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Grant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx, refreshToken)
}

// AdoptTokens hydrates the client from a persisted record. Without an
// AccountID the scope is resolved from the first listed account. Freshness
// is validated afterwards, so the returned record is the one to persist.
func (c *Client) AdoptTokens(ctx context.Context, t Token) (Token, error) {
	if t.AccessToken == "" && t.RefreshToken == "" {
		return Token{}, ErrNoToken
	}

	c.mu.Lock()
	c.setTokenLocked(t)
	c.mu.Unlock()

	if t.AccountID == "" {
		accounts, err := c.ListAccounts(ctx)
		if err != nil {
			return Token{}, fmt.Errorf("resolve account: %w", err)
		}
		if len(accounts) == 0 {
			return Token{}, ErrNoAccount
		}
		c.SetAccountID(accounts[0].ID)
	}

	c.mu.Lock()
	err := c.ensureFreshLocked(ctx)
	c.mu.Unlock()
	if err != nil {
		return Token{}, err
	}

	tok, _ := c.Token()
	return tok, nil
}

// Token returns a snapshot of the current token record, or false when the
// client holds no token.
func (c *Client) Token() (Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil {
		return Token{AccountID: c.accountID}, false
	}
	return Token{
		AccessToken:  c.token.accessToken,
		RefreshToken: c.token.refreshToken,
		ExpiresAt:    c.token.expiresAt,
		AccountID:    c.accountID,
	}, true
}

func (c *Client) setTokenLocked(t Token) {
	c.token = &credentials{
		accessToken:  t.AccessToken,
		refreshToken: t.RefreshToken,
		expiresAt:    t.ExpiresAt.UTC(),
	}
	if t.AccountID != "" {
		c.accountID = t.AccountID
	}
}

// freshAccessToken runs the freshness check and returns the bearer token to
// send.
func (c *Client) freshAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureFreshLocked(ctx); err != nil {
		return "", err
	}
	return c.token.accessToken, nil
}

func (c *Client) ensureFreshLocked(ctx context.Context) error {
	if c.token == nil {
		return ErrNoToken
	}
	if c.token.expiresAt.IsZero() || !c.now().After(c.token.expiresAt) {
		return nil
	}
	c.logger.Info(ctx, "access token expired, refreshing", "expired_at", c.token.expiresAt)
	_, err := c.refreshLocked(ctx, "")
	return err
}

func (c *Client) refreshLocked(ctx context.Context, refreshToken string) (*Grant, error) {
	if refreshToken != "" {
		if c.token == nil {
			c.token = &credentials{}
		}
		c.token.refreshToken = refreshToken
	}
	if c.token == nil || c.token.refreshToken == "" {
		return nil, ErrNoToken
	}

	octx, rec := c.oauthContext(ctx)
	src := c.oauth.TokenSource(octx, &oauth2.Token{RefreshToken: c.token.refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, tokenEndpointError("refresh access token", err)
	}

	grant := c.applyGrantLocked(tok, rec.body)
	c.logger.Info(ctx, "access token refreshed", "expires_at", grant.ExpiresAt)
	return grant, nil
}

// applyGrantLocked stores tok as the current credentials. Expiry is computed
// from expires_in against the client's clock. raw is the token endpoint
// body; its untyped fields end up in Grant.Extra.
func (c *Client) applyGrantLocked(tok *oauth2.Token, raw []byte) *Grant {
	now := c.now()
	expiresIn := expiresInSeconds(tok, now)

	var expiresAt time.Time
	if expiresIn > 0 {
		expiresAt = now.Add(time.Duration(expiresIn) * time.Second)
	} else if !tok.Expiry.IsZero() {
		expiresAt = tok.Expiry
	}
	if !expiresAt.IsZero() {
		expiresAt = expiresAt.UTC().Truncate(time.Microsecond)
	}

	refresh := tok.RefreshToken
	if refresh == "" && c.token != nil {
		refresh = c.token.refreshToken
	}

	c.token = &credentials{
		accessToken:  tok.AccessToken,
		refreshToken: refresh,
		expiresAt:    expiresAt,
	}

	return &Grant{
		AccessToken:  tok.AccessToken,
		RefreshToken: refresh,
		TokenType:    tok.TokenType,
		ExpiresIn:    expiresIn,
		ExpiresAt:    expiresAt,
		UserID:       extraString(tok, "user_id"),
		ClientID:     extraString(tok, "client_id"),
		Extra:        extraFields(raw),
	}
}

// oauthContext routes the oauth2 package through the client's HTTP client
// and records the token endpoint body, which oauth2.Token only exposes key
// by key.
func (c *Client) oauthContext(ctx context.Context) (context.Context, *bodyRecorder) {
	hc := *c.httpClient
	rec := &bodyRecorder{base: hc.Transport}
	if rec.base == nil {
		rec.base = http.DefaultTransport
	}
	hc.Transport = rec
	return context.WithValue(ctx, oauth2.HTTPClient, &hc), rec
}

const maxTokenBody = 1 << 20

type bodyRecorder struct {
	base http.RoundTripper
	body []byte
}

func (r *bodyRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := r.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBody))
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	r.body = data
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return resp, nil
}

// extraFields returns the members of a JSON token response that Grant has
// no typed field for. Non-JSON bodies yield nil.
func extraFields(raw []byte) map[string]any {
	var all map[string]any
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil
	}
	for _, k := range grantFields {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil
	}
	return all
}

func tokenEndpointError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		return &AuthError{Op: op, StatusCode: status, Body: string(re.Body), Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func expiresInSeconds(tok *oauth2.Token, now time.Time) int64 {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	if !tok.Expiry.IsZero() {
		return int64(tok.Expiry.Sub(now).Round(time.Second) / time.Second)
	}
	return 0
}

func extraString(tok *oauth2.Token, key string) string {
	s, _ := tok.Extra(key).(string)
	return s
}
