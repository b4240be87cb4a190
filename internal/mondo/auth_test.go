package mondo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2016, 3, 1, 10, 0, 0, 0, time.UTC)

func TestAuthorizationURL(t *testing.T) {
	f := newFakeAPI(t)
	c := newTestClient(t, f, &fixedClock{now: epoch})

	u, err := url.Parse(c.AuthorizationURL())
	require.NoError(t, err)
	assert.Equal(t, "/authorize", u.Path)
	q := u.Query()
	assert.Equal(t, "client_1", q.Get("client_id"))
	assert.Equal(t, "http://localhost:5000/login/", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.False(t, q.Has("state"))

	u, err = url.Parse(c.AuthorizationURLWithState("xyz"))
	require.NoError(t, err)
	assert.Equal(t, "xyz", u.Query().Get("state"))

	assert.Empty(t, f.paths(), "building the URL must not hit the network")
}

func TestAuthorizationURL_DefaultEndpoints(t *testing.T) {
	c, err := New(Config{ClientID: "id", LoginURL: "http://localhost/cb"})
	require.NoError(t, err)

	u, err := url.Parse(c.AuthorizationURL())
	require.NoError(t, err)
	assert.Equal(t, "auth.getmondo.co.uk", u.Host)
	assert.Equal(t, "https://api.getmondo.co.uk/oauth2/token", c.cfg.TokenURL)
}

func TestExchangeCode(t *testing.T) {
	f := newFakeAPI(t)
	clock := &fixedClock{now: epoch.Add(123456 * time.Microsecond)}
	c := newTestClient(t, f, clock)

	grant, err := c.ExchangeCode(context.Background(), "code_1")
	require.NoError(t, err)

	form := f.lastTokenForm
	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "code_1", form.Get("code"))
	assert.Equal(t, "client_1", form.Get("client_id"))
	assert.Equal(t, "secret_1", form.Get("client_secret"))
	assert.Equal(t, "http://localhost:5000/login/", form.Get("redirect_uri"))

	wantExpiry := clock.Now().Add(21600 * time.Second)
	assert.Equal(t, "access-new", grant.AccessToken)
	assert.Equal(t, "refresh-new", grant.RefreshToken)
	assert.Equal(t, int64(21600), grant.ExpiresIn)
	assert.Equal(t, "user_1", grant.UserID)
	assert.True(t, wantExpiry.Equal(grant.ExpiresAt), "expires_at %s, want %s", grant.ExpiresAt, wantExpiry)

	tok, ok := c.Token()
	require.True(t, ok)
	assert.Equal(t, "access-new", tok.AccessToken)
	assert.True(t, wantExpiry.Equal(tok.ExpiresAt))

	// expires_at survives its textual form unchanged
	raw, err := json.Marshal(grant)
	require.NoError(t, err)
	var payload struct {
		ExpiresAt string `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, "2016-03-01T16:00:00.123456Z", payload.ExpiresAt)

	var back Token
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.ExpiresAt.Equal(grant.ExpiresAt))
}

func TestExchangeCode_KeepsUntypedFields(t *testing.T) {
	f := newFakeAPI(t)
	f.tokenExtra = map[string]any{"scope": "accounts transactions", "session_id": 7}
	c := newTestClient(t, f, &fixedClock{now: epoch})

	grant, err := c.ExchangeCode(context.Background(), "code_1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"scope": "accounts transactions", "session_id": float64(7)}, grant.Extra)

	raw, err := json.Marshal(grant)
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, "accounts transactions", payload["scope"])
	assert.Equal(t, "access-new", payload["access_token"])
	assert.Equal(t, "user_1", payload["user_id"])
	assert.Equal(t, float64(21600), payload["expires_in"])
	assert.Contains(t, payload, "expires_at")

	f.tokenExtra = nil
	refreshed, err := c.RefreshToken(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, refreshed.Extra, "typed fields are not repeated in Extra")
}

func TestExchangeCode_Rejected(t *testing.T) {
	f := newFakeAPI(t)
	f.tokenStatus = http.StatusUnauthorized
	c := newTestClient(t, f, &fixedClock{now: epoch})

	_, err := c.ExchangeCode(context.Background(), "used")
	require.Error(t, err)

	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusUnauthorized, ae.StatusCode)
	assert.Contains(t, ae.Body, "invalid_grant")

	_, ok := c.Token()
	assert.False(t, ok)
}

func TestRefreshToken_AdoptsGivenToken(t *testing.T) {
	f := newFakeAPI(t)
	c := newTestClient(t, f, &fixedClock{now: epoch})

	grant, err := c.RefreshToken(context.Background(), "refresh-outside")
	require.NoError(t, err)

	assert.Equal(t, "refresh_token", f.lastTokenForm.Get("grant_type"))
	assert.Equal(t, "refresh-outside", f.lastTokenForm.Get("refresh_token"))
	assert.Equal(t, "secret_1", f.lastTokenForm.Get("client_secret"))
	assert.Equal(t, "access-new", grant.AccessToken)
	assert.True(t, epoch.Add(6*time.Hour).Equal(grant.ExpiresAt))
}

func TestRefreshToken_KeepsRefreshTokenWhenNotRotated(t *testing.T) {
	f := newFakeAPI(t)
	f.omitRefresh = true
	c := newTestClient(t, f, &fixedClock{now: epoch}, WithToken(Token{
		AccessToken: "a", RefreshToken: "r-keep", ExpiresAt: epoch.Add(time.Hour),
	}))

	_, err := c.RefreshToken(context.Background(), "")
	require.NoError(t, err)

	tok, ok := c.Token()
	require.True(t, ok)
	assert.Equal(t, "access-new", tok.AccessToken)
	assert.Equal(t, "r-keep", tok.RefreshToken)
}

func TestRefreshToken_NoToken(t *testing.T) {
	f := newFakeAPI(t)
	c := newTestClient(t, f, &fixedClock{now: epoch})

	_, err := c.RefreshToken(context.Background(), "")
	require.ErrorIs(t, err, ErrNoToken)
	assert.Zero(t, f.tokenCalls)
}

func TestRefreshToken_Revoked(t *testing.T) {
	f := newFakeAPI(t)
	f.tokenStatus = http.StatusBadRequest
	c := newTestClient(t, f, &fixedClock{now: epoch}, WithToken(Token{
		AccessToken: "a", RefreshToken: "revoked", ExpiresAt: epoch.Add(-time.Minute), AccountID: "acc_1",
	}))

	_, err := c.Whoami(context.Background())
	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusBadRequest, ae.StatusCode)
	assert.Equal(t, 1, f.tokenCalls, "rejected refresh is not retried")
	assert.Empty(t, f.requestsTo("/ping/whoami"))
}

func TestWhoami_RefreshesStaleTokenFirst(t *testing.T) {
	f := newFakeAPI(t)
	c := newTestClient(t, f, &fixedClock{now: epoch}, WithToken(Token{
		AccessToken:  "access-old",
		RefreshToken: "refresh-old",
		ExpiresAt:    epoch.Add(-time.Second),
		AccountID:    "acc_1",
	}))

	who, err := c.Whoami(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Whoami{Authenticated: true, ClientID: "client_1", UserID: "user_1"}, who)

	assert.Equal(t, []string{"POST /oauth2/token", "GET /ping/whoami"}, f.paths())
	assert.Equal(t, "refresh-old", f.lastTokenForm.Get("refresh_token"))
	whoami := f.requestsTo("/ping/whoami")
	require.Len(t, whoami, 1)
	assert.Equal(t, "Bearer access-new", whoami[0].Header.Get("Authorization"))

	// the refreshed token is fresh, so later calls go straight through
	_, err = c.Whoami(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.tokenCalls)
}

func TestRequest_RefreshesOncePerExpiry(t *testing.T) {
	f := newFakeAPI(t)
	clock := &fixedClock{now: epoch}
	c := newTestClient(t, f, clock)
	ctx := context.Background()

	_, err := c.ExchangeCode(ctx, "code")
	require.NoError(t, err)

	clock.Advance(6 * time.Hour)
	_, err = c.Whoami(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.tokenCalls, "expiry instant itself is still fresh")

	clock.Advance(time.Second)
	_, err = c.Whoami(ctx)
	require.NoError(t, err)
	_, err = c.Whoami(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.tokenCalls)
}

func TestRequest_UnknownExpiryNeverRefreshes(t *testing.T) {
	f := newFakeAPI(t)
	c := newTestClient(t, f, &fixedClock{now: epoch}, WithToken(Token{AccessToken: "a", RefreshToken: "r"}))

	_, err := c.Whoami(context.Background())
	require.NoError(t, err)
	assert.Zero(t, f.tokenCalls)
}

func TestRequest_NoToken(t *testing.T) {
	f := newFakeAPI(t)
	c := newTestClient(t, f, &fixedClock{now: epoch})

	_, err := c.Whoami(context.Background())
	require.ErrorIs(t, err, ErrNoToken)
	assert.Empty(t, f.paths())
}

func TestAdoptTokens(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves account from listing", func(t *testing.T) {
		f := newFakeAPI(t)
		c := newTestClient(t, f, &fixedClock{now: epoch})

		in := Token{AccessToken: "a", RefreshToken: "r", ExpiresAt: epoch.Add(time.Hour)}
		out, err := c.AdoptTokens(ctx, in)
		require.NoError(t, err)

		in.AccountID = "acc_1"
		assert.Equal(t, in, out)
		assert.Equal(t, "acc_1", c.AccountID())
		assert.Zero(t, f.tokenCalls)
	})

	t.Run("explicit account skips listing", func(t *testing.T) {
		f := newFakeAPI(t)
		c := newTestClient(t, f, &fixedClock{now: epoch})

		in := Token{AccessToken: "a", RefreshToken: "r", ExpiresAt: epoch.Add(time.Hour), AccountID: "acc_9"}
		out, err := c.AdoptTokens(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, in, out)
		assert.Empty(t, f.paths())
	})

	t.Run("stale record comes back refreshed", func(t *testing.T) {
		f := newFakeAPI(t)
		c := newTestClient(t, f, &fixedClock{now: epoch})

		out, err := c.AdoptTokens(ctx, Token{
			AccessToken: "a", RefreshToken: "r", ExpiresAt: epoch.Add(-time.Hour), AccountID: "acc_1",
		})
		require.NoError(t, err)
		assert.Equal(t, "access-new", out.AccessToken)
		assert.Equal(t, "refresh-new", out.RefreshToken)
		assert.Equal(t, "acc_1", out.AccountID)
		assert.True(t, epoch.Add(6*time.Hour).Equal(out.ExpiresAt))
		assert.Equal(t, 1, f.tokenCalls)
	})

	t.Run("no accounts", func(t *testing.T) {
		f := newFakeAPI(t)
		f.accounts = nil
		c := newTestClient(t, f, &fixedClock{now: epoch})

		_, err := c.AdoptTokens(ctx, Token{AccessToken: "a", RefreshToken: "r"})
		require.ErrorIs(t, err, ErrNoAccount)
	})

	t.Run("empty record", func(t *testing.T) {
		f := newFakeAPI(t)
		c := newTestClient(t, f, &fixedClock{now: epoch})

		_, err := c.AdoptTokens(ctx, Token{})
		require.ErrorIs(t, err, ErrNoToken)
	})
}

func TestTokenErrorsUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := error(&AuthError{Op: "refresh access token", Err: inner})
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "refresh access token: boom", err.Error())
}
