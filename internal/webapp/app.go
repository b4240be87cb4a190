// Package webapp is a minimal web front end for the API client: it sends
// the browser through the authorization page, keeps the resulting token
// record in a signed cookie and shows whoami on the home page.
package webapp

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/mondo/internal/config"
	"github.com/dmitrijs2005/mondo/internal/logging"
	"github.com/dmitrijs2005/mondo/internal/mondo"
	"github.com/dmitrijs2005/mondo/internal/netx"
)

const (
	tokensCookie = "tokens"
	stateCookie  = "oauth_state"
	stateTTL     = 10 * time.Minute

	loginMessage = "Please go to /login/ to login"
)

// App serves the web example.
type App struct {
	addr       string
	clientCfg  mondo.Config
	clientOpts []mondo.Option
	secret     []byte
	cookieTTL  time.Duration
	logger     logging.Logger
	now        func() time.Time
}

// New builds the app. opts are applied to every per-request API client.
func New(cfg *config.Config, logger logging.Logger, opts ...mondo.Option) *App {
	return &App{
		addr:       cfg.Web.Addr,
		clientCfg:  cfg.Client.Mondo(),
		clientOpts: append([]mondo.Option{mondo.WithLogger(logger)}, opts...),
		secret:     []byte(cfg.Web.CookieSecret),
		cookieTTL:  cfg.Web.CookieTTL,
		logger:     logger,
		now:        time.Now,
	}
}

func (a *App) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/", a.home)
	r.GET("/login/", a.login)
	return r
}

// Run serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return netx.ListenAndServe(ctx, a.addr, a.Handler(), a.logger)
}

// home shows whoami for a logged in browser. Stale tokens are refreshed on
// the way and the cookie is rewritten with the new record.
func (a *App) home(c *gin.Context) {
	ctx := c.Request.Context()

	raw, err := c.Cookie(tokensCookie)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"login": loginMessage})
		return
	}
	stored, err := DecodeSession(raw, a.secret)
	if err != nil {
		a.logger.Warn(ctx, "discarding invalid session cookie", "error", err)
		a.clearCookie(c, tokensCookie)
		c.JSON(http.StatusOK, gin.H{"login": loginMessage})
		return
	}

	client, err := mondo.New(a.clientCfg, a.clientOpts...)
	if err != nil {
		a.fail(c, http.StatusInternalServerError, err)
		return
	}

	current, err := client.AdoptTokens(ctx, stored)
	if err == nil && !sameToken(current, stored) {
		err = a.setSession(c, current)
	}
	var who *mondo.Whoami
	if err == nil {
		who, err = client.Whoami(ctx)
	}

	var authErr *mondo.AuthError
	var apiErr *mondo.APIError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"whoami": who})
	case errors.As(err, &authErr), errors.Is(err, mondo.ErrNoToken),
		errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized:
		a.logger.Info(ctx, "session no longer authorized", "error", err)
		a.clearCookie(c, tokensCookie)
		c.JSON(http.StatusOK, gin.H{"login": loginMessage})
	default:
		a.fail(c, http.StatusBadGateway, err)
	}
}

// login starts the authorization redirect, or completes it when the
// provider sent the browser back with a code.
func (a *App) login(c *gin.Context) {
	ctx := c.Request.Context()

	if reason := c.Query("error"); reason != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": reason, "error_description": c.Query("error_description")})
		return
	}

	client, err := mondo.New(a.clientCfg, a.clientOpts...)
	if err != nil {
		a.fail(c, http.StatusInternalServerError, err)
		return
	}

	code := c.Query("code")
	if code == "" {
		state := uuid.NewString()
		a.setCookie(c, stateCookie, state, stateTTL)
		c.Redirect(http.StatusFound, client.AuthorizationURLWithState(state))
		return
	}

	expected, err := c.Cookie(stateCookie)
	if err != nil || subtle.ConstantTimeCompare([]byte(expected), []byte(c.Query("state"))) != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_state"})
		return
	}
	a.clearCookie(c, stateCookie)

	grant, err := client.ExchangeCode(ctx, code)
	if err != nil {
		var authErr *mondo.AuthError
		if errors.As(err, &authErr) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization_failed", "login": loginMessage})
			return
		}
		a.fail(c, http.StatusBadGateway, err)
		return
	}

	tok, err := client.AdoptTokens(ctx, grant.Token())
	if err != nil {
		a.fail(c, http.StatusBadGateway, err)
		return
	}
	if err := a.setSession(c, tok); err != nil {
		a.fail(c, http.StatusInternalServerError, err)
		return
	}

	a.logger.Info(ctx, "user logged in", "user_id", grant.UserID)
	c.Redirect(http.StatusFound, "/")
}

func (a *App) setSession(c *gin.Context, t mondo.Token) error {
	value, err := EncodeSession(t, a.secret, a.cookieTTL, a.now())
	if err != nil {
		return err
	}
	a.setCookie(c, tokensCookie, value, a.cookieTTL)
	return nil
}

func (a *App) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, int(ttl.Seconds()), "/", "", c.Request.TLS != nil, true)
}

func (a *App) clearCookie(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", "", c.Request.TLS != nil, true)
}

func (a *App) fail(c *gin.Context, status int, err error) {
	a.logger.Error(c.Request.Context(), "request failed", "path", c.Request.URL.Path, "error", err)
	c.JSON(status, gin.H{"error": http.StatusText(status)})
}

func sameToken(a, b mondo.Token) bool {
	return a.AccessToken == b.AccessToken &&
		a.RefreshToken == b.RefreshToken &&
		a.AccountID == b.AccountID &&
		a.ExpiresAt.Equal(b.ExpiresAt)
}
