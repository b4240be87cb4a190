package sandbox

import (
	"crypto/subtle"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxClientID = "sandbox.client_id"

// authorize stands in for the login page: the user always approves, and the
// browser is sent straight back with a fresh single-use code.
func (s *Server) authorize(c *gin.Context) {
	clientID := c.Query("client_id")
	redirectURI := c.Query("redirect_uri")

	if clientID != s.clientID {
		apiError(c, http.StatusBadRequest, "bad_request.invalid_client", "unknown client_id")
		return
	}
	if c.Query("response_type") != "code" {
		apiError(c, http.StatusBadRequest, "bad_request.unsupported_response_type", "response_type must be code")
		return
	}
	target, err := url.Parse(redirectURI)
	if err != nil || !target.IsAbs() {
		apiError(c, http.StatusBadRequest, "bad_request.invalid_redirect_uri", "redirect_uri must be an absolute URL")
		return
	}

	code := newID("code")
	s.mu.Lock()
	s.codes[code] = authCode{
		clientID:    clientID,
		redirectURI: redirectURI,
		expiresAt:   s.now().Add(codeTTL),
	}
	s.mu.Unlock()

	q := target.Query()
	q.Set("code", code)
	if state := c.Query("state"); state != "" {
		q.Set("state", state)
	}
	target.RawQuery = q.Encode()

	s.logger.Info(c.Request.Context(), "authorization code issued", "client_id", clientID)
	c.Redirect(http.StatusFound, target.String())
}

// token implements the authorization_code and refresh_token grants.
// Codes and refresh tokens are single use.
func (s *Server) token(c *gin.Context) {
	if !s.validClient(c.PostForm("client_id"), c.PostForm("client_secret")) {
		tokenError(c, "invalid_client", "bad client credentials")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch c.PostForm("grant_type") {
	case "authorization_code":
		code := c.PostForm("code")
		grant, ok := s.codes[code]
		if !ok {
			tokenError(c, "invalid_grant", "authorization code is invalid or already used")
			return
		}
		delete(s.codes, code)
		if s.now().After(grant.expiresAt) {
			tokenError(c, "invalid_grant", "authorization code expired")
			return
		}
		if grant.clientID != c.PostForm("client_id") || grant.redirectURI != c.PostForm("redirect_uri") {
			tokenError(c, "invalid_grant", "redirect_uri does not match the authorization request")
			return
		}

	case "refresh_token":
		refresh := c.PostForm("refresh_token")
		old, ok := s.refreshTokens[refresh]
		if !ok || old.clientID != c.PostForm("client_id") {
			tokenError(c, "invalid_grant", "refresh token is invalid or revoked")
			return
		}
		delete(s.refreshTokens, refresh)
		delete(s.accessTokens, old.pair)

	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":             "unsupported_grant_type",
			"error_description": "grant_type must be authorization_code or refresh_token",
		})
		return
	}

	access, err := randHex(32)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	refresh, err := randHex(32)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	clientID := c.PostForm("client_id")
	s.accessTokens[access] = session{clientID: clientID, expiresAt: s.now().Add(s.tokenTTL), pair: refresh}
	s.refreshTokens[refresh] = session{clientID: clientID, pair: access}

	s.logger.Info(c.Request.Context(), "token issued",
		"grant_type", c.PostForm("grant_type"),
		"client_id", clientID,
	)
	c.JSON(http.StatusOK, gin.H{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "Bearer",
		"expires_in":    int64(s.tokenTTL.Seconds()),
		"client_id":     clientID,
		"user_id":       s.userID,
	})
}

func (s *Server) validClient(id, secret string) bool {
	return subtle.ConstantTimeCompare([]byte(id), []byte(s.clientID)) == 1 &&
		subtle.ConstantTimeCompare([]byte(secret), []byte(s.clientSecret)) == 1
}

func tokenError(c *gin.Context, code, description string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":             code,
		"error_description": description,
	})
}

// requireBearer rejects requests without a live access token.
func (s *Server) requireBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || token == "" {
			apiError(c, http.StatusUnauthorized, "unauthorized.bad_access_token", "missing bearer token")
			return
		}

		s.mu.Lock()
		sess, found := s.accessTokens[token]
		expired := found && s.now().After(sess.expiresAt)
		s.mu.Unlock()

		if !found {
			apiError(c, http.StatusUnauthorized, "unauthorized.bad_access_token", "access token is invalid")
			return
		}
		if expired {
			apiError(c, http.StatusUnauthorized, "unauthorized.bad_access_token.expired", "access token has expired")
			return
		}
		c.Set(ctxClientID, sess.clientID)
		c.Next()
	}
}
