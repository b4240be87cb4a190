package mondo

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/mondo/internal/timex"
)

// Token is the persisted token record of one user session.
//
// JSON form:
//
//	{"access_token": "...", "refresh_token": "...",
//	 "expires_at": "2016-03-01T10:00:00.000000Z", "account_id": "acc_..."}
type Token struct {
	AccessToken  string
	RefreshToken string
	// ExpiresAt is the UTC instant after which AccessToken is stale.
	// The zero value means the expiry is unknown and no proactive refresh
	// happens.
	ExpiresAt time.Time
	AccountID string
}

type tokenJSON struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    string `json:"expires_at,omitempty"`
	AccountID    string `json:"account_id,omitempty"`
}

func (t Token) MarshalJSON() ([]byte, error) {
	out := tokenJSON{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		AccountID:    t.AccountID,
	}
	if !t.ExpiresAt.IsZero() {
		out.ExpiresAt = timex.FormatMicro(t.ExpiresAt)
	}
	return json.Marshal(out)
}

func (t *Token) UnmarshalJSON(b []byte) error {
	var in tokenJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	var expiresAt time.Time
	if in.ExpiresAt != "" {
		parsed, err := timex.ParseMicro(in.ExpiresAt)
		if err != nil {
			return fmt.Errorf("expires_at: %w", err)
		}
		expiresAt = parsed
	}
	*t = Token{
		AccessToken:  in.AccessToken,
		RefreshToken: in.RefreshToken,
		ExpiresAt:    expiresAt,
		AccountID:    in.AccountID,
	}
	return nil
}

// Expired reports whether the access token is stale at now.
func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// Grant is the token endpoint payload returned by ExchangeCode and
// RefreshToken, extended with the computed ExpiresAt.
type Grant struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	ExpiresAt    time.Time
	UserID       string
	ClientID     string
	// Extra holds the remaining members of the token endpoint payload.
	Extra map[string]any
}

var grantFields = []string{
	"access_token", "refresh_token", "token_type", "expires_in", "user_id", "client_id",
}

// MarshalJSON writes the typed fields over Extra, so the output is the
// full payload plus expires_at.
func (g Grant) MarshalJSON() ([]byte, error) {
	typed := struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type,omitempty"`
		ExpiresIn    int64  `json:"expires_in"`
		ExpiresAt    string `json:"expires_at,omitempty"`
		UserID       string `json:"user_id,omitempty"`
		ClientID     string `json:"client_id,omitempty"`
	}{
		AccessToken:  g.AccessToken,
		RefreshToken: g.RefreshToken,
		TokenType:    g.TokenType,
		ExpiresIn:    g.ExpiresIn,
		UserID:       g.UserID,
		ClientID:     g.ClientID,
	}
	if !g.ExpiresAt.IsZero() {
		typed.ExpiresAt = timex.FormatMicro(g.ExpiresAt)
	}
	if len(g.Extra) == 0 {
		return json.Marshal(typed)
	}

	b, err := json.Marshal(typed)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(g.Extra)+len(grantFields)+1)
	for k, v := range g.Extra {
		out[k] = v
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// Token converts the grant into a persistable record without account scope.
func (g Grant) Token() Token {
	return Token{
		AccessToken:  g.AccessToken,
		RefreshToken: g.RefreshToken,
		ExpiresAt:    g.ExpiresAt,
	}
}
