package mondo

import (
	"context"
	"net/url"
)

// Whoami reports the identity behind the current access token.
func (c *Client) Whoami(ctx context.Context) (*Whoami, error) {
	var out Whoami
	if err := c.get(ctx, "ping/whoami", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	var out struct {
		Accounts []Account `json:"accounts"`
	}
	if err := c.get(ctx, "accounts", nil, &out); err != nil {
		return nil, err
	}
	return out.Accounts, nil
}

// Balance returns the balance of accountID, or of the stored scope when
// accountID is empty.
func (c *Client) Balance(ctx context.Context, accountID string) (*Balance, error) {
	id, err := c.scope(accountID)
	if err != nil {
		return nil, err
	}
	var out Balance
	if err := c.get(ctx, "balance", url.Values{"account_id": {id}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
