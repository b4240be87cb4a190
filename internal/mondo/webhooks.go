package mondo

import (
	"context"
	"fmt"
	"net/url"
)

func (c *Client) ListWebhooks(ctx context.Context, accountID string) ([]Webhook, error) {
	id, err := c.scope(accountID)
	if err != nil {
		return nil, err
	}
	var out struct {
		Webhooks []Webhook `json:"webhooks"`
	}
	if err := c.get(ctx, "webhooks", url.Values{"account_id": {id}}, &out); err != nil {
		return nil, err
	}
	return out.Webhooks, nil
}

// CreateWebhook registers webhookURL to receive the account's events.
func (c *Client) CreateWebhook(ctx context.Context, webhookURL, accountID string) (*Webhook, error) {
	id, err := c.scope(accountID)
	if err != nil {
		return nil, err
	}
	form := url.Values{
		"account_id": {id},
		"url":        {webhookURL},
	}
	var out struct {
		Webhook *Webhook `json:"webhook"`
	}
	if err := c.post(ctx, "webhooks", form, &out); err != nil {
		return nil, err
	}
	if out.Webhook == nil {
		return nil, missingKey("create webhook", "webhook")
	}
	return out.Webhook, nil
}

// RemoveWebhook deletes a webhook. A non-empty accountID still replaces the
// stored scope even though the call itself is not account scoped.
// The decoded response body is returned as is.
func (c *Client) RemoveWebhook(ctx context.Context, webhookID, accountID string) (map[string]any, error) {
	if webhookID == "" {
		return nil, fmt.Errorf("remove webhook: %w", ErrEmptyID)
	}
	if accountID != "" {
		c.SetAccountID(accountID)
	}
	out := map[string]any{}
	if err := c.delete(ctx, "webhooks/"+url.PathEscape(webhookID), &out); err != nil {
		return nil, err
	}
	return out, nil
}
