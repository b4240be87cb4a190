package mondo

import (
	"context"
	"net/url"
)

// FeedItemParams describes a basic feed item. Title and ImageURL are
// required by the API, the rest is optional.
type FeedItemParams struct {
	AccountID string

	Title    string
	ImageURL string
	// URL is opened when the user taps the item.
	URL             string
	Body            string
	BackgroundColor string
	TitleColor      string
	BodyColor       string
}

func (p FeedItemParams) form(accountID string) url.Values {
	f := url.Values{
		"account_id":        {accountID},
		"type":              {"basic"},
		"params[title]":     {p.Title},
		"params[image_url]": {p.ImageURL},
	}
	optional := map[string]string{
		"url":                      p.URL,
		"params[body]":             p.Body,
		"params[background_color]": p.BackgroundColor,
		"params[title_color]":      p.TitleColor,
		"params[body_color]":       p.BodyColor,
	}
	for k, v := range optional {
		if v != "" {
			f.Set(k, v)
		}
	}
	return f
}

func (c *Client) ListFeedItems(ctx context.Context, accountID string) ([]FeedItem, error) {
	id, err := c.scope(accountID)
	if err != nil {
		return nil, err
	}
	var out struct {
		Items []FeedItem `json:"items"`
	}
	if err := c.get(ctx, "feed", url.Values{"account_id": {id}}, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// CreateFeedItem posts a basic item into the account's feed and returns the
// decoded response body, which the API leaves empty.
func (c *Client) CreateFeedItem(ctx context.Context, p FeedItemParams) (map[string]any, error) {
	id, err := c.scope(p.AccountID)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := c.post(ctx, "feed", p.form(id), &out); err != nil {
		return nil, err
	}
	return out, nil
}
