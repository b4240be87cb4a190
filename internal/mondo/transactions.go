package mondo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

const defaultTransactionLimit = 100

// ListTransactionsParams filters a transaction listing. Empty fields are
// left out of the query.
type ListTransactionsParams struct {
	// AccountID overrides and replaces the stored account scope.
	AccountID string
	// Limit defaults to 100.
	Limit int
	// Since is a timestamp or a transaction id.
	Since  string
	Before string
}

func (p ListTransactionsParams) query(accountID string) url.Values {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultTransactionLimit
	}
	q := url.Values{
		"account_id": {accountID},
		"expand[]":   {"merchant"},
		"limit":      {strconv.Itoa(limit)},
	}
	if p.Since != "" {
		q.Set("since", p.Since)
	}
	if p.Before != "" {
		q.Set("before", p.Before)
	}
	return q
}

func (c *Client) ListTransactions(ctx context.Context, p ListTransactionsParams) ([]Transaction, error) {
	id, err := c.scope(p.AccountID)
	if err != nil {
		return nil, err
	}
	var out struct {
		Transactions []Transaction `json:"transactions"`
	}
	if err := c.get(ctx, "transactions", p.query(id), &out); err != nil {
		return nil, err
	}
	return out.Transactions, nil
}

// GetTransaction fetches one transaction with its merchant expanded.
func (c *Client) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	if id == "" {
		return nil, fmt.Errorf("get transaction: %w", ErrEmptyID)
	}
	var out transactionEnvelope
	if err := c.get(ctx, transactionPath(id), url.Values{"expand[]": {"merchant"}}, &out); err != nil {
		return nil, err
	}
	if out.Transaction == nil {
		return nil, missingKey("get transaction", "transaction")
	}
	return out.Transaction, nil
}

// AnnotateTransaction sets metadata key/value pairs on a transaction and
// returns the updated record.
func (c *Client) AnnotateTransaction(ctx context.Context, id string, metadata map[string]string) (*Transaction, error) {
	form := url.Values{}
	for k, v := range metadata {
		form.Set(metadataKey(k), v)
	}
	return c.patchTransaction(ctx, id, form)
}

// RemoveAnnotations clears metadata keys. Keys that are not set are ignored
// by the API, so removing them again is harmless.
func (c *Client) RemoveAnnotations(ctx context.Context, id string, keys []string) (*Transaction, error) {
	form := url.Values{}
	for _, k := range keys {
		form.Set(metadataKey(k), "")
	}
	return c.patchTransaction(ctx, id, form)
}

func (c *Client) patchTransaction(ctx context.Context, id string, form url.Values) (*Transaction, error) {
	if id == "" {
		return nil, fmt.Errorf("annotate transaction: %w", ErrEmptyID)
	}
	var out transactionEnvelope
	if err := c.patch(ctx, transactionPath(id), form, &out); err != nil {
		return nil, err
	}
	if out.Transaction == nil {
		return nil, missingKey("annotate transaction", "transaction")
	}
	return out.Transaction, nil
}

type transactionEnvelope struct {
	Transaction *Transaction `json:"transaction"`
}

func transactionPath(id string) string {
	return "transactions/" + url.PathEscape(id)
}

func metadataKey(k string) string {
	return fmt.Sprintf("metadata[%s]", k)
}
