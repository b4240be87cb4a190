package mondo

import (
	"bytes"
	"encoding/json"
	"time"
)

// Whoami describes the identity behind the current access token.
type Whoami struct {
	Authenticated bool   `json:"authenticated"`
	ClientID      string `json:"client_id"`
	UserID        string `json:"user_id"`
}

type Account struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Created     time.Time `json:"created"`
}

// Balance amounts are in minor units of Currency.
type Balance struct {
	Balance    int64  `json:"balance"`
	Currency   string `json:"currency"`
	SpendToday int64  `json:"spend_today"`
}

type Transaction struct {
	ID             string            `json:"id"`
	AccountID      string            `json:"account_id,omitempty"`
	Created        time.Time         `json:"created"`
	Settled        string            `json:"settled,omitempty"`
	Description    string            `json:"description"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	LocalAmount    int64             `json:"local_amount,omitempty"`
	LocalCurrency  string            `json:"local_currency,omitempty"`
	AccountBalance int64             `json:"account_balance"`
	Category       string            `json:"category,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	IsLoad         bool              `json:"is_load"`
	DeclineReason  string            `json:"decline_reason,omitempty"`
	Metadata       map[string]string `json:"metadata"`
	Merchant       *Merchant         `json:"merchant,omitempty"`
	Attachments    []Attachment      `json:"attachments,omitempty"`
}

// Merchant is either a bare id or, when the listing asked for
// expand[]=merchant, the full record.
type Merchant struct {
	ID       string           `json:"id"`
	GroupID  string           `json:"group_id,omitempty"`
	Created  *time.Time       `json:"created,omitempty"`
	Name     string           `json:"name,omitempty"`
	Logo     string           `json:"logo,omitempty"`
	Emoji    string           `json:"emoji,omitempty"`
	Category string           `json:"category,omitempty"`
	Address  *MerchantAddress `json:"address,omitempty"`
}

type MerchantAddress struct {
	Address   string  `json:"address"`
	City      string  `json:"city"`
	Region    string  `json:"region,omitempty"`
	Country   string  `json:"country"`
	Postcode  string  `json:"postcode"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Expanded reports whether the merchant carries more than its id.
func (m *Merchant) Expanded() bool {
	return m != nil && m.Name != ""
}

func (m *Merchant) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var id string
		if err := json.Unmarshal(b, &id); err != nil {
			return err
		}
		*m = Merchant{ID: id}
		return nil
	}
	type plain Merchant
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*m = Merchant(p)
	return nil
}

type FeedItem struct {
	ID      string            `json:"id"`
	Type    string            `json:"type"`
	Created time.Time         `json:"created"`
	URL     string            `json:"url,omitempty"`
	Params  map[string]string `json:"params,omitempty"`
}

type Webhook struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	URL       string `json:"url"`
}

type Attachment struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id,omitempty"`
	ExternalID string    `json:"external_id"`
	FileURL    string    `json:"file_url"`
	FileType   string    `json:"file_type"`
	Created    time.Time `json:"created"`
}

// UploadedFile is the outcome of an attachment upload, ready to be passed to
// AttachFile.
type UploadedFile struct {
	FileURL  string `json:"file_url"`
	FileType string `json:"file_type"`
}
