package sandbox

import (
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/mondo/internal/mondo"
)

func (s *Server) whoami(c *gin.Context) {
	c.JSON(http.StatusOK, mondo.Whoami{
		Authenticated: true,
		ClientID:      c.GetString(ctxClientID),
		UserID:        s.userID,
	})
}

func (s *Server) listAccounts(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"accounts": s.accounts})
}

// requireAccount resolves the account_id of a query or form. It writes the
// error response itself and returns false when the account is unusable.
// Callers hold s.mu.
func (s *Server) requireAccount(c *gin.Context, accountID string) bool {
	if accountID == "" {
		apiError(c, http.StatusBadRequest, "bad_request.missing_param.account_id", "account_id is required")
		return false
	}
	for _, a := range s.accounts {
		if a.ID == accountID {
			return true
		}
	}
	apiError(c, http.StatusForbidden, "forbidden.insufficient_permissions", "account not accessible")
	return false
}

func (s *Server) balance(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountID := c.Query("account_id")
	if !s.requireAccount(c, accountID) {
		return
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	var out mondo.Balance
	out.Currency = "GBP"
	for _, tx := range s.transactions {
		if tx.AccountID != accountID || tx.DeclineReason != "" {
			continue
		}
		out.Balance += tx.Amount
		if tx.Amount < 0 && !tx.Created.Before(today) {
			out.SpendToday += tx.Amount
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) listTransactions(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountID := c.Query("account_id")
	if !s.requireAccount(c, accountID) {
		return
	}

	limit := maxPageLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			apiError(c, http.StatusBadRequest, "bad_request.bad_param.limit", "limit must be a positive integer")
			return
		}
		limit = min(n, maxPageLimit)
	}

	since, sinceID, ok := parseBound(c, "since")
	if !ok {
		return
	}
	before, _, ok := parseBound(c, "before")
	if !ok {
		return
	}

	var all []mondo.Transaction
	for _, tx := range s.transactions {
		if tx.AccountID == accountID {
			all = append(all, *tx)
		}
	}
	all = sortedByCreated(all)

	if sinceID != "" {
		idx := slices.IndexFunc(all, func(t mondo.Transaction) bool { return t.ID == sinceID })
		if idx < 0 {
			apiError(c, http.StatusBadRequest, "bad_request.bad_param.since", "unknown transaction id")
			return
		}
		all = all[idx+1:]
	}

	expand := expandMerchant(c)
	out := make([]transactionView, 0, len(all))
	for _, tx := range all {
		if !since.IsZero() && tx.Created.Before(since) {
			continue
		}
		if !before.IsZero() && !tx.Created.Before(before) {
			continue
		}
		out = append(out, render(tx, expand))
		if len(out) == limit {
			break
		}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out})
}

func (s *Server) getTransaction(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[c.Param("id")]
	if !ok {
		apiError(c, http.StatusNotFound, "not_found.transaction", "transaction not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": render(*tx, expandMerchant(c))})
}

// annotateTransaction applies metadata[key]=value pairs. An empty value
// removes the key.
func (s *Server) annotateTransaction(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		apiError(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[c.Param("id")]
	if !ok {
		apiError(c, http.StatusNotFound, "not_found.transaction", "transaction not found")
		return
	}

	for field, values := range c.Request.PostForm {
		key, ok := strings.CutPrefix(field, "metadata[")
		if !ok {
			continue
		}
		key, ok = strings.CutSuffix(key, "]")
		if !ok || key == "" {
			continue
		}
		if v := values[len(values)-1]; v == "" {
			delete(tx.Metadata, key)
		} else {
			tx.Metadata[key] = v
		}
	}
	c.JSON(http.StatusOK, gin.H{"transaction": render(*tx, false)})
}

func (s *Server) listFeed(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountID := c.Query("account_id")
	if !s.requireAccount(c, accountID) {
		return
	}
	items := s.feed[accountID]
	if items == nil {
		items = []mondo.FeedItem{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) createFeedItem(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountID := c.PostForm("account_id")
	if !s.requireAccount(c, accountID) {
		return
	}
	if c.PostForm("type") != "basic" {
		apiError(c, http.StatusBadRequest, "bad_request.bad_param.type", "only basic feed items are supported")
		return
	}

	params := c.PostFormMap("params")
	for _, required := range []string{"title", "image_url"} {
		if params[required] == "" {
			apiError(c, http.StatusBadRequest, "bad_request.missing_param.params."+required, required+" is required")
			return
		}
	}

	s.feed[accountID] = append(s.feed[accountID], mondo.FeedItem{
		ID:      newID("feeditem"),
		Type:    "basic",
		Created: s.now().UTC(),
		URL:     c.PostForm("url"),
		Params:  params,
	})
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) listWebhooks(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountID := c.Query("account_id")
	if !s.requireAccount(c, accountID) {
		return
	}
	out := []mondo.Webhook{}
	for _, id := range slices.Sorted(maps.Keys(s.webhooks)) {
		if w := s.webhooks[id]; w.AccountID == accountID {
			out = append(out, w)
		}
	}
	c.JSON(http.StatusOK, gin.H{"webhooks": out})
}

func (s *Server) createWebhook(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountID := c.PostForm("account_id")
	if !s.requireAccount(c, accountID) {
		return
	}
	if c.PostForm("url") == "" {
		apiError(c, http.StatusBadRequest, "bad_request.missing_param.url", "url is required")
		return
	}

	w := mondo.Webhook{ID: newID("webhook"), AccountID: accountID, URL: c.PostForm("url")}
	s.webhooks[w.ID] = w
	c.JSON(http.StatusOK, gin.H{"webhook": w})
}

func (s *Server) deleteWebhook(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := c.Param("id")
	if _, ok := s.webhooks[id]; !ok {
		apiError(c, http.StatusNotFound, "not_found.webhook", "webhook not found")
		return
	}
	delete(s.webhooks, id)
	c.JSON(http.StatusOK, gin.H{})
}

// transactionView renders the merchant either as its id or, with
// expand[]=merchant, as the full record.
type transactionView struct {
	mondo.Transaction
	Merchant any `json:"merchant"`
}

func render(tx mondo.Transaction, expand bool) transactionView {
	v := transactionView{Transaction: tx}
	v.Metadata = maps.Clone(tx.Metadata)
	v.Attachments = slices.Clone(tx.Attachments)
	switch {
	case tx.Merchant == nil:
		v.Merchant = nil
	case expand:
		m := *tx.Merchant
		v.Merchant = &m
	default:
		v.Merchant = tx.Merchant.ID
	}
	return v
}

func expandMerchant(c *gin.Context) bool {
	return slices.Contains(c.QueryArray("expand[]"), "merchant")
}

// parseBound reads a since/before pagination bound: an RFC 3339 timestamp
// or, for since only, a transaction id.
func parseBound(c *gin.Context, name string) (time.Time, string, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, "", true
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, "", true
	}
	if name == "since" && strings.HasPrefix(raw, "tx_") {
		return time.Time{}, raw, true
	}
	apiError(c, http.StatusBadRequest, "bad_request.bad_param."+name, name+" must be an RFC 3339 timestamp")
	return time.Time{}, "", false
}

func sortedByCreated(txs []mondo.Transaction) []mondo.Transaction {
	out := slices.Clone(txs)
	slices.SortStableFunc(out, func(a, b mondo.Transaction) int {
		if c := a.Created.Compare(b.Created); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}
