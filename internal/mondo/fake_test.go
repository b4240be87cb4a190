package mondo

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// ---- fake API ----

type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
	Header http.Header
}

type fakeAPI struct {
	t   *testing.T
	srv *httptest.Server
	mux *http.ServeMux

	mu       sync.Mutex
	requests []recordedRequest

	// token endpoint behaviour
	tokenStatus    int
	expiresIn      int64
	omitRefresh    bool
	issuedAccess   string
	issuedRefresh  string
	tokenExtra     map[string]any
	tokenCalls     int
	lastTokenForm  url.Values
	metadata       map[string]string
	accounts       []Account
	uploadedBody   []byte
	uploadedHeader http.Header

	// emptyBodies answers every resource call with {}
	emptyBodies bool
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{
		t:             t,
		mux:           http.NewServeMux(),
		tokenStatus:   http.StatusOK,
		expiresIn:     21600,
		issuedAccess:  "access-new",
		issuedRefresh: "refresh-new",
		metadata:      map[string]string{},
		accounts: []Account{
			{ID: "acc_1", Description: "Peter Pan's Account", Created: time.Date(2015, 11, 13, 12, 17, 42, 0, time.UTC)},
		},
	}
	f.routes()
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	rec := recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Form:   r.PostForm,
		Header: r.Header.Clone(),
	}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	empty := f.emptyBodies
	f.mu.Unlock()
	if empty && r.URL.Path != "/oauth2/token" {
		f.writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	f.mux.ServeHTTP(w, r)
}

func (f *fakeAPI) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(f.t, json.NewEncoder(w).Encode(v))
}

func (f *fakeAPI) routes() {
	f.mux.HandleFunc("POST /oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.tokenCalls++
		f.lastTokenForm = r.PostForm
		if f.tokenStatus != http.StatusOK {
			f.writeJSON(w, f.tokenStatus, map[string]string{"error": "invalid_grant"})
			return
		}
		body := map[string]any{
			"access_token": f.issuedAccess,
			"token_type":   "Bearer",
			"expires_in":   f.expiresIn,
			"user_id":      "user_1",
			"client_id":    r.PostForm.Get("client_id"),
		}
		if !f.omitRefresh {
			body["refresh_token"] = f.issuedRefresh
		}
		for k, v := range f.tokenExtra {
			body[k] = v
		}
		f.writeJSON(w, http.StatusOK, body)
	})

	f.mux.HandleFunc("GET /ping/whoami", func(w http.ResponseWriter, r *http.Request) {
		f.writeJSON(w, http.StatusOK, Whoami{Authenticated: true, ClientID: "client_1", UserID: "user_1"})
	})

	f.mux.HandleFunc("GET /accounts", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.writeJSON(w, http.StatusOK, map[string]any{"accounts": f.accounts})
	})

	f.mux.HandleFunc("GET /balance", func(w http.ResponseWriter, r *http.Request) {
		f.writeJSON(w, http.StatusOK, Balance{Balance: 5000, Currency: "GBP", SpendToday: -120})
	})

	f.mux.HandleFunc("GET /transactions", func(w http.ResponseWriter, r *http.Request) {
		f.writeJSON(w, http.StatusOK, map[string]any{"transactions": []map[string]any{
			{"id": "tx_1", "amount": -510, "currency": "GBP", "merchant": "merch_1", "created": "2015-08-22T12:20:18Z"},
			{"id": "tx_2", "amount": -679, "currency": "GBP", "created": "2015-08-23T12:20:18Z",
				"merchant": map[string]any{"id": "merch_2", "name": "The De Beauvoir Deli Co.", "category": "eating_out"}},
		}})
	})

	f.mux.HandleFunc("GET /transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.writeJSON(w, http.StatusOK, map[string]any{"transaction": map[string]any{
			"id": r.PathValue("id"), "amount": -510, "currency": "GBP",
		}})
	})

	f.mux.HandleFunc("PATCH /transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		for k, vs := range r.PostForm {
			key, ok := metadataFormKey(k)
			if !ok {
				continue
			}
			if vs[0] == "" {
				delete(f.metadata, key)
			} else {
				f.metadata[key] = vs[0]
			}
		}
		md := make(map[string]string, len(f.metadata))
		for k, v := range f.metadata {
			md[k] = v
		}
		f.writeJSON(w, http.StatusOK, map[string]any{"transaction": map[string]any{
			"id": r.PathValue("id"), "metadata": md,
		}})
	})

	f.mux.HandleFunc("GET /feed", func(w http.ResponseWriter, r *http.Request) {
		f.writeJSON(w, http.StatusOK, map[string]any{"items": []map[string]any{
			{"id": "feed_1", "type": "basic", "params": map[string]string{"title": "hello"}},
		}})
	})
	f.mux.HandleFunc("POST /feed", func(w http.ResponseWriter, r *http.Request) {
		f.writeJSON(w, http.StatusOK, map[string]any{})
	})

	f.mux.HandleFunc("GET /webhooks", func(w http.ResponseWriter, r *http.Request) {
		f.writeJSON(w, http.StatusOK, map[string]any{"webhooks": []Webhook{
			{ID: "webhook_1", AccountID: r.URL.Query().Get("account_id"), URL: "http://example.com/hook"},
		}})
	})
	f.mux.HandleFunc("POST /webhooks", func(w http.ResponseWriter, r *http.Request) {
		f.writeJSON(w, http.StatusOK, map[string]any{"webhook": Webhook{
			ID: "webhook_2", AccountID: r.PostForm.Get("account_id"), URL: r.PostForm.Get("url"),
		}})
	})
	f.mux.HandleFunc("DELETE /webhooks/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.writeJSON(w, http.StatusOK, map[string]any{})
	})

	f.mux.HandleFunc("POST /attachment/upload", func(w http.ResponseWriter, r *http.Request) {
		f.writeJSON(w, http.StatusOK, map[string]string{
			"file_url":   "https://files.example/" + r.PostForm.Get("file_name"),
			"upload_url": f.srv.URL + "/upload-slot/" + r.PostForm.Get("file_name"),
		})
	})
	f.mux.HandleFunc("PUT /upload-slot/{name}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.uploadedHeader = r.Header.Clone()
		body, err := io.ReadAll(r.Body)
		require.NoError(f.t, err)
		f.uploadedBody = body
		w.WriteHeader(http.StatusOK)
	})
	f.mux.HandleFunc("POST /attachment/register", func(w http.ResponseWriter, r *http.Request) {
		f.writeJSON(w, http.StatusOK, map[string]any{"attachment": Attachment{
			ID: "attach_1", ExternalID: r.PostForm.Get("external_id"),
			FileURL: r.PostForm.Get("file_url"), FileType: r.PostForm.Get("file_type"),
		}})
	})
	f.mux.HandleFunc("POST /attachment/deregister", func(w http.ResponseWriter, r *http.Request) {
		f.writeJSON(w, http.StatusOK, map[string]any{})
	})
}

// requestsTo returns the recorded requests for path, in arrival order.
func (f *fakeAPI) requestsTo(path string) []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedRequest
	for _, r := range f.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeAPI) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, r.Method+" "+r.Path)
	}
	return out
}

// ---- client helpers ----

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestClient(t *testing.T, f *fakeAPI, clock *fixedClock, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithHTTPClient(f.srv.Client()), WithClock(clock.Now)}, opts...)
	c, err := New(Config{
		ClientID:     "client_1",
		ClientSecret: "secret_1",
		LoginURL:     "http://localhost:5000/login/",
		APIURL:       f.srv.URL,
		AuthURL:      f.srv.URL + "/authorize",
	}, opts...)
	require.NoError(t, err)
	return c
}

func metadataFormKey(k string) (string, bool) {
	rest, ok := strings.CutPrefix(k, "metadata[")
	if !ok {
		return "", false
	}
	return strings.CutSuffix(rest, "]")
}
