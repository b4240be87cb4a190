package setupaccess

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"

	"github.com/dmitrijs2005/mondo/internal/config"
	"github.com/dmitrijs2005/mondo/internal/logging"
	"github.com/dmitrijs2005/mondo/internal/mondo"
	"github.com/dmitrijs2005/mondo/internal/tokenstore"
)

var (
	ErrNoCode       = errors.New("redirected URL carries no code")
	ErrAccessDenied = errors.New("authorization was not granted")
	ErrMissingInput = errors.New("required value not provided")
)

// openStore is a test seam for tokenstore.New.
var openStore = tokenstore.New

// App is the interactive setup flow.
type App struct {
	cfg    *config.Config
	in     *bufio.Reader
	out    io.Writer
	logger logging.Logger
	opts   []mondo.Option
}

// NewApp builds the flow around cfg, reading answers from in and writing
// prompts to out. opts are passed to the API client.
func NewApp(cfg *config.Config, logger logging.Logger, in io.Reader, out io.Writer, opts ...mondo.Option) *App {
	return &App{
		cfg:    cfg,
		in:     bufio.NewReader(in),
		out:    out,
		logger: logger,
		opts:   append([]mondo.Option{mondo.WithLogger(logger)}, opts...),
	}
}

// Run performs the whole setup and returns the saved record.
func (a *App) Run(ctx context.Context) (mondo.Token, error) {
	if err := a.askCredentials(); err != nil {
		return mondo.Token{}, err
	}

	client, err := mondo.New(a.cfg.Client.Mondo(), a.opts...)
	if err != nil {
		return mondo.Token{}, err
	}

	authURL := client.AuthorizationURL()
	fmt.Fprintf(a.out, "Open this URL in a browser and log in:\n\n    %s\n\n", authURL)
	if err := openBrowser(authURL); err != nil {
		a.logger.Warn(ctx, "could not open browser", "error", err)
	}

	redirected, err := readLine(a.in, a.out, "Paste the full URL you were redirected to")
	if err != nil {
		return mondo.Token{}, fmt.Errorf("read redirected url: %w", err)
	}
	code, err := CodeFromRedirect(redirected)
	if err != nil {
		return mondo.Token{}, err
	}

	grant, err := client.ExchangeCode(ctx, code)
	if err != nil {
		return mondo.Token{}, fmt.Errorf("exchange code: %w", err)
	}
	tok, err := client.AdoptTokens(ctx, grant.Token())
	if err != nil {
		return mondo.Token{}, fmt.Errorf("resolve account: %w", err)
	}

	if err := a.askPassphrase(); err != nil {
		return mondo.Token{}, err
	}
	if err := a.save(ctx, tok); err != nil {
		return mondo.Token{}, err
	}
	a.logger.Info(ctx, "token record saved", "user_id", grant.UserID, "account_id", tok.AccountID)
	return tok, nil
}

func (a *App) askCredentials() error {
	c := &a.cfg.Client
	if c.ClientID == "" {
		id, err := readLine(a.in, a.out, "Client ID")
		if err != nil {
			return fmt.Errorf("read client id: %w", err)
		}
		if id == "" {
			return fmt.Errorf("%w: client id", ErrMissingInput)
		}
		c.ClientID = id
	}
	if c.ClientSecret == "" {
		secret, err := readSecret(a.out, "Client secret")
		if err != nil {
			return fmt.Errorf("read client secret: %w", err)
		}
		if secret == "" {
			return fmt.Errorf("%w: client secret", ErrMissingInput)
		}
		c.ClientSecret = secret
	}
	return nil
}

// askPassphrase offers encryption for the file store. An empty answer
// keeps the file in plain JSON.
func (a *App) askPassphrase() error {
	s := &a.cfg.Store
	if s.DSN != "" || s.Passphrase != "" {
		return nil
	}
	p, err := readSecret(a.out, "Passphrase to encrypt the token file (empty for none)")
	if err != nil {
		return fmt.Errorf("read passphrase: %w", err)
	}
	s.Passphrase = p
	return nil
}

func (a *App) save(ctx context.Context, tok mondo.Token) error {
	store, err := openStore(ctx, a.cfg.Store)
	if err != nil {
		return fmt.Errorf("open token store: %w", err)
	}
	defer store.Close()

	if err := store.Save(ctx, a.cfg.Store.Key, tok); err != nil {
		return fmt.Errorf("save token record: %w", err)
	}

	if fs, ok := store.(*tokenstore.FileStore); ok {
		path := fs.Path(a.cfg.Store.Key)
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		fmt.Fprintf(a.out, "Token record written to %s\n", path)
		return nil
	}
	fmt.Fprintf(a.out, "Token record saved under key %q\n", a.cfg.Store.Key)
	return nil
}

// CodeFromRedirect extracts the authorization code from the URL the
// provider redirected the browser to.
func CodeFromRedirect(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse redirected url: %w", err)
	}
	q := u.Query()
	if reason := q.Get("error"); reason != "" {
		if desc := q.Get("error_description"); desc != "" {
			return "", fmt.Errorf("%w: %s: %s", ErrAccessDenied, reason, desc)
		}
		return "", fmt.Errorf("%w: %s", ErrAccessDenied, reason)
	}
	code := q.Get("code")
	if code == "" {
		return "", ErrNoCode
	}
	return code, nil
}
