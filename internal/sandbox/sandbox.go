// Package sandbox is an in-memory emulator of the banking API. It speaks
// the same wire protocol as the remote service: the authorization page, the
// OAuth2 token endpoint and the bearer-protected JSON resources.
//
// All state lives in memory behind one mutex and is lost on restart.
package sandbox

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/mondo/internal/logging"
	"github.com/dmitrijs2005/mondo/internal/mondo"
)

const (
	DefaultClientID     = "oauthclient_sandbox"
	DefaultClientSecret = "sandbox-secret"

	codeTTL      = 10 * time.Minute
	maxPageLimit = 100
)

// Options configure a Server. Zero values fall back to sandbox defaults.
type Options struct {
	ClientID     string
	ClientSecret string
	// TokenTTL is the lifetime of issued access tokens (expires_in).
	TokenTTL time.Duration
	// PublicURL is the base URL clients reach the sandbox at.
	PublicURL string
	// Presigner hands out attachment upload URLs. Defaults to a
	// LocalPresigner rooted at PublicURL.
	Presigner Presigner
	Logger    logging.Logger
	Now       func() time.Time
	// Seed populates the initial data. Defaults to DefaultSeed.
	Seed func(now time.Time) Seed
}

// Server holds the emulated service state.
type Server struct {
	clientID     string
	clientSecret string
	tokenTTL     time.Duration
	presigner    Presigner
	logger       logging.Logger
	now          func() time.Time

	mu            sync.Mutex
	userID        string
	codes         map[string]authCode
	accessTokens  map[string]session
	refreshTokens map[string]session
	accounts      []mondo.Account
	transactions  map[string]*mondo.Transaction
	feed          map[string][]mondo.FeedItem
	webhooks      map[string]mondo.Webhook
	attachments   map[string]mondo.Attachment
}

type authCode struct {
	clientID    string
	redirectURI string
	expiresAt   time.Time
}

type session struct {
	clientID  string
	expiresAt time.Time
	// pair links an access token to its refresh token and back.
	pair string
}

func New(opts Options) *Server {
	if opts.ClientID == "" {
		opts.ClientID = DefaultClientID
	}
	if opts.ClientSecret == "" {
		opts.ClientSecret = DefaultClientSecret
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 6 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Presigner == nil {
		opts.Presigner = NewLocalPresigner(opts.PublicURL)
	}
	if opts.Seed == nil {
		opts.Seed = DefaultSeed
	}

	s := &Server{
		clientID:      opts.ClientID,
		clientSecret:  opts.ClientSecret,
		tokenTTL:      opts.TokenTTL,
		presigner:     opts.Presigner,
		logger:        opts.Logger,
		now:           opts.Now,
		codes:         map[string]authCode{},
		accessTokens:  map[string]session{},
		refreshTokens: map[string]session{},
		transactions:  map[string]*mondo.Transaction{},
		feed:          map[string][]mondo.FeedItem{},
		webhooks:      map[string]mondo.Webhook{},
		attachments:   map[string]mondo.Attachment{},
	}
	s.load(opts.Seed(s.now().UTC()))
	return s
}

// Handler returns the HTTP surface of the sandbox.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	// the remote API rejects trailing slashes rather than redirecting
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/authorize", s.authorize)
	r.POST("/oauth2/token", s.token)

	api := r.Group("/", s.requireBearer())
	api.GET("/ping/whoami", s.whoami)
	api.GET("/accounts", s.listAccounts)
	api.GET("/balance", s.balance)
	api.GET("/transactions", s.listTransactions)
	api.GET("/transactions/:id", s.getTransaction)
	api.PATCH("/transactions/:id", s.annotateTransaction)
	api.GET("/feed", s.listFeed)
	api.POST("/feed", s.createFeedItem)
	api.GET("/webhooks", s.listWebhooks)
	api.POST("/webhooks", s.createWebhook)
	api.DELETE("/webhooks/:id", s.deleteWebhook)
	api.POST("/attachment/upload", s.uploadAttachment)
	api.POST("/attachment/register", s.registerAttachment)
	api.POST("/attachment/deregister", s.deregisterAttachment)

	if rt, ok := s.presigner.(routable); ok {
		rt.register(r)
	}

	r.NoRoute(func(c *gin.Context) {
		apiError(c, http.StatusNotFound, "not_found", "no such endpoint")
	})
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug(c.Request.Context(), "sandbox request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// apiError writes the error body shape used by the remote API.
func apiError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": code, "message": message})
}
