package config

import (
	"os"
	"time"

	"github.com/dmitrijs2005/mondo/internal/mondo"
)

// Config holds the settings of every binary. Each binary reads only the
// sections it needs.
type Config struct {
	Client  ClientConfig
	Web     WebConfig
	Sandbox SandboxConfig
	Store   StoreConfig
	Log     LogConfig
}

// ClientConfig is the OAuth2 application registration.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	LoginURL     string
	APIURL       string
	AuthURL      string
}

// Mondo converts the section into the API client configuration.
func (c ClientConfig) Mondo() mondo.Config {
	return mondo.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		LoginURL:     c.LoginURL,
		APIURL:       c.APIURL,
		AuthURL:      c.AuthURL,
	}
}

type WebConfig struct {
	Addr string
	// CookieSecret signs the token cookie. Do not use the default in prod.
	CookieSecret string
	CookieTTL    time.Duration
}

type SandboxConfig struct {
	Addr string
	// PublicURL is the base URL clients reach the sandbox at. Upload URLs
	// served by the sandbox itself are built from it.
	PublicURL string
	TokenTTL  time.Duration
	S3        S3Config
}

// S3Config enables presigned attachment uploads when Bucket is set.
type S3Config struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	PresignTTL   time.Duration
}

// Enabled reports whether uploads should go to S3.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

type StoreConfig struct {
	Dir string
	// DSN selects the PostgreSQL store when non-empty.
	DSN        string
	Passphrase string
	Key        string
}

type LogConfig struct {
	Level  string
	Format string
}

// LoadDefaults populates Config with development defaults.
// NOTE: the cookie secret default is insecure and must be overridden.
func (c *Config) LoadDefaults() {
	c.Client = ClientConfig{
		LoginURL: "http://localhost:5000/login/",
		APIURL:   mondo.DefaultAPIURL,
		AuthURL:  mondo.DefaultAuthURL,
	}
	c.Web = WebConfig{
		Addr:         ":5000",
		CookieSecret: "secretKey",
		CookieTTL:    30 * 24 * time.Hour,
	}
	c.Sandbox = SandboxConfig{
		Addr:      ":8090",
		PublicURL: "http://127.0.0.1:8090",
		TokenTTL:  6 * time.Hour,
		S3: S3Config{
			Region:     "us-east-1",
			PresignTTL: 15 * time.Minute,
		},
	}
	c.Store = StoreConfig{
		Dir: ".",
		Key: "token_info",
	}
	c.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Load builds a Config from defaults, the JSON file named in args and
// finally the flags in args. It panics on unreadable or malformed input.
func Load(args []string) *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, args)
	parseFlags(cfg, args)
	return cfg
}

// LoadConfig is Load over the process arguments.
func LoadConfig() *Config {
	return Load(os.Args[1:])
}
