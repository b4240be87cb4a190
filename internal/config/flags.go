package config

import (
	"flag"

	"github.com/dmitrijs2005/mondo/internal/flagx"
)

var flagNames = []string{
	"-client-id", "-client-secret", "-login-url", "-api-url", "-auth-url",
	"-web-addr", "-cookie-secret", "-cookie-ttl",
	"-sandbox-addr", "-sandbox-url", "-token-ttl",
	"-s3-bucket", "-s3-region", "-s3-endpoint", "-s3-access-key", "-s3-secret-key",
	"-store-dir", "-store-dsn", "-store-passphrase", "-store-key",
	"-log-level", "-log-format",
}

// parseFlags overrides config with the recognised flags in args. Anything
// else on the command line is ignored. Bad values panic.
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, flagNames)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.Client.ClientID, "client-id", config.Client.ClientID, "OAuth2 client id")
	fs.StringVar(&config.Client.ClientSecret, "client-secret", config.Client.ClientSecret, "OAuth2 client secret")
	fs.StringVar(&config.Client.LoginURL, "login-url", config.Client.LoginURL, "OAuth2 redirect URI")
	fs.StringVar(&config.Client.APIURL, "api-url", config.Client.APIURL, "API base URL")
	fs.StringVar(&config.Client.AuthURL, "auth-url", config.Client.AuthURL, "authorization page URL")

	fs.StringVar(&config.Web.Addr, "web-addr", config.Web.Addr, "address and port to run the web example")
	fs.StringVar(&config.Web.CookieSecret, "cookie-secret", config.Web.CookieSecret, "token cookie signing secret")
	fs.DurationVar(&config.Web.CookieTTL, "cookie-ttl", config.Web.CookieTTL, "token cookie lifetime")

	fs.StringVar(&config.Sandbox.Addr, "sandbox-addr", config.Sandbox.Addr, "address and port to run the sandbox")
	fs.StringVar(&config.Sandbox.PublicURL, "sandbox-url", config.Sandbox.PublicURL, "public base URL of the sandbox")
	fs.DurationVar(&config.Sandbox.TokenTTL, "token-ttl", config.Sandbox.TokenTTL, "access token lifetime issued by the sandbox")
	fs.StringVar(&config.Sandbox.S3.Bucket, "s3-bucket", config.Sandbox.S3.Bucket, "S3 bucket for attachments")
	fs.StringVar(&config.Sandbox.S3.Region, "s3-region", config.Sandbox.S3.Region, "S3 region")
	fs.StringVar(&config.Sandbox.S3.BaseEndpoint, "s3-endpoint", config.Sandbox.S3.BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.Sandbox.S3.AccessKey, "s3-access-key", config.Sandbox.S3.AccessKey, "S3 access key")
	fs.StringVar(&config.Sandbox.S3.SecretKey, "s3-secret-key", config.Sandbox.S3.SecretKey, "S3 secret key")

	fs.StringVar(&config.Store.Dir, "store-dir", config.Store.Dir, "file token store directory")
	fs.StringVar(&config.Store.DSN, "store-dsn", config.Store.DSN, "PostgreSQL DSN for the token store")
	fs.StringVar(&config.Store.Passphrase, "store-passphrase", config.Store.Passphrase, "passphrase encrypting stored tokens")
	fs.StringVar(&config.Store.Key, "store-key", config.Store.Key, "key the token record is saved under")

	fs.StringVar(&config.Log.Level, "log-level", config.Log.Level, "log level")
	fs.StringVar(&config.Log.Format, "log-format", config.Log.Format, "log format (text or json)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
