// Package config loads runtime configuration shared by the mondo binaries
// (webexample, setupaccess, sandbox).
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-client-id string          OAuth2 client id
//	-client-secret string      OAuth2 client secret
//	-login-url string          redirect URI registered with the provider
//	-api-url string            API base URL
//	-auth-url string           authorization page URL
//	-web-addr string           web example bind address
//	-cookie-secret string      HMAC secret for the token cookie
//	-cookie-ttl duration       token cookie lifetime
//	-sandbox-addr string       sandbox bind address
//	-sandbox-url string        public base URL of the sandbox
//	-token-ttl duration        access token lifetime issued by the sandbox
//	-s3-bucket string          bucket for presigned attachment uploads
//	-s3-region string          S3 region
//	-s3-endpoint string        S3 base endpoint (MinIO etc.)
//	-s3-access-key string      S3 access key
//	-s3-secret-key string      S3 secret key
//	-store-dir string          directory of the file token store
//	-store-dsn string          PostgreSQL DSN; selects the database token store
//	-store-passphrase string   passphrase encrypting file store records
//	-store-key string          key the token record is saved under
//	-log-level string          debug, info, warn or error
//	-log-format string         text or json
//
// # JSON schema
//
// Durations are strings like "6h" or integer nanoseconds. Missing keys keep
// their defaults:
//
//	{
//	  "client": {"client_id": "oauthclient_1", "client_secret": "...",
//	             "login_url": "http://localhost:5000/login/"},
//	  "web": {"addr": ":5000", "cookie_secret": "...", "cookie_ttl": "720h"},
//	  "sandbox": {"addr": ":8090", "token_ttl": "6h",
//	              "s3": {"bucket": "attachments", "region": "us-east-1"}},
//	  "store": {"dir": ".", "key": "token_info"},
//	  "log": {"level": "debug", "format": "json"}
//	}
//
// Environment variables are not read; use the JSON file or flags.
package config
