package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/mondo/internal/flagx"
	"github.com/dmitrijs2005/mondo/internal/timex"
)

// JsonConfig is the on-disk DTO. Its values are copied into Config, and
// only keys present in the file override what is already there.
type JsonConfig struct {
	Client struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
		LoginURL     string `json:"login_url"`
		APIURL       string `json:"api_url"`
		AuthURL      string `json:"auth_url"`
	} `json:"client"`
	Web struct {
		Addr         string         `json:"addr"`
		CookieSecret string         `json:"cookie_secret"`
		CookieTTL    timex.Duration `json:"cookie_ttl"`
	} `json:"web"`
	Sandbox struct {
		Addr      string         `json:"addr"`
		PublicURL string         `json:"public_url"`
		TokenTTL  timex.Duration `json:"token_ttl"`
		S3        struct {
			Bucket       string         `json:"bucket"`
			Region       string         `json:"region"`
			BaseEndpoint string         `json:"base_endpoint"`
			AccessKey    string         `json:"access_key"`
			SecretKey    string         `json:"secret_key"`
			PresignTTL   timex.Duration `json:"presign_ttl"`
		} `json:"s3"`
	} `json:"sandbox"`
	Store struct {
		Dir        string `json:"dir"`
		DSN        string `json:"dsn"`
		Passphrase string `json:"passphrase"`
		Key        string `json:"key"`
	} `json:"store"`
	Log struct {
		Level  string `json:"level"`
		Format string `json:"format"`
	} `json:"log"`
}

// parseJson overlays the file given with -c/-config onto config. Without
// such a flag nothing happens. Unreadable files and invalid JSON panic.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigFile(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	set(&config.Client.ClientID, c.Client.ClientID)
	set(&config.Client.ClientSecret, c.Client.ClientSecret)
	set(&config.Client.LoginURL, c.Client.LoginURL)
	set(&config.Client.APIURL, c.Client.APIURL)
	set(&config.Client.AuthURL, c.Client.AuthURL)

	set(&config.Web.Addr, c.Web.Addr)
	set(&config.Web.CookieSecret, c.Web.CookieSecret)
	set(&config.Web.CookieTTL, c.Web.CookieTTL.Duration)

	set(&config.Sandbox.Addr, c.Sandbox.Addr)
	set(&config.Sandbox.PublicURL, c.Sandbox.PublicURL)
	set(&config.Sandbox.TokenTTL, c.Sandbox.TokenTTL.Duration)
	set(&config.Sandbox.S3.Bucket, c.Sandbox.S3.Bucket)
	set(&config.Sandbox.S3.Region, c.Sandbox.S3.Region)
	set(&config.Sandbox.S3.BaseEndpoint, c.Sandbox.S3.BaseEndpoint)
	set(&config.Sandbox.S3.AccessKey, c.Sandbox.S3.AccessKey)
	set(&config.Sandbox.S3.SecretKey, c.Sandbox.S3.SecretKey)
	set(&config.Sandbox.S3.PresignTTL, c.Sandbox.S3.PresignTTL.Duration)

	set(&config.Store.Dir, c.Store.Dir)
	set(&config.Store.DSN, c.Store.DSN)
	set(&config.Store.Passphrase, c.Store.Passphrase)
	set(&config.Store.Key, c.Store.Key)

	set(&config.Log.Level, c.Log.Level)
	set(&config.Log.Format, c.Log.Format)
}

func set[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}
