package sandbox

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/mondo/internal/config"
	"github.com/dmitrijs2005/mondo/internal/logging"
	"github.com/dmitrijs2005/mondo/internal/netx"
)

// App runs a sandbox built from the shared configuration.
type App struct {
	addr   string
	server *Server
	logger logging.Logger
}

// NewApp registers cfg.Client as the sandbox's only OAuth client and picks
// S3 or local uploads from cfg.Sandbox.S3.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	var presigner Presigner
	uploads := "local"
	if cfg.Sandbox.S3.Enabled() {
		uploads = "s3"
		p, err := NewS3Presigner(ctx, cfg.Sandbox.S3)
		if err != nil {
			return nil, fmt.Errorf("s3 presigner: %w", err)
		}
		presigner = p
	}

	srv := New(Options{
		ClientID:     cfg.Client.ClientID,
		ClientSecret: cfg.Client.ClientSecret,
		TokenTTL:     cfg.Sandbox.TokenTTL,
		PublicURL:    cfg.Sandbox.PublicURL,
		Presigner:    presigner,
		Logger:       logger,
	})

	logger.Info(ctx, "sandbox client registered",
		"client_id", srv.clientID,
		"uploads", uploads,
	)
	return &App{addr: cfg.Sandbox.Addr, server: srv, logger: logger}, nil
}

// Server exposes the emulator behind the app.
func (a *App) Server() *Server { return a.server }

// Run serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return netx.ListenAndServe(ctx, a.addr, a.server.Handler(), a.logger)
}
