// Package netx runs HTTP handlers until their context is cancelled.
package netx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/mondo/internal/logging"
)

// ShutdownTimeout bounds how long in-flight requests may take once the
// context is cancelled.
var ShutdownTimeout = 5 * time.Second

// ListenAndServe listens on addr and serves h until ctx is done.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, logger logging.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return Serve(ctx, ln, h, logger)
}

// Serve serves h on ln until ctx is done, then shuts the server down
// gracefully. It returns nil after a clean shutdown.
func Serve(ctx context.Context, ln net.Listener, h http.Handler, logger logging.Logger) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		logger.Info(context.WithoutCancel(ctx), "Stopping HTTP server...", "address", ln.Addr().String())
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
		defer cancel()
		done <- srv.Shutdown(shutdownCtx)
	}()

	logger.Info(ctx, "Starting HTTP server", "address", ln.Addr().String())

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-done
}
