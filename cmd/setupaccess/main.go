package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/mondo/internal/config"
	"github.com/dmitrijs2005/mondo/internal/logging"
	"github.com/dmitrijs2005/mondo/internal/setupaccess"
)

func main() {

	cfg := config.LoadConfig()
	// prompts own stdout
	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := setupaccess.NewApp(cfg, logger, os.Stdin, os.Stdout)
	if _, err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}

}
