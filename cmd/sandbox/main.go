package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/mondo/internal/config"
	"github.com/dmitrijs2005/mondo/internal/logging"
	"github.com/dmitrijs2005/mondo/internal/sandbox"
)

func main() {

	cfg := config.LoadConfig()
	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gin.SetMode(gin.ReleaseMode)
	app, err := sandbox.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}

}
