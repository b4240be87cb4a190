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
	"github.com/dmitrijs2005/mondo/internal/webapp"
)

func main() {

	cfg := config.LoadConfig()
	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gin.SetMode(gin.ReleaseMode)
	app := webapp.New(cfg, logger)

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}

}
