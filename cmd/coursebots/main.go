package main

import (
	"context"
	"log"

	"github.com/MrSnakeDoc/coursebots/internal/app"
	"github.com/MrSnakeDoc/coursebots/internal/config"
	"github.com/MrSnakeDoc/coursebots/internal/logger"
)

func main() {
	cfg := config.Load()
	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
	defer func() { _ = loggerClient.Sync() }()

	a, err := app.New(context.Background(), cfg, loggerClient)
	if err != nil {
		log.Fatalf("❌ coursebots failed to start: %v", err)
	}
	if err := a.Run(); err != nil {
		log.Fatalf("❌ coursebots failed: %v", err)
	}
}
