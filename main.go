package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func init() {
	// loads values from .env into the system
	if err := godotenv.Load(); err != nil {
		log.Print("No .env file found")
	}
}

func setupLogging(cfg *Config) {
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("LOG_LEVEL %q: %v", cfg.LogLevel, err)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func main() {
	config, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}
	setupLogging(config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(config)
	if err := app.Start(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
