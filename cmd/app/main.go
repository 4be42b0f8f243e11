package main

import (
	"context"
	"flag"
	"log"
	"os"

	"HackCap/internal/di"
	"HackCap/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "config file path (defaults when empty)")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s source=%s cache=%s kafka=%t", cfg.Environment, cfg.Source.Type, cfg.Cache.Mode, cfg.Kafka.Enabled)

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	err = app.Run(context.Background())
	cleanup()
	if err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
