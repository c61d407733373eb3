package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"sparkclean/internal/config"
	"sparkclean/internal/database"
	"sparkclean/internal/diagnose"
	"sparkclean/internal/logging"
)

func main() {
	failed, err := run()
	if err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
	if failed {
		os.Exit(1)
	}
}

func run() (bool, error) {
	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "configs/config.yaml"
	}
	configPath := flag.String("config", defaultConfig, "path to config.yaml")
	guidePath := flag.String("guide", "", "write a Markdown fix-it guide to this path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return false, fmt.Errorf("load config: %w", err)
	}
	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return false, fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		return false, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	report := diagnose.New(cfg, db, nil, logger).Run(ctx)
	if err := report.WriteText(os.Stdout); err != nil {
		return false, err
	}

	if *guidePath != "" {
		f, err := os.Create(*guidePath)
		if err != nil {
			return false, fmt.Errorf("create guide: %w", err)
		}
		defer f.Close()
		if err := report.WriteGuide(f); err != nil {
			return false, fmt.Errorf("write guide: %w", err)
		}
		fmt.Printf("\nguide written to %s\n", *guidePath)
	}
	return report.Failed(), nil
}
