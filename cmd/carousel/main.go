package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/halcyonlabs/carousel-pipeline/internal/app"
	"github.com/halcyonlabs/carousel-pipeline/internal/platform/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the accounts/content YAML file")
	once := flag.Bool("once", false, "run each account's cycle once and exit")
	account := flag.String("account", "", "run only the account with this posting username")
	flag.Parse()

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if !*once {
		// Scheduling belongs to cron or the platform scheduler; the
		// process itself only knows how to run a cycle.
		log.Error("This runner only supports one-shot execution; pass -once")
		os.Exit(2)
	}

	target := *account
	if target == "" {
		target = os.Getenv("TARGET_ACCOUNT")
	}

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		log.Error("Failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	a, err := app.New(log, cfg)
	if err != nil {
		log.Error("Failed to wire application", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, err := a.RunOnce(ctx, target)
	if err != nil {
		log.Error("Run aborted", "error", err)
		os.Exit(1)
	}

	failures := 0
	for _, ev := range events {
		if !ev.Success {
			failures++
		}
	}
	log.Info("Run complete", "accounts", len(events), "failures", failures)
	if failures > 0 {
		os.Exit(1)
	}
}
