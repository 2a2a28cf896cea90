package main

import (
	"context"
	_ "embed"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/ArionMiles/txnsearch/pkg/config"
	"github.com/ArionMiles/txnsearch/pkg/logging"
)

var (
	//go:embed config/rules.json
	rulesInput []byte
	//go:embed config/labels.json
	labelsInput []byte
)

func main() {
	logger := logging.Setup(logging.Config{Level: slog.LevelInfo})

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = logging.Setup(cfg.Logging())

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("failed to register backends", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = newRootCmd(a).ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
