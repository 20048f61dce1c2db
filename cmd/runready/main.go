package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/ykvlv/runready/internal/app"
	"github.com/ykvlv/runready/internal/config"
	"github.com/ykvlv/runready/internal/domain"
	"github.com/ykvlv/runready/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	if _, err := domain.ValidateTZ(cfg.DefaultTZ); err != nil {
		log.Warn("unknown DEFAULT_TZ, using UTC", zap.String("tz", cfg.DefaultTZ), zap.Error(err))
	}

	application, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("app init failed", zap.Error(err))
	}

	if err := application.Run(context.Background()); err != nil {
		log.Fatal("app run failed", zap.Error(err))
	}
}
