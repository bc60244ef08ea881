package cmdutil

import (
	"strings"

	"go.uber.org/zap"

	"titleCountdown/internal/infrastructure/config"
)

func NewLogger(debug bool) *zap.Logger {
	logger, _ := zap.NewProduction()
	if debug {
		logger, _ = zap.NewDevelopment()
	}

	return logger
}

// LoadConfig reads the environment and applies command line overrides.
func LoadConfig(dir string, debug bool) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if dir = strings.TrimSpace(dir); dir != "" {
		cfg.SetDir(dir)
	}
	if debug {
		cfg.Debug = true
	}

	return cfg, nil
}
