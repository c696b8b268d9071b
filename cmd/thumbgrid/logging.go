package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/hupe1980/thumbgrid"
)

func newLogger(cfg LogConfig) (*thumbgrid.Logger, error) {
	var level slog.Level
	lvl := strings.ToLower(strings.TrimSpace(cfg.Level))
	if lvl == "warning" {
		lvl = "warn"
	}
	if err := level.UnmarshalText([]byte(lvl)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	if cfg.Format == "json" {
		return thumbgrid.NewJSONLogger(level), nil
	}
	return thumbgrid.NewTextLogger(level), nil
}
