package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Settings are process-wide defaults read from the environment.
type Settings struct {
	DataDir    string `envconfig:"DYNFIT_DATA_DIR" default:".dynfit"`
	LogLevel   string `envconfig:"DYNFIT_LOG_LEVEL" default:"warn"`
	Seed       uint64 `envconfig:"DYNFIT_SEED"`
	PlotWidth  int    `envconfig:"DYNFIT_PLOT_WIDTH" default:"72"`
	PlotHeight int    `envconfig:"DYNFIT_PLOT_HEIGHT" default:"16"`
	Theme      string `envconfig:"DYNFIT_THEME" default:"cyberpunk"`
}

func LoadSettings() (*Settings, error) {
	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return nil, fmt.Errorf("config: failed to load settings: %w", err)
	}
	if _, err := s.Level(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Level parses LogLevel.
func (s *Settings) Level() (slog.Level, error) {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("config: unknown log level %q", s.LogLevel)
	}
}
