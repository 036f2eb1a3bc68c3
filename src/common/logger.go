package common

import (
	"io"
	"os"

	"github.com/charmbracelet/log"

	"certgallery/src/config"
)

// NewLogger builds the application logger from the log section of the config
func NewLogger(cfg config.LogConfig) *log.Logger {
	return newLogger(os.Stderr, cfg)
}

func newLogger(w io.Writer, cfg config.LogConfig) *log.Logger {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	if cfg.JSON {
		logger.SetFormatter(log.JSONFormatter)
	}
	return logger
}

// DiscardLogger returns a logger that drops everything, for tests
func DiscardLogger() *log.Logger {
	return log.New(io.Discard)
}
