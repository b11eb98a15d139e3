// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Xcertik-Realist/X-name-change-bot/internal/config"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 50
	defaultMaxBackups = 5
	defaultMaxAgeDays = 14
)

// Setup applies level, formatter and output to the standard logger. When a
// log file is configured, output is written to stdout and a rotating file.
// The returned closer releases the file, if any.
func Setup(cfg config.LogConfig) (io.Closer, error) {
	level, errLevel := log.ParseLevel(strings.TrimSpace(cfg.Level))
	if errLevel != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	file := strings.TrimSpace(cfg.File)
	if file == "" {
		log.SetOutput(os.Stdout)
		warnUnknownLevel(cfg.Level, errLevel)
		return nopCloser{}, nil
	}
	if dir := filepath.Dir(file); dir != "" && dir != "." {
		if errMkdir := os.MkdirAll(dir, 0o755); errMkdir != nil {
			return nil, fmt.Errorf("logging: create log dir: %w", errMkdir)
		}
	}
	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    positiveOr(cfg.MaxSizeMB, defaultMaxSizeMB),
		MaxBackups: positiveOr(cfg.MaxBackups, defaultMaxBackups),
		MaxAge:     positiveOr(cfg.MaxAgeDays, defaultMaxAgeDays),
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	warnUnknownLevel(cfg.Level, errLevel)
	return rotator, nil
}

func warnUnknownLevel(level string, errLevel error) {
	if errLevel != nil {
		log.Warnf("logging: unknown level %q, using info", level)
	}
}

func positiveOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
