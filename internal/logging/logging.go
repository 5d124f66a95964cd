// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/erauner12/toolbridge-sync/internal/config"
)

const serviceName = "toolbridge-sync"

// Setup installs the global logger described by cfg and returns a closer for
// the log file, if any. log.Ctx falls back to this logger outside requests.
func Setup(cfg *config.Config) (io.Closer, error) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level, err := ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stdout
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}

	var closer io.Closer = nopCloser{}
	if cfg.Log.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(out, lj)
		closer = lj
	}

	log.Logger = New(out)
	zerolog.DefaultContextLogger = &log.Logger
	return closer, nil
}

// New builds a logger tagged with the service name.
func New(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Str("service", serviceName).Logger()
}

// ParseLevel accepts zerolog level names; empty means info.
func ParseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(s)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
