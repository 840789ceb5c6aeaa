package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/pixelforge/studio/backend/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Init configures the global zerolog logger on stdout. The returned closer releases the log
// file, if any.
func Init(cfg config.LogConfig) io.Closer {
	return InitWriter(cfg, os.Stdout)
}

// InitWriter is Init with an explicit console destination. Terminal tools pass stderr or
// io.Discard so log lines do not interleave with their own output.
func InitWriter(cfg config.LogConfig, console io.Writer) io.Closer {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var (
		out    io.Writer = console
		closer io.Closer = nopCloser{}
	)
	if path := strings.TrimSpace(cfg.File); path != "" {
		rotating := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		out = io.MultiWriter(console, rotating)
		closer = rotating
	}

	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Str("service", "pixelforge-chat").Logger()
	if err != nil {
		log.Warn().Str("level", cfg.Level).Msg("unknown LOG_LEVEL, using info")
	}
	return closer
}
