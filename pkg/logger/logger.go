// Package logger builds the process logger. Components receive a child
// logger tagged with their name and never touch the global one.
package logger

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const service = "dailylog-bot"

// New returns a logger writing to w at the named level. Unknown or empty
// level names fall back to info. pretty selects the human-readable console
// format used on developer machines; otherwise every line is one JSON object.
func New(w io.Writer, level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	ctx := zerolog.New(w).Level(lvl).With().Timestamp().Str("service", service)
	if pretty {
		ctx = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
			Level(lvl).With().Timestamp().Caller()
	}
	return ctx.Logger()
}
