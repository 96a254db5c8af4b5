package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

const appName = "clinic-api"

// New builds the process logger. format "console" gives human-readable
// output, anything else JSON. out defaults to stdout.
func New(level, format string, out io.Writer) (zerolog.Logger, error) {
	if out == nil {
		out = os.Stdout
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	w := out
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: out}
	}
	return zerolog.New(w).Level(lvl).With().Str("app", appName).Timestamp().Logger(), nil
}
