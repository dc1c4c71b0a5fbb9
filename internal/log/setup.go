package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Output formats
const (
	FormatAuto    = "auto"
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Setup configures the global zerolog logger. The auto format writes
// human-readable output when stderr is a terminal and JSON otherwise.
func Setup(level, format string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	tty := term.IsTerminal(int(os.Stderr.Fd()))
	logger, err := NewLogger(os.Stderr, format, tty)
	if err != nil {
		return err
	}

	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = logger
	return nil
}

// NewLogger builds a timestamped logger writing to w in the given format
func NewLogger(w io.Writer, format string, tty bool) (zerolog.Logger, error) {
	switch strings.ToLower(format) {
	case "", FormatAuto:
		if tty {
			w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
		}
	case FormatConsole:
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05", NoColor: !tty}
	case FormatJSON:
	default:
		return zerolog.Logger{}, fmt.Errorf("unknown log format %q", format)
	}
	return zerolog.New(w).With().Timestamp().Logger(), nil
}
