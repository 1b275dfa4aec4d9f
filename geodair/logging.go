package geodair

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/xerrors"
)

// NewLogger builds the pipeline logger.
// Logs are JSON lines on stdout, or human friendly lines on stderr when pretty is true.
func NewLogger(level string, pretty bool) (zerolog.Logger, error) {
	var w io.Writer = os.Stdout
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	return newLogger(w, level)
}

func newLogger(w io.Writer, level string) (zerolog.Logger, error) {
	if level == "" {
		level = defaultLogLevel
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), xerrors.Errorf("invalid log level %q: %w", level, err)
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}
