// Package logging builds the process-wide zerolog.Logger, the way
// R2Northstar-Atlas's pkg/atlas.configureLogging assembles one from a
// Config: a single console writer, optional pretty-printing, timestamped.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds a logger writing to stderr. pretty selects
// zerolog.ConsoleWriter's human-readable format over newline-delimited
// JSON; debug lowers the level to zerolog.DebugLevel.
func New(pretty, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	var w io.Writer = os.Stderr
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
