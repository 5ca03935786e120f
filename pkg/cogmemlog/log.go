// Package cogmemlog provides the structured logger used throughout cogmem,
// one zerolog.Logger per component rather than a package-level global,
// mirroring beeper-ai-bridge's convention of threading a *zerolog.Logger
// through constructors.
package cogmemlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns a component-scoped logger. When pretty is true, output is a
// human-readable console writer (development); otherwise plain JSON lines
// (production / piped to a log aggregator).
func New(component string, pretty bool) zerolog.Logger {
	var w io.Writer = os.Stderr
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).With().Timestamp().Str("component", component).Logger()
}

// Nop returns a logger that discards everything, useful as a zero-value
// default in tests that don't care about log output.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
