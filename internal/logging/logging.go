// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup installs the global logger. format "json" writes JSON lines to
// stdout, anything else uses the console writer.
func Setup(format string, verbose bool, name string) {
	log.Logger = New(os.Stdout, format, verbose, name)
}

// New builds a logger writing to w.
func New(w io.Writer, format string, verbose bool, name string) zerolog.Logger {
	writer := w
	if !strings.EqualFold(strings.TrimSpace(format), "json") {
		writer = zerolog.ConsoleWriter{Out: w}
	}
	ctx := zerolog.New(writer).With().Timestamp()
	if name != "" {
		ctx = ctx.Str("service", name)
	}
	l := ctx.Logger()
	if verbose {
		return l.Level(zerolog.DebugLevel)
	}
	return l.Level(zerolog.InfoLevel)
}
