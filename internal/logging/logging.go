// Package logging wraps zerolog with the component-tagged, level-driven
// setup every docmind binary shares. It plays the role the teacher's
// internal/rag/obs.JSONLogger played for the rag subsystem, generalized to
// zerolog since the module already carries it as a dependency.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New returns a logger tagged with component, honoring LOG_LEVEL-style
// input already parsed into level. In production mode the caller field is
// omitted; interactively it is kept for faster debugging.
func New(component string, level string, production bool) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	var w io.Writer = os.Stdout
	if !production {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}
	zctx := zerolog.New(w).With().Timestamp().Str("component", component)
	if !production {
		zctx = zctx.Caller()
	}
	l := zctx.Logger()
	l = l.Level(parseLevel(level))
	return l
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}
