// Package logger builds the leveled gommon loggers shared by the tools and the server.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/labstack/gommon/log"
)

// Header matches the format the echo server uses, with the logger prefix added.
const Header = "${time_rfc3339} ${level}	${prefix}	${short_file}:${line}	"

// Logger is the subset of gommon's *log.Logger used by the domain packages.
// echo.Logger satisfies it too, so handlers can pass c.Logger() along.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// New returns a logger tagged with prefix at the level set by MACROTUNE_LOG_LEVEL.
func New(prefix string) *log.Logger {
	l := log.New(prefix)
	l.SetHeader(Header)
	l.SetLevel(Level(os.Getenv("MACROTUNE_LOG_LEVEL")))
	return l
}

// Level parses a level name, defaulting to INFO.
func Level(s string) log.Lvl {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}

// Discard is a logger that writes nowhere.
func Discard() *log.Logger {
	l := log.New("-")
	l.SetOutput(io.Discard)
	return l
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l Logger) Logger {
	if l == nil {
		return Discard()
	}
	return l
}
