// Package logging provides the printf-style logger shared by the server,
// the feed and the reminder scheduler.
package logging

import (
	"fmt"
	"log"
	"os"
	"reflect"
)

// Logger is the minimal logging contract components depend on.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger { return nopLogger{} }

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if logger == nil {
		return Nop()
	}
	v := reflect.ValueOf(logger)
	if v.Kind() == reflect.Ptr && v.IsNil() {
		return Nop()
	}
	return logger
}

// StdLogger writes level-prefixed lines through a *log.Logger.
type StdLogger struct {
	l      *log.Logger
	prefix string
	debug  bool
}

// New returns a logger writing to stderr. Debug lines are dropped unless debug is set.
func New(debug bool) *StdLogger {
	return &StdLogger{l: log.New(os.Stderr, "", log.LstdFlags), debug: debug}
}

// Wrap adapts an existing *log.Logger.
func Wrap(l *log.Logger, debug bool) *StdLogger {
	return &StdLogger{l: l, debug: debug}
}

// Component returns a copy that prefixes every line with "name: ".
func (s *StdLogger) Component(name string) *StdLogger {
	c := *s
	c.prefix = name + ": "
	return &c
}

func (s *StdLogger) Debug(format string, args ...any) {
	if s.debug {
		s.out("DEBUG", format, args...)
	}
}

func (s *StdLogger) Info(format string, args ...any)  { s.out("INFO", format, args...) }
func (s *StdLogger) Warn(format string, args ...any)  { s.out("WARN", format, args...) }
func (s *StdLogger) Error(format string, args ...any) { s.out("ERROR", format, args...) }

func (s *StdLogger) out(level, format string, args ...any) {
	s.l.Printf("[%s] %s%s", level, s.prefix, fmt.Sprintf(format, args...))
}

var _ Logger = (*StdLogger)(nil)
