// Package logging is a thin wrapper over the standard library logger,
// tagging every line with a "[component] message" prefix.
package logging

import (
	"log"
	"os"
)

// Logger tags every line with a component name, e.g. "[embedpool] ...".
type Logger struct {
	component string
	std       *log.Logger
}

// New creates a component-scoped logger writing to stderr.
func New(component string) *Logger {
	return &Logger{
		component: component,
		std:       log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (l *Logger) Printf(format string, args ...any) {
	l.std.Printf("[%s] "+format, append([]any{l.component}, args...)...)
}

func (l *Logger) Println(args ...any) {
	all := append([]any{"[" + l.component + "]"}, args...)
	l.std.Println(all...)
}
