package logging

import "log"

// StdLogger backs Logger with the standard library's log package, prefixed
// so interleaved client/server output stays attributable.
type StdLogger struct {
	Prefix string
}

// NewStdLogger returns a Logger that writes through log.Printf with prefix
// and ": " prepended to every line (no separator when prefix is empty).
func NewStdLogger(prefix string) *StdLogger {
	return &StdLogger{Prefix: prefix}
}

func (l *StdLogger) Printf(format string, v ...any) {
	if l.Prefix == "" {
		log.Printf(format, v...)
		return
	}
	log.Printf(l.Prefix+": "+format, v...)
}

// Discard is a Logger that drops everything, for quiet mode and tests.
type Discard struct{}

func (Discard) Printf(string, ...any) {}
