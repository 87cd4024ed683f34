package splatrt

import (
	"os"
	"sync"

	charmlog "github.com/charmbracelet/log"
)

// Logger is the renderer's logging surface. Implementations must be safe
// for concurrent use; the renderer logs from frame goroutines.
type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// DefaultLogger adapts charmbracelet/log to the Logger interface.
type DefaultLogger struct {
	mu  sync.Mutex
	log *charmlog.Logger
}

// NewDefaultLogger writes leveled, timestamped output to stderr under the
// given prefix.
func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	level := charmlog.InfoLevel
	if debug {
		level = charmlog.DebugLevel
	}
	return &DefaultLogger{
		log: charmlog.NewWithOptions(os.Stderr, charmlog.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
			Prefix:          prefix,
		}),
	}
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.log.GetLevel() <= charmlog.DebugLevel
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if enabled {
		l.log.SetLevel(charmlog.DebugLevel)
	} else {
		l.log.SetLevel(charmlog.InfoLevel)
	}
}

func (l *DefaultLogger) Debugf(format string, args ...any) { l.log.Debugf(format, args...) }
func (l *DefaultLogger) Infof(format string, args ...any)  { l.log.Infof(format, args...) }
func (l *DefaultLogger) Warnf(format string, args ...any)  { l.log.Warnf(format, args...) }
func (l *DefaultLogger) Errorf(format string, args ...any) { l.log.Errorf(format, args...) }

type nopLogger struct{}

// NewNopLogger returns a logger that discards everything. Useful in tests
// and for embedders that wire their own logging.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) DebugEnabled() bool                { return false }
func (nopLogger) SetDebug(bool)                     {}
func (nopLogger) Debugf(format string, args ...any) {}
func (nopLogger) Infof(format string, args ...any)  {}
func (nopLogger) Warnf(format string, args ...any)  {}
func (nopLogger) Errorf(format string, args ...any) {}
