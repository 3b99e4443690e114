// Package mlog adapts github.com/sirupsen/logrus for mboxshell's core
// components: no hook/rotation machinery, since a library has no daemon
// lifecycle to manage -- just structured fields (archive, id). The index
// builder and OpenArchive are the components that log through it.
package mlog

import "github.com/sirupsen/logrus"

// Logger wraps a *logrus.Logger so callers can supply their own (for
// example to route mboxshell's log lines into a UI's log pane) or fall
// back to a discarding logger.
type Logger struct {
	l *logrus.Logger
}

// New wraps l. A nil l produces a Logger that discards everything.
func New(l *logrus.Logger) *Logger {
	if l == nil {
		l = logrus.New()
		l.Out = nil
		l.SetOutput(discard{})
	}
	return &Logger{l: l}
}

// Discard returns a Logger that drops all output, used as the default
// when a caller doesn't supply one.
func Discard() *Logger { return New(nil) }

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// WithArchive returns an entry scoped to the given archive path.
func (lg *Logger) WithArchive(path string) *logrus.Entry {
	return lg.l.WithField("archive", path)
}

// WithRecord returns an entry scoped to one message record.
func (lg *Logger) WithRecord(path string, id uint64) *logrus.Entry {
	return lg.l.WithFields(logrus.Fields{"archive": path, "id": id})
}

// Debugf logs at debug level.
func (lg *Logger) Debugf(format string, args ...interface{}) { lg.l.Debugf(format, args...) }

// Warnf logs at warn level.
func (lg *Logger) Warnf(format string, args ...interface{}) { lg.l.Warnf(format, args...) }

// Infof logs at info level.
func (lg *Logger) Infof(format string, args ...interface{}) { lg.l.Infof(format, args...) }
