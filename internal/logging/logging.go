// Package logging wraps logrus with the leveled, prefix-forking style the
// rest of this repo expects, following the shape of the teacher's own
// log package (cisco.com/comm/log) but backed by a real structured logger
// instead of stdlib log.Println.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the interface every component in this repo logs through.
// It never panics and never exits except via Fatal, matching the
// teacher's log.F behavior.
type Logger interface {
	I(format string, args ...interface{})
	W(format string, args ...interface{})
	E(format string, args ...interface{})
	D(format string, args ...interface{})
	F(format string, args ...interface{})

	// WithField forks a child Logger carrying an additional structured
	// field, the way sammck-go-wstunnel's Logger.Fork() forks a prefix.
	WithField(key string, value interface{}) Logger
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New creates the root Logger. Output goes to stderr, matching the
// teacher's NewLoggerWithFlags default.
func New(component string, level logrus.Level) Logger {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetLevel(level)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &logrusLogger{entry: base.WithField("component", component)}
}

func (l *logrusLogger) I(format string, args ...interface{}) { l.entry.Infof(format, args...) }
func (l *logrusLogger) W(format string, args ...interface{}) { l.entry.Warnf(format, args...) }
func (l *logrusLogger) E(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
func (l *logrusLogger) D(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) F(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithField(key, value)}
}
