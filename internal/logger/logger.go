// Package logger is a thin leveled wrapper around logrus shared by the
// engine and the CLI.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var log = newLogger(os.Stderr, logrus.WarnLevel)

func newLogger(w io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableQuote:     true,
	})
	return l
}

// Init sets the log level by name. Unknown names fall back to warn.
func Init(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.WarnLevel
	}
	log.SetLevel(lvl)
}

// SetOutput redirects log output; the CLI points it at the command's stderr.
func SetOutput(w io.Writer) { log.SetOutput(w) }

// WithField returns an entry carrying a structured field.
func WithField(key string, value any) *logrus.Entry { return log.WithField(key, value) }

func Debugf(format string, args ...any) { log.Debugf(format, args...) }
func Infof(format string, args ...any)  { log.Infof(format, args...) }
func Warnf(format string, args ...any)  { log.Warnf(format, args...) }
func Errorf(format string, args ...any) { log.Errorf(format, args...) }
