package logutils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. It is usable before InitLogger is called.
var Log = newLogger(os.Stderr, logrus.InfoLevel)

type Logger struct {
	entry *logrus.Entry
}

func newLogger(out io.Writer, level logrus.Level) *Logger {
	base := logrus.New()
	base.SetOutput(out)
	base.SetLevel(level)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return &Logger{entry: logrus.NewEntry(base)}
}

func InitLogger(level string) {
	parsedLevel, err := parseLogLevel(level)
	if err != nil {
		Log = newLogger(os.Stderr, logrus.InfoLevel)
		Log.Warnf("Invalid log level '%s', defaulting to 'info'", level)
		return
	}
	Log = newLogger(os.Stderr, parsedLevel)
	Log.Debugf("Log level set to %v", parsedLevel)
}

// SetOutput redirects the current logger, mostly for tests that assert on log lines.
func SetOutput(out io.Writer) {
	Log.entry.Logger.SetOutput(out)
}

func parseLogLevel(level string) (logrus.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel, nil
	case "info", "":
		return logrus.InfoLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) WithFields(fields map[string]any) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *Logger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }

func (l *Logger) Debug(message string) { l.entry.Debug(message) }

func (l *Logger) Infof(format string, args ...any) { l.entry.Infof(format, args...) }

func (l *Logger) Info(message string) { l.entry.Info(message) }

func (l *Logger) Warnf(format string, args ...any) { l.entry.Warnf(format, args...) }

func (l *Logger) Warn(message string) { l.entry.Warn(message) }

func (l *Logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

func (l *Logger) Error(message string) { l.entry.Error(message) }

func (l *Logger) Fatal(format string, args ...any) { l.entry.Fatalf(format, args...) }
