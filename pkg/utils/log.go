package utils

import (
	"fmt"
	"sync"

	"github.com/ghettovoice/gosip/log"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

type PrefixLogger struct {
	Logger *log.LogrusLogger
	level  log.Level
}

func (pl *PrefixLogger) Level() string {
	switch pl.level {
	case log.PanicLevel:
		return "Panic"
	case log.FatalLevel:
		return "Fatal"
	case log.ErrorLevel:
		return "Error"
	case log.WarnLevel:
		return "Warn"
	case log.InfoLevel:
		return "Info"
	case log.DebugLevel:
		return "Debug"
	case log.TraceLevel:
		return "Trace"
	}
	return "Unknown"
}

var (
	loggersMu       sync.Mutex
	loggers         = make(map[string]*PrefixLogger)
	DefaultLogLevel = log.InfoLevel
)

// NewLogrusLogger returns a prefixed logger backed by a shared logrus
// instance per prefix. Repeated calls with the same prefix reuse the
// underlying logger so SetLogLevel affects all of them.
func NewLogrusLogger(level log.Level, prefix string, fields log.Fields) log.Logger {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if pl, found := loggers[prefix]; found {
		return pl.Logger.WithPrefix(prefix)
	}

	l := logrus.New()
	l.Formatter = &prefixed.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
		ForceColors:     true,
		ForceFormatting: true,
	}
	l.SetReportCaller(true)

	logger := log.NewLogrusLogger(l, "main", fields)
	loggers[prefix] = &PrefixLogger{
		Logger: logger,
		level:  level,
	}
	logger.SetLevel(level)
	return logger.WithPrefix(prefix)
}

// SetLogLevel adjusts the level of an already created prefix logger.
func SetLogLevel(prefix string, level log.Level) error {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if pl, found := loggers[prefix]; found {
		pl.level = level
		pl.Logger.SetLevel(level)
		return nil
	}
	return fmt.Errorf("logger [%v] not found", prefix)
}

// GetLoggers returns a snapshot of the prefix loggers, keyed by prefix.
func GetLoggers() map[string]*PrefixLogger {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	out := make(map[string]*PrefixLogger, len(loggers))
	for k, v := range loggers {
		out[k] = v
	}
	return out
}
