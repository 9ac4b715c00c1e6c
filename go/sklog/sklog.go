// Package sklog defines the logging functions (e.g. Info, Errorf, etc.).
package sklog

import (
	"os"

	"github.com/jcgregorio/logger"
)

var defaultLogger = logger.NewFromOptions(&logger.Options{
	SyncWriter:   os.Stderr,
	DepthDelta:   2,
	IncludeDebug: true,
})

// Functions to log at various levels.
// Debug, Info, Warning, Error, and Fatal use fmt.Sprint to format the
// arguments. Functions ending in f use fmt.Sprintf to format the arguments.

func Debug(msg ...interface{}) {
	defaultLogger.Debug(msg...)
}

func Debugf(format string, v ...interface{}) {
	defaultLogger.Debugf(format, v...)
}

func Info(msg ...interface{}) {
	defaultLogger.Info(msg...)
}

func Infof(format string, v ...interface{}) {
	defaultLogger.Infof(format, v...)
}

func Warning(msg ...interface{}) {
	defaultLogger.Warning(msg...)
}

func Warningf(format string, v ...interface{}) {
	defaultLogger.Warningf(format, v...)
}

func Error(msg ...interface{}) {
	defaultLogger.Error(msg...)
}

func Errorf(format string, v ...interface{}) {
	defaultLogger.Errorf(format, v...)
}

// Fatal logs the message and then exits the process.
func Fatal(msg ...interface{}) {
	defaultLogger.Fatal(msg...)
}

func Fatalf(format string, v ...interface{}) {
	defaultLogger.Fatalf(format, v...)
}

// Flush flushes any buffered log output. Logging goes to stderr unbuffered,
// so this is a best-effort sync.
func Flush() {
	_ = os.Stderr.Sync()
}
