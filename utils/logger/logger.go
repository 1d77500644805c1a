// Package logger is a thin logrus facade. Every call names the object the
// message is about; its String() becomes the source column.
package logger

import (
	"fmt"
	"io"
	"reflect"

	"github.com/sirupsen/logrus"
)

type stringer interface {
	String() string
}

const sourceWidth = 20

var log = logrus.New()

func objToString(obj any) (objStr string) {
	switch o := obj.(type) {
	case nil:
		objStr = "NIL"
	case stringer:
		objStr = o.String()
	case string:
		objStr = o
	default:
		t := reflect.TypeOf(obj)
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		objStr = t.Name()
	}
	if len(objStr) > sourceWidth {
		objStr = objStr[:sourceWidth]
	}
	return
}

// Init sets the level and the formatter of the package logger.
func Init(lvl logrus.Level) {
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		PadLevelText:    true,
		TimestampFormat: "2006/01/02 15:04:05",
	})
}

// SetOutput redirects log output, mostly for tools writing data to stdout.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// Level returns the current level.
func Level() logrus.Level {
	return log.GetLevel()
}

func emit(lvl logrus.Level, object any, msg string) {
	if !log.IsLevelEnabled(lvl) {
		return
	}
	log.WithField("src", objToString(object)).Log(lvl, msg)
}

func emitf(lvl logrus.Level, object any, format string, args ...any) {
	if !log.IsLevelEnabled(lvl) {
		return
	}
	log.WithField("src", objToString(object)).Log(lvl, fmt.Sprintf(format, args...))
}

func Trace(object any, message string) { emit(logrus.TraceLevel, object, message) }

func Tracef(object any, message string, args ...any) {
	emitf(logrus.TraceLevel, object, message, args...)
}

func Debug(object any, message string) { emit(logrus.DebugLevel, object, message) }

func Debugf(object any, message string, args ...any) {
	emitf(logrus.DebugLevel, object, message, args...)
}

func Info(object any, message string) { emit(logrus.InfoLevel, object, message) }

func Infof(object any, message string, args ...any) {
	emitf(logrus.InfoLevel, object, message, args...)
}

func Warning(object any, message string) { emit(logrus.WarnLevel, object, message) }

func Warningf(object any, message string, args ...any) {
	emitf(logrus.WarnLevel, object, message, args...)
}

func Error(object any, message string) { emit(logrus.ErrorLevel, object, message) }

func Errorf(object any, message string, args ...any) {
	emitf(logrus.ErrorLevel, object, message, args...)
}

// Fatal logs and exits the process.
func Fatal(object any, message string) {
	log.WithField("src", objToString(object)).Fatal(message)
}

// Fatalf logs and exits the process.
func Fatalf(object any, message string, args ...any) {
	log.WithField("src", objToString(object)).Fatalf(message, args...)
}
