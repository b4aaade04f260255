package log

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Setup configures the process-wide logrus logger. format is "text" or "json".
func Setup(level, format string) error {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return errors.Wrapf(err, "unable to parse the log level %q", level)
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)

	switch strings.ToLower(format) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return errors.Errorf("unknown log format %q", format)
	}
	return nil
}

func Debug(msg ...interface{}) {
	log.Debug(msg...)
}

func Debugf(format string, msg ...interface{}) {
	log.Debugf(format, msg...)
}

func Info(msg ...interface{}) {
	log.Info(msg...)
}

func Infof(format string, msg ...interface{}) {
	log.Infof(format, msg...)
}

func Warn(msg ...interface{}) {
	log.Warn(msg...)
}

func Warnf(format string, msg ...interface{}) {
	log.Warnf(format, msg...)
}

func Error(msg ...interface{}) {
	log.Error(msg...)
}

func Errorf(format string, msg ...interface{}) {
	log.Errorf(format, msg...)
}

func Fatal(msg ...interface{}) {
	log.Fatal(msg...)
}

func Fatalf(format string, msg ...interface{}) {
	log.Fatalf(format, msg...)
}
