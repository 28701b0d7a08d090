package logger

import (
	"io"
	"os"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var (
	// maximum length of the prefix field, used to align log lines
	prefixLen = 14
)

// Init configures the global logrus instance. Verbosity counts map to levels:
// 0 info, 1 debug, 2+ trace. When logFilePath is non-empty, output is mirrored
// to a rotated log file.
func Init(verbosity int, logFilePath string) error {
	formatter := &prefixed.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
		ForceFormatting: true,
	}

	logrus.SetFormatter(formatter)

	switch {
	case verbosity == 1:
		logrus.SetLevel(logrus.DebugLevel)
	case verbosity > 1:
		logrus.SetLevel(logrus.TraceLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	if logFilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   logFilePath,
			MaxSize:    25,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
		logrus.SetOutput(io.MultiWriter(os.Stdout, rotator))
	} else {
		logrus.SetOutput(os.Stdout)
	}

	return nil
}

// GetLogger returns an entry with the given component prefix.
func GetLogger(prefix string) *logrus.Entry {
	if len(prefix) > prefixLen {
		prefix = prefix[:prefixLen]
	}

	return logrus.WithFields(logrus.Fields{"prefix": prefix})
}
