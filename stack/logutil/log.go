// Package logutil configures the process-wide logrus logger.
package logutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"
)

const callerSkip = 6

// Set configures the level and format of the standard logger. An unknown
// level falls back to info. When fileName is set, output is appended to
// that file and the caller must close the returned file.
func Set(level, fileName string) (*os.File, error) {
	var f *os.File
	if fileName != "" {
		if err := os.MkdirAll(filepath.Dir(fileName), 0o755); err != nil {
			return nil, fmt.Errorf("creating log folder: %w", err)
		}
		var err error
		f, err = os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o600)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		logrus.SetOutput(f)
	}

	ll, err := logrus.ParseLevel(level)
	if err != nil {
		ll = logrus.InfoLevel
	}
	logrus.SetLevel(ll)
	logrus.SetFormatter(&formatter{
		TextFormatter: &logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			PadLevelText:    true,
			DisableQuote:    true,
		},
	})
	return f, nil
}

type formatter struct {
	*logrus.TextFormatter
}

// Format adds the caller file and line to error and fatal entries.
func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	if entry.Level <= logrus.ErrorLevel {
		_, file, line, _ := runtime.Caller(callerSkip)
		entry.Data["file"] = file
		entry.Data["line"] = fmt.Sprintf("%d", line)
	}
	return f.TextFormatter.Format(entry)
}
