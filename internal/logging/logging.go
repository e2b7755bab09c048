// Package logging constructs the process-wide structured logger.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// New builds a logger writing to output. The "json" format selects
// structured output with stable field names; anything else gets the
// text formatter. Unknown level names fall back to info.
func New(level, format string, output io.Writer) *logrus.Logger {
	logger := logrus.New()

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	if parsed, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(parsed)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	if output != nil {
		logger.SetOutput(output)
	}
	return logger
}
