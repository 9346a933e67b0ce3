package config

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// NewLogger builds a logrus logger from the log settings. Unknown levels fall
// back to info.
func NewLogger(c LogConfig) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if strings.EqualFold(c.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
