package logging

import (
	"github.com/sirupsen/logrus"
)

// New builds the process-wide logrus logger. Production environments log
// JSON; development keeps the text formatter for readability.
func New(logLevel, environment string) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if environment == "development" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return logger
}
