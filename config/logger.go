package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the process logger. LOG_LEVEL and LOG_FORMAT
// (text|json) come from the environment; defaults are info + text.
func NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if os.Getenv("LOG_FORMAT") == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(envStr("LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return log
}
