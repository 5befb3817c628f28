package core

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NewLogger returns a logger intended to be used for general application logs,
// shared by every server component the process starts.
func NewLogger(cfg *Config) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return logger, nil
}

// Humanize title-cases an error or status string before it's sent to a
// client or written to a log line meant for human consumption.
func Humanize(s string) string {
	return cases.Title(language.English).String(s)
}
