package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	FormatJSON  = "json"
	FormatColor = "color"
)

// New builds the process logger. An unknown level falls back to info and an
// unknown format to JSON, each with a warning. A nil out writes to stdout.
func New(level, format string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	if out == nil {
		out = os.Stdout
	}
	log.SetOutput(out)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatColor:
		log.SetFormatter(NewColoredJSONFormatter())
	case FormatJSON, "":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.JSONFormatter{})
		log.WithField("format", format).Warn("Unknown log format, using json")
	}

	log.SetLevel(logrus.InfoLevel)
	if level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			log.WithField("level", level).Warn("Invalid log level, using info")
		} else {
			log.SetLevel(parsed)
		}
	}

	return log
}
