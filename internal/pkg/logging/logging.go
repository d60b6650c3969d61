package logging

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Setup configures the global logrus logger. Format "json" or "text";
// empty picks json for prod-like environments.
func Setup(level, format string, prodLike bool) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)

	switch {
	case format == "json", format == "" && prodLike:
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if err != nil && level != "" {
		logrus.WithField("level", level).Warn("unknown log level, using info")
	}
}
