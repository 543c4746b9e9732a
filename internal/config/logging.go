package config

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// ParseLevel parses a logrus level name.
func ParseLevel(level string) (log.Level, error) {
	l, err := log.ParseLevel(level)
	if err != nil {
		return 0, fmt.Errorf("log.level %q unknown", level)
	}
	return l, nil
}

// ApplyLogging configures the standard logrus logger.
func ApplyLogging(cfg LogConfig) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	log.SetOutput(os.Stdout)
	log.SetLevel(level)
	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
