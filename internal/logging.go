package internal

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// InitLogging sets the log level and, if file is set, sends logs to a
// rotated file instead of stderr.
func InitLogging(level, file string) error {
	l, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parsing log level %w", err)
	}
	log.SetLevel(l)
	log.SetReportCaller(l == log.DebugLevel)
	if file != "" {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true, DisableColors: true})
		log.SetOutput(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     28, // days
		})
	}
	return nil
}
