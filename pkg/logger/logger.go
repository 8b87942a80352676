// Package logger configures the process-wide charmbracelet logger that
// every subsystem logs through.
package logger

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// EnvVar selects the log level when no flag overrides it.
const EnvVar = "SD_LOG_LEVEL"

// Setup applies the effective log level (flag first, then EnvVar, then
// info) and the output format to the default logger.
func Setup(flagLevel string) {
	level := flagLevel
	if level == "" {
		level = os.Getenv(EnvVar)
	}
	log.SetReportTimestamp(true)
	log.SetTimeFormat("15:04:05")
	log.SetLevel(ParseLevel(level))
}

// ParseLevel maps a level name to a log level, defaulting to info for
// anything unrecognized.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}
