// Package logging configures structured logging for the bot: level and
// formatter from runtime configuration, a fallback logger for early boot, and
// the conversation fields handlers attach to their entries.
package logging

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"metro_report_bot/internal/config"
)

const serviceName = "metro-report-bot"

// Fields is a shorthand alias for structured log fields.
type Fields = logrus.Fields

var baseLogger *logrus.Entry

// Setup configures the global logger: level from LOG_LEVEL, JSON output in
// production, readable text in development.
func Setup(cfg config.Config) (*logrus.Entry, error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	baseLogger = newEntry(level, cfg.AppEnv)
	return baseLogger, nil
}

// Logger returns the configured base logger. Before Setup has run it falls
// back to an info-level default so early boot failures are still structured.
func Logger() *logrus.Entry {
	if baseLogger == nil {
		baseLogger = newEntry(logrus.InfoLevel, config.DefaultAppEnv)
	}
	return baseLogger
}

// Conversation builds the per-update fields handlers log with. Zero ids are
// omitted so startup and broadcast paths can reuse it.
func Conversation(userID, chatID int64) Fields {
	fields := Fields{}
	if userID != 0 {
		fields["user_id"] = userID
	}
	if chatID != 0 {
		fields["chat_id"] = chatID
	}
	return fields
}

// Info logs an informational message with optional structured fields.
func Info(msg string, fields Fields) {
	logWithFields(fields).Info(msg)
}

// Warn logs a warning message with optional structured fields.
func Warn(msg string, fields Fields) {
	logWithFields(fields).Warn(msg)
}

// Error logs an error message with optional structured fields.
func Error(msg string, fields Fields) {
	logWithFields(fields).Error(msg)
}

func logWithFields(fields Fields) *logrus.Entry {
	entry := Logger()
	if len(fields) == 0 {
		return entry
	}
	return entry.WithFields(fields)
}

func newEntry(level logrus.Level, appEnv string) *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(level)

	fieldMap := logrus.FieldMap{
		logrus.FieldKeyTime:  "ts",
		logrus.FieldKeyMsg:   "msg",
		logrus.FieldKeyLevel: "level",
	}
	if appEnv == config.EnvDevelopment {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:          true,
			TimestampFormat:        time.RFC3339Nano,
			FieldMap:               fieldMap,
			DisableLevelTruncation: true,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap:        fieldMap,
		})
	}

	return logger.WithFields(Fields{
		"service": serviceName,
		"env":     appEnv,
	})
}

func parseLevel(value string) (logrus.Level, error) {
	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log level %q: %w", value, err)
	}
	return level, nil
}

// resetLogger clears the cached logger; used in tests.
func resetLogger() {
	baseLogger = nil
}
