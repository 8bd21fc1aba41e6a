package logging

import (
	"testing"

	"github.com/sirupsen/logrus"

	"metro_report_bot/internal/config"
)

func TestSetupAppliesLevelAndFields(t *testing.T) {
	resetLogger()
	t.Cleanup(resetLogger)

	entry, err := Setup(config.Config{AppEnv: config.EnvDevelopment, LogLevel: "debug"})
	if err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}

	if entry.Logger.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %v", entry.Logger.GetLevel())
	}
	if entry.Data["service"] != serviceName {
		t.Fatalf("expected service field %q, got %v", serviceName, entry.Data["service"])
	}
	if entry.Data["env"] != config.EnvDevelopment {
		t.Fatalf("expected env field, got %v", entry.Data["env"])
	}
}

func TestSetupRejectsInvalidLevel(t *testing.T) {
	resetLogger()
	t.Cleanup(resetLogger)

	if _, err := Setup(config.Config{AppEnv: config.EnvProduction, LogLevel: "bogus"}); err == nil {
		t.Fatalf("expected invalid log level to error")
	}
}

func TestConversationFields(t *testing.T) {
	fields := Conversation(42, 7)

	if fields["user_id"] != int64(42) {
		t.Fatalf("expected user_id field, got %v", fields["user_id"])
	}
	if fields["chat_id"] != int64(7) {
		t.Fatalf("expected chat_id field, got %v", fields["chat_id"])
	}
}

func TestConversationOmitsZeroIDs(t *testing.T) {
	if fields := Conversation(0, 0); len(fields) != 0 {
		t.Fatalf("expected no fields for zero ids, got %v", fields)
	}

	fields := Conversation(42, 0)
	if _, ok := fields["chat_id"]; ok {
		t.Fatalf("expected chat_id omitted, got %v", fields)
	}
}

func TestLoggerFallsBackWithoutSetup(t *testing.T) {
	resetLogger()
	t.Cleanup(resetLogger)

	entry := Logger()
	if entry == nil {
		t.Fatalf("expected fallback logger")
	}
	if entry.Data["env"] != config.DefaultAppEnv {
		t.Fatalf("expected default env field, got %v", entry.Data["env"])
	}
}
