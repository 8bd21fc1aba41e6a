package wizard

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateTextLength(t *testing.T) {
	got, err := ValidateTextLength("  Ретросостав  ", 100, "Название")
	if err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}
	if got != "Ретросостав" {
		t.Fatalf("expected trimmed value, got %q", got)
	}

	if _, err := ValidateTextLength("   ", 100, "Название"); err == nil {
		t.Fatalf("expected rejection for blank input")
	} else if !strings.Contains(err.Error(), "не может быть пустым") {
		t.Fatalf("unexpected message: %v", err)
	}

	// Length is counted in runes so Cyrillic text is not penalized.
	if _, err := ValidateTextLength(strings.Repeat("ж", 10), 10, "Название"); err != nil {
		t.Fatalf("expected 10 runes to fit a limit of 10, got %v", err)
	}
	if _, err := ValidateTextLength(strings.Repeat("ж", 11), 10, "Название"); err == nil {
		t.Fatalf("expected rejection for overlong input")
	} else if !strings.Contains(err.Error(), "слишком длинный") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestValidateRouteNumber(t *testing.T) {
	if err := ValidateRouteNumber("123"); err != nil {
		t.Fatalf("expected three digits to pass, got %v", err)
	}

	cases := map[string]string{
		"12a":  "только цифры",
		"":     "только цифры",
		"1.5":  "только цифры",
		"12":   "трёхзначным",
		"1234": "трёхзначным",
	}
	for route, want := range cases {
		err := ValidateRouteNumber(route)
		if err == nil {
			t.Fatalf("expected rejection for %q", route)
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError for %q, got %T", route, err)
		}
		if !strings.Contains(verr.Message, want) {
			t.Fatalf("route %q: expected message about %q, got %q", route, want, verr.Message)
		}
	}
}

func TestParseTimeAgo(t *testing.T) {
	cases := map[string]int{
		"Сейчас":         0,
		"5 минут назад":  5,
		"60 минут назад": 60,
		"чуть раньше":    0,
		"":               0,
	}
	for label, want := range cases {
		if got := ParseTimeAgo(label); got != want {
			t.Fatalf("ParseTimeAgo(%q) = %d, want %d", label, got, want)
		}
	}
}

func TestObservedTime(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 10, 30, 0, time.UTC)

	if got := ObservedTime(now, "Сейчас"); got != "12:10" {
		t.Fatalf("expected 12:10, got %q", got)
	}
	if got := ObservedTime(now, "15 минут назад"); got != "11:55" {
		t.Fatalf("expected 11:55, got %q", got)
	}
	if got := ObservedTime(now, "не время"); got != "12:10" {
		t.Fatalf("expected fallback to now, got %q", got)
	}
}

func TestCatalogConsistency(t *testing.T) {
	for _, id := range LineIDs {
		if !KnownLine(id) {
			t.Fatalf("line %q missing a name", id)
		}
		if LineEmoji[id] == "" {
			t.Fatalf("line %q missing an emoji", id)
		}
		if len(Stations[id]) == 0 {
			t.Fatalf("line %q has no stations", id)
		}
	}
	if KnownLine("9") {
		t.Fatalf("unexpected line 9 in catalog")
	}
}
