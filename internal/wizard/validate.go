package wizard

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValidationError carries the user-facing rejection text for bad free-text
// input. The conversation state stays untouched when one is returned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ValidateTextLength trims text and checks it is non-empty and within
// maxLength runes. fieldName appears in the rejection message.
func ValidateTextLength(text string, maxLength int, fieldName string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", validationErrorf("❗️ %s не может быть пустым", fieldName)
	}
	if len([]rune(trimmed)) > maxLength {
		return "", validationErrorf("❗️ %s слишком длинный (макс. %d символов)", fieldName, maxLength)
	}
	return trimmed, nil
}

// ValidateRouteNumber checks a manually entered route: exactly three ASCII
// digits. The digit check runs first so "12a" reports the digit problem, not
// the length.
func ValidateRouteNumber(route string) error {
	if route == "" {
		return validationErrorf("❗️ Маршрут должен содержать только цифры")
	}
	for _, r := range route {
		if r < '0' || r > '9' {
			return validationErrorf("❗️ Маршрут должен содержать только цифры")
		}
	}
	if len(route) != 3 {
		return validationErrorf("❗️ Маршрут должен быть трёхзначным")
	}
	return nil
}

// ParseTimeAgo converts a sighting time label to minutes before now. "Сейчас"
// is zero; otherwise the leading integer of the label. Unparseable labels
// degrade to zero rather than failing the wizard.
func ParseTimeAgo(label string) int {
	if label == "Сейчас" {
		return 0
	}
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return 0
	}
	minutes, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0
	}
	return minutes
}

// ObservedTime resolves a time label against now and formats the sighting
// wall-clock time as HH:MM.
func ObservedTime(now time.Time, label string) string {
	minutes := ParseTimeAgo(label)
	return now.Add(-time.Duration(minutes) * time.Minute).Format("15:04")
}
