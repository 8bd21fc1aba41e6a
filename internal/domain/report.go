package domain

import (
	"fmt"
	"html"
	"strings"
)

// Data keys accumulated by the wizard. LastMessageKey tracks the id of the
// last prompt so it can be deleted when the conversation advances.
const (
	FieldLine      = "line"
	FieldVehicle   = "vehicle"
	FieldStation   = "station"
	FieldDirection = "direction"
	FieldTime      = "time"
	FieldRoute     = "route"
	FieldComment   = "comment"

	LastMessageKey = "last_msg"
)

// RequiredReportFields lists the keys that must be present before the confirm
// step may publish.
var RequiredReportFields = []string{
	FieldLine, FieldVehicle, FieldStation, FieldDirection,
	FieldTime, FieldRoute, FieldComment,
}

// Report is a completed wizard submission.
type Report struct {
	Line      string
	Vehicle   string
	Station   string
	Direction string
	Time      string
	Route     string
	Comment   string
}

// ReportFromData assembles a Report from accumulated wizard data. It fails if
// any required field is missing, naming the first absent key.
func ReportFromData(data map[string]string) (Report, error) {
	for _, key := range RequiredReportFields {
		if _, ok := data[key]; !ok {
			return Report{}, fmt.Errorf("report data missing field %q", key)
		}
	}

	return Report{
		Line:      data[FieldLine],
		Vehicle:   data[FieldVehicle],
		Station:   data[FieldStation],
		Direction: data[FieldDirection],
		Time:      data[FieldTime],
		Route:     data[FieldRoute],
		Comment:   data[FieldComment],
	}, nil
}

// EscapeHTML escapes user-supplied text for Telegram HTML parse mode.
func EscapeHTML(text string) string {
	if text == "" {
		return ""
	}
	return html.EscapeString(text)
}

// UserLink renders a submitter identity: @username when available, otherwise
// an HTML mention link built from the first name.
func UserLink(userID int64, username, firstName string) string {
	if strings.TrimSpace(username) != "" {
		return "@" + strings.TrimSpace(username)
	}

	name := EscapeHTML(strings.TrimSpace(firstName))
	if name == "" {
		name = "Пользователь"
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, userID, name)
}
