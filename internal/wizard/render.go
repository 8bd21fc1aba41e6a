package wizard

import (
	"fmt"

	"metro_report_bot/internal/domain"
)

const suggestionFooter = "Предложка: @metro_report_bot"

// reportBody renders the published form of a report. User-supplied fields are
// HTML-escaped; the submitter link is already safe HTML.
func reportBody(report domain.Report, userLink string) string {
	emoji := LineEmoji[report.Line]

	return fmt.Sprintf(
		"🚇 Линия: %s %s %s\n"+
			"🚆 Состав: %s\n"+
			"📍 Станция: %s\n"+
			"⬆️ Направление: %s\n"+
			"🕐 Время: %s\n"+
			"💬 Комментарий: %s\n"+
			"🔁 Маршрут: %s\n"+
			"📫 Прислал: %s\n"+
			"\n%s",
		emoji, report.Line, emoji,
		domain.EscapeHTML(report.Vehicle),
		domain.EscapeHTML(report.Station),
		domain.EscapeHTML(report.Direction),
		report.Time,
		domain.EscapeHTML(report.Comment),
		report.Route,
		userLink,
		suggestionFooter,
	)
}

func confirmText(report domain.Report, userLink string) string {
	return "8️⃣ Проверьте перед публикацией:\n\n" + reportBody(report, userLink)
}
