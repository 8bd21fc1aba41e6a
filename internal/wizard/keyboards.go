package wizard

import (
	"fmt"

	"github.com/go-telegram/bot/models"

	"metro_report_bot/internal/callback"
)

// Reply keyboard button labels. Free-text handlers match on these, so they
// are shared with the transport layer.
const (
	ButtonStartReport = "📨 Сообщить о вагоне"
	ButtonEnterRoute  = "Указать маршрут"
	ButtonSkipRoute   = "Пропустить"
	ButtonNoComment   = "Без комментария"
)

// ReportMenuKeyboard is the persistent entry point offered after /start and
// after a finished report.
func ReportMenuKeyboard() models.ReplyMarkup {
	return &models.ReplyKeyboardMarkup{
		Keyboard:        [][]models.KeyboardButton{{{Text: ButtonStartReport}}},
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}
}

func lineKeyboard() models.ReplyMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(LineIDs))
	for _, id := range LineIDs {
		emoji := LineEmoji[id]
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         fmt.Sprintf("%s %s (%s) %s", emoji, LineNames[id], id, emoji),
			CallbackData: callback.Intent{Kind: callback.KindSelectLine, Value: id}.Encode(),
		}})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func vehicleKeyboard(vehicles []string) models.ReplyMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(vehicles)+1)
	for _, name := range vehicles {
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         name,
			CallbackData: callback.Intent{Kind: callback.KindSelectVehicle, Value: name}.Encode(),
		}})
	}
	rows = append(rows, []models.InlineKeyboardButton{{
		Text:         "✍️ Ввести вручную",
		CallbackData: callback.Intent{Kind: callback.KindVehicleManual}.Encode(),
	}})
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func stationKeyboard(kind callback.Kind, stations []string) models.ReplyMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(stations))
	for _, station := range stations {
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         station,
			CallbackData: callback.Intent{Kind: kind, Value: station}.Encode(),
		}})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func timeKeyboard() models.ReplyMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(TimeLabels))
	for _, label := range TimeLabels {
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         label,
			CallbackData: callback.Intent{Kind: callback.KindSelectTime, Value: label}.Encode(),
		}})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func routeChoiceKeyboard() models.ReplyMarkup {
	return &models.ReplyKeyboardMarkup{
		Keyboard: [][]models.KeyboardButton{{
			{Text: ButtonEnterRoute}, {Text: ButtonSkipRoute},
		}},
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}
}

func commentKeyboard() models.ReplyMarkup {
	return &models.ReplyKeyboardMarkup{
		Keyboard:        [][]models.KeyboardButton{{{Text: ButtonNoComment}}},
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}
}

func confirmKeyboard() models.ReplyMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "✅ Опубликовать", CallbackData: callback.Intent{Kind: callback.KindPublishReport}.Encode()},
			{Text: "❌ Отменить", CallbackData: callback.Intent{Kind: callback.KindCancelReport}.Encode()},
		}},
	}
}
