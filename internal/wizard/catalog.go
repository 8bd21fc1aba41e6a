package wizard

// Static Petersburg metro catalog backing the wizard keyboards. Lines and
// stations change rarely enough that a release is an acceptable update path.

// LineIDs lists the metro lines in keyboard order.
var LineIDs = []string{"1", "2", "3", "4", "5"}

// LineNames maps a line id to its display name.
var LineNames = map[string]string{
	"1": "Кировско-Выборгская",
	"2": "Московско-Петроградская",
	"3": "Невско-Василеостровская",
	"4": "Правобережная",
	"5": "Фрунзенско-Приморская",
}

// LineEmoji maps a line id to the colored marker used in keyboards and
// published reports.
var LineEmoji = map[string]string{
	"1": "🔴",
	"2": "🔵",
	"3": "🟢",
	"4": "🟠",
	"5": "🟣",
}

// Stations maps a line id to its stations in track order. The same list
// serves both the station and the direction keyboards.
var Stations = map[string][]string{
	"1": {
		"Девяткино", "Гражданский проспект", "Академическая", "Политехническая",
		"Площадь Мужества", "Лесная", "Выборгская", "Площадь Ленина",
		"Чернышевская", "Площадь Восстания", "Владимирская", "Пушкинская",
		"Технологический институт", "Балтийская", "Нарвская", "Кировский завод",
		"Автово", "Ленинский проспект", "Проспект Ветеранов",
	},
	"2": {
		"Парнас", "Проспект Просвещения", "Озерки", "Удельная", "Пионерская",
		"Чёрная речка", "Петроградская", "Горьковская", "Невский проспект",
		"Сенная площадь", "Технологический институт", "Фрунзенская",
		"Московские ворота", "Электросила", "Парк Победы", "Московская",
		"Звёздная", "Купчино",
	},
	"3": {
		"Беговая", "Зенит", "Приморская", "Василеостровская", "Гостиный двор",
		"Маяковская", "Площадь Александра Невского", "Елизаровская",
		"Ломоносовская", "Пролетарская", "Обухово", "Рыбацкое",
	},
	"4": {
		"Горный институт", "Спасская", "Достоевская", "Лиговский проспект",
		"Площадь Александра Невского", "Новочеркасская", "Ладожская",
		"Проспект Большевиков", "Улица Дыбенко",
	},
	"5": {
		"Комендантский проспект", "Старая Деревня", "Крестовский остров",
		"Чкаловская", "Спортивная", "Адмиралтейская", "Садовая",
		"Звенигородская", "Обводный канал", "Волковская", "Бухарестская",
		"Международная", "Проспект Славы", "Дунайская", "Шушары",
	},
}

// TimeLabels lists the sighting time options in keyboard order.
var TimeLabels = []string{
	"Сейчас",
	"5 минут назад",
	"10 минут назад",
	"15 минут назад",
	"20 минут назад",
	"30 минут назад",
	"45 минут назад",
	"60 минут назад",
}

// KnownLine reports whether id names a catalog line.
func KnownLine(id string) bool {
	_, ok := LineNames[id]
	return ok
}
