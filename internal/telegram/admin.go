package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"metro_report_bot/internal/broadcast"
	"metro_report_bot/internal/callback"
	"metro_report_bot/internal/domain"
	"metro_report_bot/internal/logging"
	"metro_report_bot/internal/store"
	"metro_report_bot/internal/wizard"
)

// replyLimit is where long admin replies are split; Telegram caps messages
// at 4096 characters and the original limit leaves headroom.
const replyLimit = 4000

const recentLimit = 10

const buttonCancelEdit = "❌ Отменить"

const buttonBanReason = "Забанен через кнопку админом"

type userDirectory interface {
	GetByID(ctx context.Context, userID int64) (domain.User, error)
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	ListIDs(ctx context.Context) ([]int64, error)
	Recent(ctx context.Context, limit int64) ([]domain.User, error)
}

type banRegistry interface {
	Set(ctx context.Context, userID int64, reason string) error
	Clear(ctx context.Context, userID int64) (bool, error)
	IsBanned(ctx context.Context, userID int64) (bool, error)
	List(ctx context.Context) ([]domain.BanRecord, error)
}

type vehicleCatalog interface {
	List(ctx context.Context) ([]string, error)
	Replace(ctx context.Context, names []string) error
}

type statsSource interface {
	CountUsers(ctx context.Context) (int64, error)
	CountBans(ctx context.Context) (int64, error)
	CountVehicles(ctx context.Context) (int64, error)
}

type adminMessenger interface {
	Send(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, text string) error
}

// modeStore persists admin input modes in the conversation record, so an
// admin mid-broadcast or mid-edit survives a process restart.
type modeStore interface {
	SetStep(ctx context.Context, userID int64, step domain.Step) error
	Clear(ctx context.Context, userID int64) error
}

// Admin implements the moderator surface: bans, the curated vehicle list,
// broadcasts, and stats. Callers are pre-screened against the admin id set by
// the router; these handlers trust their caller.
type Admin struct {
	users      userDirectory
	bans       banRegistry
	vehicles   vehicleCatalog
	stats      statsSource
	states     modeStore
	out        adminMessenger
	dispatcher *broadcast.Dispatcher
	pending    *broadcast.PendingStore

	maxBroadcast int
	logger       *logrus.Entry
}

// NewAdmin wires the admin surface.
func NewAdmin(users userDirectory, bans banRegistry, vehicles vehicleCatalog, stats statsSource, states modeStore, out adminMessenger, dispatcher *broadcast.Dispatcher, pending *broadcast.PendingStore, maxBroadcast int, logger *logrus.Entry) (*Admin, error) {
	if users == nil || bans == nil || vehicles == nil || stats == nil {
		return nil, errors.New("all repositories are required")
	}
	if states == nil {
		return nil, errors.New("state store is required")
	}
	if out == nil {
		return nil, errors.New("messenger is required")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if pending == nil {
		return nil, errors.New("pending store is required")
	}
	if maxBroadcast <= 0 {
		return nil, errors.New("broadcast limit must be positive")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Admin{
		users:        users,
		bans:         bans,
		vehicles:     vehicles,
		stats:        stats,
		states:       states,
		out:          out,
		dispatcher:   dispatcher,
		pending:      pending,
		maxBroadcast: maxBroadcast,
		logger:       logger,
	}, nil
}

// HandleBan bans a user by id or @username, with an optional reason.
func (a *Admin) HandleBan(ctx context.Context, chatID, adminID int64, args string) error {
	args = strings.TrimSpace(args)
	if args == "" {
		help := "❗️ Использование:\n\n" +
			"• /ban <user_id> [причина]\n" +
			"• /ban @username [причина]\n" +
			"• /recent — показать последних пользователей"
		_, err := a.out.Send(ctx, chatID, help, nil)
		return err
	}

	identifier := args
	reason := domain.DefaultBanReason
	if idx := strings.IndexByte(args, ' '); idx > 0 {
		identifier = args[:idx]
		reason = strings.TrimSpace(args[idx+1:])
	}

	userID, username, err := a.resolveUser(ctx, identifier)
	if err != nil {
		return a.sendResolveFailure(ctx, chatID, identifier, err)
	}

	if err := a.bans.Set(ctx, userID, reason); err != nil {
		return fmt.Errorf("ban user %d: %w", userID, err)
	}

	var notice string
	if username != "" {
		notice = fmt.Sprintf("✅ Пользователь @%s (ID: %d) забанен\nПричина: %s", username, userID, reason)
	} else {
		notice = fmt.Sprintf("✅ Пользователь %d забанен\nПричина: %s", userID, reason)
	}
	if _, err := a.out.Send(ctx, chatID, notice, nil); err != nil {
		return err
	}

	a.logger.WithFields(logging.Fields{
		"event":    "user_banned",
		"admin_id": adminID,
		"user_id":  userID,
	}).Info("user banned")
	return nil
}

// HandleUnban lifts a ban by id or @username.
func (a *Admin) HandleUnban(ctx context.Context, chatID, adminID int64, args string) error {
	identifier := strings.TrimSpace(args)
	if identifier == "" {
		_, err := a.out.Send(ctx, chatID, "❗️ Использование: /unban <user_id> или /unban @username", nil)
		return err
	}
	if idx := strings.IndexByte(identifier, ' '); idx > 0 {
		identifier = identifier[:idx]
	}

	userID, username, err := a.resolveUser(ctx, identifier)
	if err != nil {
		return a.sendResolveFailure(ctx, chatID, identifier, err)
	}

	if _, err := a.bans.Clear(ctx, userID); err != nil {
		return fmt.Errorf("unban user %d: %w", userID, err)
	}

	var notice string
	if username != "" {
		notice = fmt.Sprintf("✅ Пользователь @%s (ID: %d) разбанен", username, userID)
	} else {
		notice = fmt.Sprintf("✅ Пользователь %d разбанен", userID)
	}
	if _, err := a.out.Send(ctx, chatID, notice, nil); err != nil {
		return err
	}

	a.logger.WithFields(logging.Fields{
		"event":    "user_unbanned",
		"admin_id": adminID,
		"user_id":  userID,
	}).Info("user unbanned")
	return nil
}

// HandleBanlist lists every ban with the known user details, splitting long
// replies.
func (a *Admin) HandleBanlist(ctx context.Context, chatID, adminID int64) error {
	bans, err := a.bans.List(ctx)
	if err != nil {
		return fmt.Errorf("list bans: %w", err)
	}

	if len(bans) == 0 {
		_, err := a.out.Send(ctx, chatID, "📋 Список банов пуст", nil)
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 Забаненные пользователи (%d):\n\n", len(bans))
	for _, ban := range bans {
		username, firstName := "нет username", "нет"
		if user, err := a.users.GetByID(ctx, ban.UserID); err == nil {
			if user.Username != "" {
				username = "@" + user.Username
			}
			if user.FirstName != "" {
				firstName = user.FirstName
			}
		}

		fmt.Fprintf(&b, "• ID: %d\n", ban.UserID)
		fmt.Fprintf(&b, "  Username: %s\n", username)
		fmt.Fprintf(&b, "  Имя: %s\n", firstName)
		fmt.Fprintf(&b, "  Причина: %s\n\n", ban.Reason)
	}

	for _, part := range splitText(b.String(), replyLimit) {
		if _, err := a.out.Send(ctx, chatID, part, nil); err != nil {
			return err
		}
	}
	return nil
}

// HandleRecent shows the latest users with per-user ban or unban buttons.
func (a *Admin) HandleRecent(ctx context.Context, chatID, adminID int64) error {
	users, err := a.users.Recent(ctx, recentLimit)
	if err != nil {
		return fmt.Errorf("list recent users: %w", err)
	}

	if len(users) == 0 {
		_, err := a.out.Send(ctx, chatID, "📋 Нет пользователей в базе", nil)
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 Последние %d пользователей:\n\n", recentLimit)
	rows := make([][]models.InlineKeyboardButton, 0, len(users))

	for i, user := range users {
		banned, err := a.bans.IsBanned(ctx, user.UserID)
		if err != nil {
			return fmt.Errorf("check ban for %d: %w", user.UserID, err)
		}

		firstName := user.FirstName
		if firstName == "" {
			firstName = "Без имени"
		}
		username := "нет username"
		if user.Username != "" {
			username = "@" + user.Username
		}
		status := "✅"
		if banned {
			status = "🚫 ЗАБАНЕН"
		}

		fmt.Fprintf(&b, "%d. %s %s\n", i+1, status, firstName)
		fmt.Fprintf(&b, "   ID: %d\n", user.UserID)
		fmt.Fprintf(&b, "   %s\n\n", username)

		value := strconv.FormatInt(user.UserID, 10)
		button := models.InlineKeyboardButton{
			Text:         fmt.Sprintf("🚫 Забанить %s", firstName),
			CallbackData: callback.Intent{Kind: callback.KindBanUser, Value: value}.Encode(),
		}
		if banned {
			button = models.InlineKeyboardButton{
				Text:         fmt.Sprintf("✅ Разбанить %s", firstName),
				CallbackData: callback.Intent{Kind: callback.KindUnbanUser, Value: value}.Encode(),
			}
		}
		rows = append(rows, []models.InlineKeyboardButton{button})
	}

	_, err = a.out.Send(ctx, chatID, b.String(), &models.InlineKeyboardMarkup{InlineKeyboard: rows})
	return err
}

// HandleBanButton bans a user from the /recent keyboard and rewrites the
// list message.
func (a *Admin) HandleBanButton(ctx context.Context, chatID int64, msgID int, adminID, userID int64) (string, error) {
	if err := a.bans.Set(ctx, userID, buttonBanReason); err != nil {
		return "", fmt.Errorf("ban user %d: %w", userID, err)
	}

	firstName, username := a.lookupNames(ctx, userID)
	text := fmt.Sprintf("✅ Пользователь %s %s (ID: %d) забанен\n\nИспользуйте /recent для обновления списка",
		firstName, username, userID)
	if err := a.out.Edit(ctx, chatID, msgID, text); err != nil {
		return "", err
	}

	a.logger.WithFields(logging.Fields{
		"event":    "user_banned",
		"admin_id": adminID,
		"user_id":  userID,
	}).Info("user banned via button")
	return fmt.Sprintf("✅ %s забанен", firstName), nil
}

// HandleUnbanButton lifts a ban from the /recent keyboard.
func (a *Admin) HandleUnbanButton(ctx context.Context, chatID int64, msgID int, adminID, userID int64) (string, error) {
	if _, err := a.bans.Clear(ctx, userID); err != nil {
		return "", fmt.Errorf("unban user %d: %w", userID, err)
	}

	firstName, username := a.lookupNames(ctx, userID)
	text := fmt.Sprintf("✅ Пользователь %s %s (ID: %d) разбанен\n\nИспользуйте /recent для обновления списка",
		firstName, username, userID)
	if err := a.out.Edit(ctx, chatID, msgID, text); err != nil {
		return "", err
	}

	a.logger.WithFields(logging.Fields{
		"event":    "user_unbanned",
		"admin_id": adminID,
		"user_id":  userID,
	}).Info("user unbanned via button")
	return fmt.Sprintf("✅ %s разбанен", firstName), nil
}

// HandleGong opens a broadcast: the admin's next message is the payload.
func (a *Admin) HandleGong(ctx context.Context, chatID, adminID int64) error {
	if err := a.states.SetStep(ctx, adminID, domain.StepAdminBroadcast); err != nil {
		return fmt.Errorf("enter broadcast mode: %w", err)
	}

	_, err := a.out.Send(ctx, chatID, "📢 Отправьте текст для рассылки:", nil)
	return err
}

// HandleBroadcastText validates the payload, parks it in the pending store,
// and asks for confirmation. The broadcast mode is consumed either way.
func (a *Admin) HandleBroadcastText(ctx context.Context, chatID, adminID int64, text string) error {
	if err := a.states.Clear(ctx, adminID); err != nil {
		return fmt.Errorf("leave broadcast mode: %w", err)
	}

	payload, err := wizard.ValidateTextLength(text, a.maxBroadcast, "Текст рассылки")
	if err != nil {
		var verr *wizard.ValidationError
		if errors.As(err, &verr) {
			_, sendErr := a.out.Send(ctx, chatID, verr.Message, nil)
			return sendErr
		}
		return err
	}

	recipients, err := a.users.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("list broadcast recipients: %w", err)
	}
	if len(recipients) == 0 {
		_, err := a.out.Send(ctx, chatID, "❗️ Нет пользователей для рассылки", nil)
		return err
	}

	token := a.pending.Put(adminID, payload)
	confirm := fmt.Sprintf("📢 Рассылка для %d пользователей:\n\n%s\n\n❓ Подтвердите рассылку:", len(recipients), payload)
	markup := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "✅ Да", CallbackData: callback.Intent{Kind: callback.KindConfirmBroadcast, Value: token}.Encode()},
			{Text: "❌ Нет", CallbackData: callback.Intent{Kind: callback.KindCancelBroadcast, Value: token}.Encode()},
		}},
	}

	_, err = a.out.Send(ctx, chatID, confirm, markup)
	return err
}

// HandleBroadcastConfirm consumes the pending payload and runs the broadcast
// on its own goroutine so update handling continues. The returned string is
// the callback toast.
func (a *Admin) HandleBroadcastConfirm(ctx context.Context, chatID int64, msgID int, adminID int64, token string) (string, error) {
	pending, ok := a.pending.Take(token)
	if !ok {
		return "❌ Текст не найден", nil
	}

	recipients, err := a.users.ListIDs(ctx)
	if err != nil {
		return "", fmt.Errorf("list broadcast recipients: %w", err)
	}

	if err := a.out.Edit(ctx, chatID, msgID, "🔄 Рассылка в процессе..."); err != nil {
		a.logger.WithField("event", "broadcast_status_edit_failed").WithError(err).Warn("could not update status message")
	}

	go a.runBroadcast(ctx, chatID, msgID, recipients, pending.Text)

	a.logger.WithFields(logging.Fields{
		"event":      "broadcast_confirmed",
		"admin_id":   adminID,
		"recipients": len(recipients),
	}).Info("broadcast confirmed")

	return "🔄 Рассылка началась...", nil
}

// HandleBroadcastCancel discards the pending payload.
func (a *Admin) HandleBroadcastCancel(ctx context.Context, chatID int64, msgID int, adminID int64, token string) (string, error) {
	a.pending.Discard(token)
	if err := a.out.Edit(ctx, chatID, msgID, "❌ Рассылка отменена"); err != nil {
		return "", err
	}

	a.logger.WithFields(logging.Fields{
		"event":    "broadcast_cancelled",
		"admin_id": adminID,
	}).Info("broadcast cancelled")
	return "Отменено", nil
}

func (a *Admin) runBroadcast(ctx context.Context, chatID int64, msgID int, recipients []int64, text string) {
	result := a.dispatcher.Run(ctx, recipients, text, func(processed, total int, r broadcast.Result) {
		status := fmt.Sprintf("🔄 Прогресс: %d/%d (%d успешно, %d ошибок)", processed, total, r.Succeeded, r.Failed)
		if err := a.out.Edit(ctx, chatID, msgID, status); err != nil {
			a.logger.WithField("event", "broadcast_progress_edit_failed").WithError(err).Warn("could not update progress message")
		}
	})

	summary := fmt.Sprintf(
		"✅ Рассылка завершена!\n\n📊 Статистика:\n• Всего пользователей: %d\n• Успешно: %d\n• Ошибок: %d",
		len(recipients), result.Succeeded, result.Failed,
	)
	if err := a.out.Edit(ctx, chatID, msgID, summary); err != nil {
		a.logger.WithField("event", "broadcast_summary_edit_failed").WithError(err).Warn("could not update summary message")
	}
}

// HandleTrains prints the curated vehicle list.
func (a *Admin) HandleTrains(ctx context.Context, chatID, adminID int64) error {
	vehicles, err := a.vehicles.List(ctx)
	if err != nil {
		return fmt.Errorf("list vehicles: %w", err)
	}

	if len(vehicles) == 0 {
		_, err := a.out.Send(ctx, chatID, "📋 Список составов пуст", nil)
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 Список составов (%d шт.):\n\n", len(vehicles))
	for i, name := range vehicles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, name)
	}

	for _, part := range splitText(b.String(), replyLimit) {
		if _, err := a.out.Send(ctx, chatID, part, nil); err != nil {
			return err
		}
	}
	return nil
}

// HandleEditTrains puts the admin in vehicle-editing mode and shows the
// current list.
func (a *Admin) HandleEditTrains(ctx context.Context, chatID, adminID int64) error {
	vehicles, err := a.vehicles.List(ctx)
	if err != nil {
		return fmt.Errorf("list vehicles: %w", err)
	}

	current := "(пусто)"
	if len(vehicles) > 0 {
		current = strings.Join(vehicles, "\n")
	}

	if err := a.states.SetStep(ctx, adminID, domain.StepAdminVehicles); err != nil {
		return fmt.Errorf("enter vehicle edit mode: %w", err)
	}

	instructions := "✏️ Редактирование списка составов\n\n" +
		"Отправьте новый список (каждый состав с новой строки).\n" +
		"Пустые строки будут удалены.\n\n" +
		"📋 Текущий список:\n" + current + "\n\n" +
		"Или нажмите «" + buttonCancelEdit + "» для отмены редактирования."

	markup := &models.ReplyKeyboardMarkup{
		Keyboard:        [][]models.KeyboardButton{{{Text: buttonCancelEdit}}},
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}
	_, err = a.out.Send(ctx, chatID, instructions, markup)
	return err
}

// HandleVehicleEdit consumes the replacement list: one vehicle per line,
// blank lines and stray commands dropped, duplicates removed preserving first
// occurrence. The editing mode is consumed either way.
func (a *Admin) HandleVehicleEdit(ctx context.Context, chatID, adminID int64, text string) error {
	if err := a.states.Clear(ctx, adminID); err != nil {
		return fmt.Errorf("leave vehicle edit mode: %w", err)
	}

	removeKeyboard := &models.ReplyKeyboardRemove{RemoveKeyboard: true}

	if strings.TrimSpace(text) == buttonCancelEdit {
		_, err := a.out.Send(ctx, chatID, "❌ Редактирование отменено", removeKeyboard)
		return err
	}

	var names []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "/") {
			continue
		}
		names = append(names, line)
	}

	if len(names) == 0 {
		_, err := a.out.Send(ctx, chatID, "❗️ Список не может быть пустым. Попробуйте /edittrains снова.", removeKeyboard)
		return err
	}

	seen := make(map[string]struct{}, len(names))
	unique := make([]string, 0, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		unique = append(unique, name)
	}

	if err := a.vehicles.Replace(ctx, unique); err != nil {
		return fmt.Errorf("replace vehicle list: %w", err)
	}

	result := fmt.Sprintf(
		"✅ Список составов обновлен!\n\n📊 Добавлено: %d составов\n🔁 Удалено дубликатов: %d\n\nИспользуйте /trains для просмотра.",
		len(unique), len(names)-len(unique),
	)
	if _, err := a.out.Send(ctx, chatID, result, removeKeyboard); err != nil {
		return err
	}

	a.logger.WithFields(logging.Fields{
		"event":    "vehicles_updated",
		"admin_id": adminID,
		"count":    len(unique),
	}).Info("vehicle list updated")
	return nil
}

// HandleStats prints store counters.
func (a *Admin) HandleStats(ctx context.Context, chatID, adminID int64) error {
	users, err := a.stats.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	bans, err := a.stats.CountBans(ctx)
	if err != nil {
		return fmt.Errorf("count bans: %w", err)
	}
	vehicles, err := a.stats.CountVehicles(ctx)
	if err != nil {
		return fmt.Errorf("count vehicles: %w", err)
	}

	text := fmt.Sprintf("📊 Статистика:\n• Пользователей: %d\n• Банов: %d\n• Составов: %d", users, bans, vehicles)
	_, err = a.out.Send(ctx, chatID, text, nil)
	return err
}

// HandleHelp prints the admin command reference.
func (a *Admin) HandleHelp(ctx context.Context, chatID, adminID int64) error {
	help := "🛠 Команды администратора:\n\n" +
		"• /ban <user_id|@username> [причина] — забанить\n" +
		"• /unban <user_id|@username> — разбанить\n" +
		"• /banlist — список банов\n" +
		"• /recent — последние пользователи с кнопками\n" +
		"• /gong — массовая рассылка\n" +
		"• /trains — список составов\n" +
		"• /edittrains — заменить список составов\n" +
		"• /stats — статистика"
	_, err := a.out.Send(ctx, chatID, help, nil)
	return err
}

// resolveUser turns "@username" or a numeric id into a known user. Both paths
// go through the directory: a ban may only target a user the bot has seen, so
// an unknown id is rejected the same way an unknown username is.
func (a *Admin) resolveUser(ctx context.Context, identifier string) (int64, string, error) {
	if name, ok := strings.CutPrefix(identifier, "@"); ok {
		user, err := a.users.GetByUsername(ctx, name)
		if err != nil {
			return 0, name, err
		}
		return user.UserID, name, nil
	}

	userID, err := strconv.ParseInt(identifier, 10, 64)
	if err != nil {
		return 0, "", errBadIdentifier
	}

	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return 0, "", err
	}
	return user.UserID, user.Username, nil
}

var errBadIdentifier = errors.New("identifier is neither an id nor a username")

func (a *Admin) sendResolveFailure(ctx context.Context, chatID int64, identifier string, err error) error {
	switch {
	case errors.Is(err, errBadIdentifier):
		_, sendErr := a.out.Send(ctx, chatID, "❌ Неверный формат. Используйте ID или @username", nil)
		return sendErr
	case errors.Is(err, store.ErrNotFound):
		_, sendErr := a.out.Send(ctx, chatID, fmt.Sprintf("❌ Пользователь %s не найден в базе", identifier), nil)
		return sendErr
	default:
		return err
	}
}

func (a *Admin) lookupNames(ctx context.Context, userID int64) (firstName, username string) {
	firstName = "Пользователь"
	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return firstName, ""
	}
	if user.FirstName != "" {
		firstName = user.FirstName
	}
	if user.Username != "" {
		username = "@" + user.Username
	}
	return firstName, username
}

// splitText chops text into rune-safe chunks of at most limit runes.
func splitText(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var parts []string
	for len(runes) > 0 {
		n := limit
		if n > len(runes) {
			n = len(runes)
		}
		parts = append(parts, string(runes[:n]))
		runes = runes[n:]
	}
	return parts
}
