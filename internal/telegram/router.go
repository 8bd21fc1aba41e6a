package telegram

import (
	"context"
	"errors"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"metro_report_bot/internal/callback"
	"metro_report_bot/internal/config"
	"metro_report_bot/internal/domain"
	"metro_report_bot/internal/logging"
	"metro_report_bot/internal/wizard"
)

// Callback answer toasts.
const (
	answerStale     = "❌ Устарело"
	answerRestart   = "❌ Начните с /start"
	answerBadLine   = "❌ Неверная линия"
	answerFailure   = "❌ Ошибка"
	answerForbidden = "❌ Нет доступа"
)

// reportFlow is the wizard surface the router drives.
type reportFlow interface {
	Start(ctx context.Context, chatID int64, user wizard.User) error
	Begin(ctx context.Context, chatID int64, user wizard.User) error
	SelectLine(ctx context.Context, chatID int64, user wizard.User, lineID string) error
	SelectVehicle(ctx context.Context, chatID int64, user wizard.User, name string) error
	RequestVehicleEntry(ctx context.Context, chatID int64, user wizard.User) error
	EnterVehicle(ctx context.Context, chatID int64, user wizard.User, text string) error
	SelectStation(ctx context.Context, chatID int64, user wizard.User, station string) error
	SelectDirection(ctx context.Context, chatID int64, user wizard.User, direction string) error
	SelectTime(ctx context.Context, chatID int64, user wizard.User, label string) error
	ChooseRoute(ctx context.Context, chatID int64, user wizard.User, text string) error
	EnterRoute(ctx context.Context, chatID int64, user wizard.User, text string) error
	EnterComment(ctx context.Context, chatID int64, user wizard.User, text string) error
	Resolve(ctx context.Context, chatID int64, user wizard.User, publish bool, promptMessageID int) error
}

// stepSource reads the user's current wizard position for message routing.
type stepSource interface {
	Step(ctx context.Context, userID int64) (domain.Step, error)
}

// userRegistrar upserts the sender of every inbound message.
type userRegistrar interface {
	Upsert(ctx context.Context, userID int64, username, firstName string) (bool, error)
}

type callbackAnswerer interface {
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Router dispatches every update: commands, wizard free text by step,
// and decoded callback intents.
type Router struct {
	cfg       config.Config
	flow      reportFlow
	admin     *Admin
	steps     stepSource
	users     userRegistrar
	answerer  callbackAnswerer
	messenger *Messenger
	logger    *logrus.Entry
}

// NewRouter wires the update router.
func NewRouter(cfg config.Config, flow reportFlow, admin *Admin, steps stepSource, users userRegistrar, messenger *Messenger, logger *logrus.Entry) (*Router, error) {
	if flow == nil {
		return nil, errors.New("report flow is required")
	}
	if admin == nil {
		return nil, errors.New("admin surface is required")
	}
	if steps == nil {
		return nil, errors.New("step source is required")
	}
	if users == nil {
		return nil, errors.New("user registrar is required")
	}
	if messenger == nil {
		return nil, errors.New("messenger is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Router{
		cfg:       cfg,
		flow:      flow,
		admin:     admin,
		steps:     steps,
		users:     users,
		answerer:  messenger,
		messenger: messenger,
		logger:    logger,
	}, nil
}

func (r *Router) bind(api botAPI) {
	r.messenger.bind(api)
}

// Handle is the bot's default update handler.
func (r *Router) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil {
		return
	}

	switch {
	case update.Message != nil:
		r.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		r.handleCallback(ctx, update.CallbackQuery)
	default:
		r.logger.WithField("event", "update_ignored").Debug("unhandled update type")
	}
}

func (r *Router) handleMessage(ctx context.Context, msg *models.Message) {
	from := msg.From
	if from == nil || from.IsBot {
		return
	}

	if _, err := r.users.Upsert(ctx, from.ID, from.Username, from.FirstName); err != nil {
		r.logger.WithFields(logging.Conversation(from.ID, msg.Chat.ID)).
			WithField("event", "user_upsert_failed").
			WithError(err).Warn("could not record user")
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	user := wizard.User{ID: from.ID, Username: from.Username, FirstName: from.FirstName}
	chatID := msg.Chat.ID

	if strings.HasPrefix(text, "/") {
		r.handleCommand(ctx, chatID, user, text)
		return
	}

	step, err := r.steps.Step(ctx, user.ID)
	if err != nil {
		r.report(user.ID, err)
		return
	}

	// Admin input modes are persisted as steps and take precedence over the
	// wizard; for anyone outside the admin set these steps are inert.
	if r.cfg.IsAdmin(user.ID) {
		switch step {
		case domain.StepAdminBroadcast:
			r.report(user.ID, r.admin.HandleBroadcastText(ctx, chatID, user.ID, text))
			return
		case domain.StepAdminVehicles:
			r.report(user.ID, r.admin.HandleVehicleEdit(ctx, chatID, user.ID, text))
			return
		}
	}

	if text == wizard.ButtonStartReport {
		r.report(user.ID, r.flow.Begin(ctx, chatID, user))
		return
	}

	switch step {
	case domain.StepVehicleManual:
		r.report(user.ID, r.flow.EnterVehicle(ctx, chatID, user, text))
	case domain.StepRouteChoice:
		r.report(user.ID, r.flow.ChooseRoute(ctx, chatID, user, text))
	case domain.StepRouteManual:
		r.report(user.ID, r.flow.EnterRoute(ctx, chatID, user, text))
	case domain.StepComment:
		r.report(user.ID, r.flow.EnterComment(ctx, chatID, user, text))
	default:
		// Free text outside an input step carries no meaning.
	}
}

func (r *Router) handleCommand(ctx context.Context, chatID int64, user wizard.User, text string) {
	command, args := splitCommand(text)

	if command == "/start" {
		r.report(user.ID, r.flow.Start(ctx, chatID, user))
		return
	}

	// Everything below is the admin surface; non-admins are ignored without
	// a reply so the command set stays undiscoverable.
	if !r.cfg.IsAdmin(user.ID) {
		return
	}

	var err error
	switch command {
	case "/ban":
		err = r.admin.HandleBan(ctx, chatID, user.ID, args)
	case "/unban":
		err = r.admin.HandleUnban(ctx, chatID, user.ID, args)
	case "/banlist":
		err = r.admin.HandleBanlist(ctx, chatID, user.ID)
	case "/recent":
		err = r.admin.HandleRecent(ctx, chatID, user.ID)
	case "/gong":
		err = r.admin.HandleGong(ctx, chatID, user.ID)
	case "/trains":
		err = r.admin.HandleTrains(ctx, chatID, user.ID)
	case "/edittrains":
		err = r.admin.HandleEditTrains(ctx, chatID, user.ID)
	case "/stats":
		err = r.admin.HandleStats(ctx, chatID, user.ID)
	case "/help":
		err = r.admin.HandleHelp(ctx, chatID, user.ID)
	default:
		return
	}
	r.report(user.ID, err)
}

func (r *Router) handleCallback(ctx context.Context, cq *models.CallbackQuery) {
	intent, ok := callback.Decode(cq.Data)
	if !ok {
		r.answer(ctx, cq.ID, "")
		return
	}

	chatID := messageChatID(cq.Message)
	if chatID == 0 {
		r.answer(ctx, cq.ID, answerStale)
		return
	}
	msgID := messageID(cq.Message)
	user := wizard.User{ID: cq.From.ID, Username: cq.From.Username, FirstName: cq.From.FirstName}

	switch intent.Kind {
	case callback.KindSelectLine:
		r.answerFlow(ctx, cq.ID, user.ID, r.flow.SelectLine(ctx, chatID, user, intent.Value))
	case callback.KindSelectVehicle:
		r.answerFlow(ctx, cq.ID, user.ID, r.flow.SelectVehicle(ctx, chatID, user, intent.Value))
	case callback.KindVehicleManual:
		r.answerFlow(ctx, cq.ID, user.ID, r.flow.RequestVehicleEntry(ctx, chatID, user))
	case callback.KindSelectStation:
		r.answerFlow(ctx, cq.ID, user.ID, r.flow.SelectStation(ctx, chatID, user, intent.Value))
	case callback.KindSelectDirection:
		r.answerFlow(ctx, cq.ID, user.ID, r.flow.SelectDirection(ctx, chatID, user, intent.Value))
	case callback.KindSelectTime:
		r.answerFlow(ctx, cq.ID, user.ID, r.flow.SelectTime(ctx, chatID, user, intent.Value))
	case callback.KindPublishReport:
		r.answerFlow(ctx, cq.ID, user.ID, r.flow.Resolve(ctx, chatID, user, true, msgID))
	case callback.KindCancelReport:
		r.answerFlow(ctx, cq.ID, user.ID, r.flow.Resolve(ctx, chatID, user, false, msgID))

	case callback.KindBanUser, callback.KindUnbanUser,
		callback.KindConfirmBroadcast, callback.KindCancelBroadcast:
		r.handleAdminCallback(ctx, cq.ID, chatID, msgID, user.ID, intent)

	default:
		r.answer(ctx, cq.ID, "")
	}
}

func (r *Router) handleAdminCallback(ctx context.Context, callbackID string, chatID int64, msgID int, adminID int64, intent callback.Intent) {
	if !r.cfg.IsAdmin(adminID) {
		r.answer(ctx, callbackID, answerForbidden)
		return
	}

	var (
		toast string
		err   error
	)

	switch intent.Kind {
	case callback.KindBanUser, callback.KindUnbanUser:
		var target int64
		target, err = intent.UserID()
		if err == nil {
			if intent.Kind == callback.KindBanUser {
				toast, err = r.admin.HandleBanButton(ctx, chatID, msgID, adminID, target)
			} else {
				toast, err = r.admin.HandleUnbanButton(ctx, chatID, msgID, adminID, target)
			}
		}
	case callback.KindConfirmBroadcast:
		toast, err = r.admin.HandleBroadcastConfirm(ctx, chatID, msgID, adminID, intent.Value)
	case callback.KindCancelBroadcast:
		toast, err = r.admin.HandleBroadcastCancel(ctx, chatID, msgID, adminID, intent.Value)
	}

	if err != nil {
		r.report(adminID, err)
		r.answer(ctx, callbackID, answerFailure)
		return
	}
	r.answer(ctx, callbackID, toast)
}

// answerFlow acknowledges a wizard callback, mapping flow errors to toasts.
func (r *Router) answerFlow(ctx context.Context, callbackID string, userID int64, err error) {
	switch {
	case err == nil:
		r.answer(ctx, callbackID, "")
	case errors.Is(err, wizard.ErrWrongStep):
		r.answer(ctx, callbackID, answerRestart)
	case errors.Is(err, wizard.ErrUnknownOption):
		r.answer(ctx, callbackID, answerBadLine)
	default:
		r.report(userID, err)
		r.answer(ctx, callbackID, answerFailure)
	}
}

func (r *Router) answer(ctx context.Context, callbackID, text string) {
	if err := r.answerer.AnswerCallback(ctx, callbackID, text); err != nil {
		r.logger.WithField("event", "callback_answer_failed").WithError(err).Warn("could not answer callback")
	}
}

// report logs a handler failure; the conversation itself already got its
// user-facing reply where one applies.
func (r *Router) report(userID int64, err error) {
	if err == nil {
		return
	}
	r.logger.WithFields(logging.Conversation(userID, 0)).
		WithField("event", "handler_failed").
		WithError(err).Error("update handler failed")
}

// splitCommand separates "/cmd@bot args" into the bare command and its
// argument string.
func splitCommand(text string) (command, args string) {
	command = text
	if idx := strings.IndexByte(text, ' '); idx > 0 {
		command = text[:idx]
		args = strings.TrimSpace(text[idx+1:])
	}
	if idx := strings.IndexByte(command, '@'); idx > 0 {
		command = command[:idx]
	}
	return strings.ToLower(command), args
}
