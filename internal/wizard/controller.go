// Package wizard drives the multi-step report conversation: it validates each
// answer against the current step, advances the persisted state, and publishes
// the assembled report to the channel on confirmation.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"metro_report_bot/internal/callback"
	"metro_report_bot/internal/domain"
	"metro_report_bot/internal/logging"
	"metro_report_bot/internal/retry"
	"metro_report_bot/internal/state"
	"metro_report_bot/internal/store"
)

// User-facing texts. The wizard speaks Russian like the channel it feeds.
const (
	msgGreeting       = "👋🏻 Здравствуйте! Здесь вы можете сообщить о необычном вагоне/составе."
	msgBanned         = "❌ Вы заблокированы и не можете использовать бота."
	msgChooseButton   = "❗️ Выберите кнопку"
	msgPublished      = "✅ Опубликовано!"
	msgPublishFailed  = "❌ Ошибка публикации"
	msgCancelled      = "❌ Отменено. Используйте /start для новой попытки."
	msgGenericError   = "❗️ Ошибка. Попробуйте /start"
	promptLine        = "1️⃣ Выберите линию:"
	promptVehicle     = "2️⃣ Выберите состав:"
	promptVehicleText = "✍️ Введите название состава:"
	promptStation     = "3️⃣ Станция обнаружения:"
	promptDirection   = "4️⃣ Направление/конечная:"
	promptTime        = "5️⃣ Время обнаружения:"
	promptRoute       = "6️⃣ Маршрут (трёхзначное число) или пропустить:"
	promptRouteText   = "✍️ Введите маршрут (трёхзначное число):"
	promptComment     = "7️⃣ Комментарий или «Без комментария»:"
)

// RouteSkipped is stored when the reporter has no route number.
const RouteSkipped = "-"

var (
	// ErrWrongStep reports a button press that does not match the user's
	// current step, usually a press on a stale keyboard.
	ErrWrongStep = errors.New("conversation is not at this step")

	// ErrUnknownOption reports a catalog value the bot never offered.
	ErrUnknownOption = errors.New("option is not in the catalog")
)

// User identifies the reporter for ban checks and the submitter link.
type User struct {
	ID        int64
	Username  string
	FirstName string
}

// Outbound sends and deletes chat messages. Send returns the message id so
// prompts can be removed when the conversation advances.
type Outbound interface {
	Send(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) (int, error)
	SendHTML(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) (int, error)
	Delete(ctx context.Context, chatID int64, messageID int) error
}

// Publisher posts a finished report to the channel.
type Publisher interface {
	Publish(ctx context.Context, text string) error
}

// BanChecker gates banned users out of the wizard.
type BanChecker interface {
	IsBanned(ctx context.Context, userID int64) (bool, error)
}

// VehicleSource supplies the curated vehicle list for the selection keyboard.
type VehicleSource interface {
	List(ctx context.Context) ([]string, error)
}

// Limits bounds the free-text answers.
type Limits struct {
	MaxVehicleNameLength int
	MaxCommentLength     int
}

// Controller is the report wizard flow. All methods are safe to call
// concurrently for different users; per-user updates arrive in order from the
// transport layer.
type Controller struct {
	states   *state.Engine
	bans     BanChecker
	vehicles VehicleSource
	out      Outbound
	pub      Publisher
	limits   Limits
	logger   *logrus.Entry

	publishPolicy retry.Policy
	now           func() time.Time
}

// NewController wires the wizard over its collaborators.
func NewController(states *state.Engine, bans BanChecker, vehicles VehicleSource, out Outbound, pub Publisher, limits Limits, logger *logrus.Entry) (*Controller, error) {
	if states == nil {
		return nil, errors.New("state engine is required")
	}
	if bans == nil {
		return nil, errors.New("ban checker is required")
	}
	if vehicles == nil {
		return nil, errors.New("vehicle source is required")
	}
	if out == nil {
		return nil, errors.New("outbound sender is required")
	}
	if pub == nil {
		return nil, errors.New("publisher is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Controller{
		states:        states,
		bans:          bans,
		vehicles:      vehicles,
		out:           out,
		pub:           pub,
		limits:        limits,
		logger:        logger,
		publishPolicy: retry.PublishPolicy,
		now:           time.Now,
	}, nil
}

// Start greets the user and offers the report button. Banned users get a
// refusal instead.
func (c *Controller) Start(ctx context.Context, chatID int64, user User) error {
	banned, err := c.bans.IsBanned(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("ban check: %w", err)
	}
	if banned {
		_, err = c.out.Send(ctx, chatID, msgBanned, nil)
		return err
	}

	if _, err := c.out.Send(ctx, chatID, msgGreeting, ReportMenuKeyboard()); err != nil {
		return fmt.Errorf("send greeting: %w", err)
	}

	c.logger.WithFields(logging.Fields{
		"event":   "wizard_greeted",
		"user_id": user.ID,
	}).Info("user started bot")

	return nil
}

// Begin resets any in-flight conversation and opens the line selection step.
func (c *Controller) Begin(ctx context.Context, chatID int64, user User) error {
	banned, err := c.bans.IsBanned(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("ban check: %w", err)
	}
	if banned {
		_, err = c.out.Send(ctx, chatID, msgBanned, nil)
		return err
	}

	if err := c.states.Clear(ctx, user.ID); err != nil {
		return err
	}
	if err := c.states.SetStep(ctx, user.ID, domain.StepLine); err != nil {
		return err
	}

	msgID, err := c.out.Send(ctx, chatID, promptLine, lineKeyboard())
	if err != nil {
		return fmt.Errorf("send line prompt: %w", err)
	}
	if err := c.remember(ctx, user.ID, msgID); err != nil {
		return err
	}

	c.logger.WithFields(logging.Fields{
		"event":   "wizard_started",
		"user_id": user.ID,
	}).Info("report started")

	return nil
}

// SelectLine records the chosen line and opens vehicle selection.
func (c *Controller) SelectLine(ctx context.Context, chatID int64, user User, lineID string) error {
	if err := c.require(ctx, user.ID, domain.StepLine); err != nil {
		return err
	}
	if !KnownLine(lineID) {
		return ErrUnknownOption
	}

	if err := c.states.SetField(ctx, user.ID, domain.FieldLine, lineID); err != nil {
		return err
	}
	if err := c.states.SetStep(ctx, user.ID, domain.StepVehicle); err != nil {
		return err
	}
	c.deleteLast(ctx, user.ID, chatID)

	msgID, err := c.out.Send(ctx, chatID, promptVehicle, vehicleKeyboard(c.vehicleList(ctx)))
	if err != nil {
		return fmt.Errorf("send vehicle prompt: %w", err)
	}
	return c.remember(ctx, user.ID, msgID)
}

// SelectVehicle records a vehicle picked from the keyboard and opens station
// selection.
func (c *Controller) SelectVehicle(ctx context.Context, chatID int64, user User, name string) error {
	if err := c.require(ctx, user.ID, domain.StepVehicle); err != nil {
		return err
	}

	if err := c.states.SetField(ctx, user.ID, domain.FieldVehicle, name); err != nil {
		return err
	}
	if err := c.states.SetStep(ctx, user.ID, domain.StepStation); err != nil {
		return err
	}
	c.deleteLast(ctx, user.ID, chatID)

	return c.askStation(ctx, chatID, user.ID)
}

// RequestVehicleEntry switches to manual vehicle input.
func (c *Controller) RequestVehicleEntry(ctx context.Context, chatID int64, user User) error {
	if err := c.require(ctx, user.ID, domain.StepVehicle); err != nil {
		return err
	}

	if err := c.states.SetStep(ctx, user.ID, domain.StepVehicleManual); err != nil {
		return err
	}
	c.deleteLast(ctx, user.ID, chatID)

	msgID, err := c.out.Send(ctx, chatID, promptVehicleText, nil)
	if err != nil {
		return fmt.Errorf("send vehicle entry prompt: %w", err)
	}
	return c.remember(ctx, user.ID, msgID)
}

// EnterVehicle handles a manually typed vehicle name. On validation failure
// the step is re-issued without advancing.
func (c *Controller) EnterVehicle(ctx context.Context, chatID int64, user User, text string) error {
	name, err := ValidateTextLength(text, c.limits.MaxVehicleNameLength, "Название")
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			c.deleteLast(ctx, user.ID, chatID)
			return c.reject(ctx, chatID, user.ID, verr)
		}
		return err
	}

	if err := c.states.SetField(ctx, user.ID, domain.FieldVehicle, name); err != nil {
		return err
	}
	if err := c.states.SetStep(ctx, user.ID, domain.StepStation); err != nil {
		return err
	}
	c.deleteLast(ctx, user.ID, chatID)

	return c.askStation(ctx, chatID, user.ID)
}

// SelectStation records the sighting station and opens direction selection.
func (c *Controller) SelectStation(ctx context.Context, chatID int64, user User, station string) error {
	if err := c.require(ctx, user.ID, domain.StepStation); err != nil {
		return err
	}

	if err := c.states.SetField(ctx, user.ID, domain.FieldStation, station); err != nil {
		return err
	}
	if err := c.states.SetStep(ctx, user.ID, domain.StepDirection); err != nil {
		return err
	}
	c.deleteLast(ctx, user.ID, chatID)

	return c.askDirection(ctx, chatID, user.ID)
}

// SelectDirection records the travel direction and opens time selection.
func (c *Controller) SelectDirection(ctx context.Context, chatID int64, user User, direction string) error {
	if err := c.require(ctx, user.ID, domain.StepDirection); err != nil {
		return err
	}

	if err := c.states.SetField(ctx, user.ID, domain.FieldDirection, direction); err != nil {
		return err
	}
	if err := c.states.SetStep(ctx, user.ID, domain.StepTime); err != nil {
		return err
	}
	c.deleteLast(ctx, user.ID, chatID)

	msgID, err := c.out.Send(ctx, chatID, promptTime, timeKeyboard())
	if err != nil {
		return fmt.Errorf("send time prompt: %w", err)
	}
	return c.remember(ctx, user.ID, msgID)
}

// SelectTime resolves the chosen relative label to a wall-clock HH:MM and
// opens the route choice step.
func (c *Controller) SelectTime(ctx context.Context, chatID int64, user User, label string) error {
	if err := c.require(ctx, user.ID, domain.StepTime); err != nil {
		return err
	}

	observed := ObservedTime(c.now(), label)
	if err := c.states.SetField(ctx, user.ID, domain.FieldTime, observed); err != nil {
		return err
	}
	if err := c.states.SetStep(ctx, user.ID, domain.StepRouteChoice); err != nil {
		return err
	}
	c.deleteLast(ctx, user.ID, chatID)

	msgID, err := c.out.Send(ctx, chatID, promptRoute, routeChoiceKeyboard())
	if err != nil {
		return fmt.Errorf("send route prompt: %w", err)
	}
	return c.remember(ctx, user.ID, msgID)
}

// ChooseRoute handles the route choice reply buttons: skip stores the
// sentinel, enter switches to manual input, anything else re-prompts.
func (c *Controller) ChooseRoute(ctx context.Context, chatID int64, user User, text string) error {
	switch strings.TrimSpace(text) {
	case ButtonSkipRoute:
		if err := c.states.SetField(ctx, user.ID, domain.FieldRoute, RouteSkipped); err != nil {
			return err
		}
		if err := c.states.SetStep(ctx, user.ID, domain.StepComment); err != nil {
			return err
		}
		return c.askComment(ctx, chatID, user.ID)

	case ButtonEnterRoute:
		if err := c.states.SetStep(ctx, user.ID, domain.StepRouteManual); err != nil {
			return err
		}
		msgID, err := c.out.Send(ctx, chatID, promptRouteText, nil)
		if err != nil {
			return fmt.Errorf("send route entry prompt: %w", err)
		}
		return c.remember(ctx, user.ID, msgID)

	default:
		msgID, err := c.out.Send(ctx, chatID, msgChooseButton, nil)
		if err != nil {
			return fmt.Errorf("send choice reminder: %w", err)
		}
		return c.remember(ctx, user.ID, msgID)
	}
}

// EnterRoute validates a manually typed route number.
func (c *Controller) EnterRoute(ctx context.Context, chatID int64, user User, text string) error {
	route := strings.TrimSpace(text)
	if err := ValidateRouteNumber(route); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return c.reject(ctx, chatID, user.ID, verr)
		}
		return err
	}

	if err := c.states.SetField(ctx, user.ID, domain.FieldRoute, route); err != nil {
		return err
	}
	if err := c.states.SetStep(ctx, user.ID, domain.StepComment); err != nil {
		return err
	}
	return c.askComment(ctx, chatID, user.ID)
}

// EnterComment stores the free-text comment, or the skip sentinel for the
// "no comment" button, and shows the confirmation preview.
func (c *Controller) EnterComment(ctx context.Context, chatID int64, user User, text string) error {
	comment := strings.TrimSpace(text)
	if strings.EqualFold(comment, ButtonNoComment) {
		comment = RouteSkipped
	} else {
		valid, err := ValidateTextLength(comment, c.limits.MaxCommentLength, "Комментарий")
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				return c.reject(ctx, chatID, user.ID, verr)
			}
			return err
		}
		comment = valid
	}

	if err := c.states.SetField(ctx, user.ID, domain.FieldComment, comment); err != nil {
		return err
	}
	if err := c.states.SetStep(ctx, user.ID, domain.StepConfirm); err != nil {
		return err
	}

	return c.showConfirm(ctx, chatID, user)
}

// Resolve completes the conversation from the confirm step. On publish the
// report goes to the channel under the retry policy; the conversation record
// is cleared whatever the outcome.
func (c *Controller) Resolve(ctx context.Context, chatID int64, user User, publish bool, promptMessageID int) error {
	if err := c.require(ctx, user.ID, domain.StepConfirm); err != nil {
		return err
	}

	if publish {
		if err := c.publish(ctx, chatID, user); err != nil {
			return err
		}
	} else {
		if _, err := c.out.Send(ctx, chatID, msgCancelled, nil); err != nil {
			return fmt.Errorf("send cancel notice: %w", err)
		}
		c.logger.WithFields(logging.Fields{
			"event":   "report_cancelled",
			"user_id": user.ID,
		}).Info("report cancelled")
	}

	if promptMessageID != 0 {
		_ = c.out.Delete(ctx, chatID, promptMessageID)
	}

	return c.states.Clear(ctx, user.ID)
}

func (c *Controller) publish(ctx context.Context, chatID int64, user User) error {
	data, err := c.states.Data(ctx, user.ID)
	if err != nil {
		return err
	}

	report, err := domain.ReportFromData(data)
	if err == nil {
		text := reportBody(report, domain.UserLink(user.ID, user.Username, user.FirstName))
		err = c.publishPolicy.Do(ctx, func() error {
			return c.pub.Publish(ctx, text)
		})
	}

	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "report_publish_failed",
			"user_id": user.ID,
		}).WithError(err).Error("report publish failed")

		if _, sendErr := c.out.Send(ctx, chatID, msgPublishFailed, nil); sendErr != nil {
			return fmt.Errorf("send publish failure notice: %w", sendErr)
		}
		return nil
	}

	c.logger.WithFields(logging.Fields{
		"event":   "report_published",
		"user_id": user.ID,
	}).Info("report published")

	if _, err := c.out.Send(ctx, chatID, msgPublished, ReportMenuKeyboard()); err != nil {
		return fmt.Errorf("send publish notice: %w", err)
	}
	return nil
}

func (c *Controller) showConfirm(ctx context.Context, chatID int64, user User) error {
	data, err := c.states.Data(ctx, user.ID)
	if err != nil {
		return err
	}

	report, err := domain.ReportFromData(data)
	if err != nil {
		if _, sendErr := c.out.Send(ctx, chatID, msgGenericError, nil); sendErr != nil {
			return fmt.Errorf("send error notice: %w", sendErr)
		}
		return c.states.Clear(ctx, user.ID)
	}

	text := confirmText(report, domain.UserLink(user.ID, user.Username, user.FirstName))
	msgID, err := c.out.SendHTML(ctx, chatID, text, confirmKeyboard())
	if err != nil {
		return fmt.Errorf("send confirm prompt: %w", err)
	}
	return c.remember(ctx, user.ID, msgID)
}

func (c *Controller) askStation(ctx context.Context, chatID, userID int64) error {
	stations, err := c.lineStations(ctx, userID)
	if err != nil {
		return err
	}
	if stations == nil {
		_, err := c.out.Send(ctx, chatID, msgGenericError, nil)
		return err
	}

	msgID, err := c.out.Send(ctx, chatID, promptStation, stationKeyboard(callback.KindSelectStation, stations))
	if err != nil {
		return fmt.Errorf("send station prompt: %w", err)
	}
	return c.remember(ctx, userID, msgID)
}

func (c *Controller) askDirection(ctx context.Context, chatID, userID int64) error {
	stations, err := c.lineStations(ctx, userID)
	if err != nil {
		return err
	}
	if stations == nil {
		_, err := c.out.Send(ctx, chatID, msgGenericError, nil)
		return err
	}

	msgID, err := c.out.Send(ctx, chatID, promptDirection, stationKeyboard(callback.KindSelectDirection, stations))
	if err != nil {
		return fmt.Errorf("send direction prompt: %w", err)
	}
	return c.remember(ctx, userID, msgID)
}

func (c *Controller) askComment(ctx context.Context, chatID, userID int64) error {
	msgID, err := c.out.Send(ctx, chatID, promptComment, commentKeyboard())
	if err != nil {
		return fmt.Errorf("send comment prompt: %w", err)
	}
	return c.remember(ctx, userID, msgID)
}

// lineStations returns the station list for the line already stored in the
// conversation, or nil when the line is missing or unknown.
func (c *Controller) lineStations(ctx context.Context, userID int64) ([]string, error) {
	data, err := c.states.Data(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Stations[data[domain.FieldLine]], nil
}

// vehicleList fetches the curated vehicles, falling back to the built-in
// defaults when the store is empty or unavailable.
func (c *Controller) vehicleList(ctx context.Context) []string {
	vehicles, err := c.vehicles.List(ctx)
	if err != nil {
		c.logger.WithField("event", "vehicle_list_fallback").WithError(err).Warn("using default vehicle list")
		return store.DefaultVehicles
	}
	if len(vehicles) == 0 {
		return store.DefaultVehicles
	}
	return vehicles
}

// reject sends a validation message and keeps the user on the current step.
func (c *Controller) reject(ctx context.Context, chatID, userID int64, verr *ValidationError) error {
	msgID, err := c.out.Send(ctx, chatID, verr.Message, nil)
	if err != nil {
		return fmt.Errorf("send validation notice: %w", err)
	}
	return c.remember(ctx, userID, msgID)
}

func (c *Controller) require(ctx context.Context, userID int64, step domain.Step) error {
	current, err := c.states.Step(ctx, userID)
	if err != nil {
		return err
	}
	if current != step {
		return ErrWrongStep
	}
	return nil
}

func (c *Controller) remember(ctx context.Context, userID int64, messageID int) error {
	return c.states.SetField(ctx, userID, domain.LastMessageKey, strconv.Itoa(messageID))
}

// deleteLast removes the previous prompt if one is tracked. Deletion failures
// are ignored, the message may already be gone.
func (c *Controller) deleteLast(ctx context.Context, userID, chatID int64) {
	data, err := c.states.Data(ctx, userID)
	if err != nil {
		return
	}
	raw := data[domain.LastMessageKey]
	if raw == "" {
		return
	}
	msgID, err := strconv.Atoi(raw)
	if err != nil {
		return
	}
	_ = c.out.Delete(ctx, chatID, msgID)
}
