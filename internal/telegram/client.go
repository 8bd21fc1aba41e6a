// Package telegram hosts the Telegram client, routing, and handlers.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"metro_report_bot/internal/logging"
	"metro_report_bot/internal/retry"
)

// botAPI is the slice of *bot.Bot the package relies on, narrowed so tests
// can fake the Telegram side.
type botAPI interface {
	Start(ctx context.Context)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
		"callback_query",
	}

	createBot = func(token string, options ...bot.Option) (botAPI, error) {
		return bot.New(token, options...)
	}
)

// Client wraps the Telegram bot instance and the update router.
type Client struct {
	bot      botAPI
	watchdog *pollWatchdog
	logger   *logrus.Entry
}

// NewClient initializes the Telegram bot with long polling and routes every
// update through the given router. Polling failures are watched against the
// startup policy: the library retries getUpdates on its own, so without a
// ceiling an unrecoverable failure would loop forever.
func NewClient(token string, router *Router, logger *logrus.Entry) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is required")
	}
	if router == nil {
		return nil, errors.New("router is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	watchdog := newPollWatchdog(retry.StartupPolicy, logger)

	tgBot, err := createBot(token,
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			watchdog.reset()
			router.Handle(ctx, b, update)
		}),
		bot.WithErrorsHandler(watchdog.observe),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}

	router.bind(tgBot)

	return &Client{
		bot:      tgBot,
		watchdog: watchdog,
		logger:   logger,
	}, nil
}

// API exposes the underlying bot surface for building the outbound messenger.
func (c *Client) API() botAPI {
	return c.bot
}

// Start begins receiving updates via long polling. It returns when the
// context is canceled or when the watchdog gives up on a failing transport.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.watchdog.arm(cancel)

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	c.bot.Start(pollCtx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

// pollSleep is overridable for tests.
var pollSleep = time.Sleep

// pollWatchdog counts consecutive polling failures against a retry policy.
// Each failure backs the poller off before its next attempt; when the policy
// is exhausted the watchdog stops polling entirely, which ends Start and lets
// the process terminate. Any delivered update resets the streak.
type pollWatchdog struct {
	policy retry.Policy
	logger *logrus.Entry

	mu       sync.Mutex
	failures int
	delay    time.Duration
	stop     context.CancelFunc
}

func newPollWatchdog(policy retry.Policy, logger *logrus.Entry) *pollWatchdog {
	if logger == nil {
		logger = logging.Logger()
	}
	return &pollWatchdog{policy: policy, logger: logger, delay: policy.BaseDelay}
}

func (w *pollWatchdog) arm(stop context.CancelFunc) {
	w.mu.Lock()
	w.stop = stop
	w.mu.Unlock()
}

func (w *pollWatchdog) reset() {
	w.mu.Lock()
	w.failures = 0
	w.delay = w.policy.BaseDelay
	w.mu.Unlock()
}

func (w *pollWatchdog) observe(err error) {
	if err == nil {
		return
	}

	w.mu.Lock()
	w.failures++
	failures := w.failures
	delay := w.delay
	if w.policy.Multiplier > 1 {
		w.delay = time.Duration(float64(w.delay) * w.policy.Multiplier)
	}
	if w.policy.MaxDelay > 0 && w.delay > w.policy.MaxDelay {
		w.delay = w.policy.MaxDelay
	}
	stop := w.stop
	w.mu.Unlock()

	if failures >= w.policy.MaxAttempts {
		w.logger.WithFields(logging.Fields{
			"event":    "telegram_poll_exhausted",
			"failures": failures,
		}).WithError(err).Error("telegram polling failed repeatedly, giving up")
		if stop != nil {
			stop()
		}
		return
	}

	w.logger.WithFields(logging.Fields{
		"event":    "telegram_poll_retry",
		"failures": failures,
		"delay":    delay.String(),
	}).WithError(err).Warn("telegram polling error, backing off")
	pollSleep(delay)
}

func messageChatID(msg models.MaybeInaccessibleMessage) int64 {
	switch msg.Type {
	case models.MaybeInaccessibleMessageTypeMessage:
		if msg.Message == nil {
			return 0
		}
		return msg.Message.Chat.ID
	case models.MaybeInaccessibleMessageTypeInaccessibleMessage:
		if msg.InaccessibleMessage == nil {
			return 0
		}
		return msg.InaccessibleMessage.Chat.ID
	default:
		return 0
	}
}

func messageID(msg models.MaybeInaccessibleMessage) int {
	if msg.Type == models.MaybeInaccessibleMessageTypeMessage && msg.Message != nil {
		return msg.Message.ID
	}
	return 0
}
