package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Messenger is the outbound side of the bot: plain sends, HTML sends,
// edits, and deletions. It is bound to the bot API once the client is built;
// the wizard, admin surface, and broadcast dispatcher all speak through it.
type Messenger struct {
	api botAPI
}

// NewMessenger returns an unbound messenger. NewClient binds it.
func NewMessenger() *Messenger {
	return &Messenger{}
}

func (m *Messenger) bind(api botAPI) {
	m.api = api
}

// Send delivers a plain-text message and returns its message id.
func (m *Messenger) Send(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) (int, error) {
	return m.send(ctx, chatID, text, markup, "")
}

// SendHTML delivers a message in HTML parse mode and returns its message id.
func (m *Messenger) SendHTML(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) (int, error) {
	return m.send(ctx, chatID, text, markup, models.ParseModeHTML)
}

// SendTo delivers a plain message to a user chat; it is the broadcast
// delivery primitive.
func (m *Messenger) SendTo(ctx context.Context, userID int64, text string) error {
	_, err := m.send(ctx, userID, text, nil, "")
	return err
}

// Delete removes a message. Callers decide whether a failure matters; stale
// prompts are usually already gone.
func (m *Messenger) Delete(ctx context.Context, chatID int64, messageID int) error {
	if m == nil || m.api == nil {
		return errors.New("messenger is not bound")
	}

	if _, err := m.api.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: messageID,
	}); err != nil {
		return fmt.Errorf("delete message %d: %w", messageID, err)
	}
	return nil
}

// Edit replaces the text of an existing message.
func (m *Messenger) Edit(ctx context.Context, chatID int64, messageID int, text string) error {
	if m == nil || m.api == nil {
		return errors.New("messenger is not bound")
	}

	if _, err := m.api.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
	}); err != nil {
		return fmt.Errorf("edit message %d: %w", messageID, err)
	}
	return nil
}

// AnswerCallback acknowledges a button press, optionally with a toast text.
func (m *Messenger) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if m == nil || m.api == nil {
		return errors.New("messenger is not bound")
	}

	if _, err := m.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	}); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

func (m *Messenger) send(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup, parseMode models.ParseMode) (int, error) {
	if m == nil || m.api == nil {
		return 0, errors.New("messenger is not bound")
	}

	msg, err := m.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup,
		ParseMode:   parseMode,
	})
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	if msg == nil {
		return 0, nil
	}
	return msg.ID, nil
}

// ChannelPublisher posts confirmed reports to the configured channel.
type ChannelPublisher struct {
	messenger *Messenger
	channelID int64
}

// NewChannelPublisher builds a publisher for the given channel chat id.
func NewChannelPublisher(messenger *Messenger, channelID int64) (*ChannelPublisher, error) {
	if messenger == nil {
		return nil, errors.New("messenger is required")
	}
	if channelID == 0 {
		return nil, errors.New("channel id is required")
	}
	return &ChannelPublisher{messenger: messenger, channelID: channelID}, nil
}

// Publish sends the rendered report to the channel in HTML parse mode.
func (p *ChannelPublisher) Publish(ctx context.Context, text string) error {
	if _, err := p.messenger.SendHTML(ctx, p.channelID, text, nil); err != nil {
		return fmt.Errorf("publish to channel %d: %w", p.channelID, err)
	}
	return nil
}
