package notify

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// ErrNoRecipient is returned when a message has no chat to go to.
var ErrNoRecipient = errors.New("notify: no recipient")

// Message is one notification for a market owner.
type Message struct {
	ChatID  int64
	Text    string
	EventID string
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// TelegramError represents an error from Telegram API.
type TelegramError struct {
	Code       int
	Message    string
	RetryAfter int // seconds to wait before retrying (for 429 errors)
}

func (e *TelegramError) Error() string {
	return fmt.Sprintf("telegram error %d: %s", e.Code, e.Message)
}

// IsTelegramError checks if the error is a TelegramError.
func IsTelegramError(err error) (*TelegramError, bool) {
	var tgErr *TelegramError
	if errors.As(err, &tgErr) {
		return tgErr, true
	}
	return nil, false
}

type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender posts messages to owner chats through a bot.
type TelegramSender struct {
	bot botAPI
}

// NewTelegramSender authorizes the bot token against Telegram.
func NewTelegramSender(token string, debug bool) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	bot.Debug = debug
	return &TelegramSender{bot: bot}, nil
}

func (s *TelegramSender) Send(ctx context.Context, msg Message) error {
	if msg.ChatID == 0 {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.bot.Send(tgbotapi.NewMessage(msg.ChatID, msg.Text))
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &TelegramError{Code: apiErr.Code, Message: apiErr.Message, RetryAfter: apiErr.RetryAfter}
	}
	return err
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	log *zerolog.Logger
}

func NewLogSender(log *zerolog.Logger) *LogSender {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.log.Info().Int64("chat_id", msg.ChatID).Str("event_id", msg.EventID).Msg(msg.Text)
	return nil
}
