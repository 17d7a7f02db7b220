package perception

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gurkebaui/sun/internal/logx"
)

// #region telegram-config
// TelegramConfig holds the bot credentials. An empty token disables the channel.
type TelegramConfig struct {
	Token       string `envconfig:"TELEGRAM_TOKEN"`
	PollTimeout int    `envconfig:"TELEGRAM_POLL_TIMEOUT" default:"30"` // seconds
}

// #endregion telegram-config

// bot is the subset of *tgbotapi.BotAPI the source needs.
type bot interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// #region telegram-source
// TelegramSource turns chat messages into perception: text becomes speech
// and photo captions become vision. Answers are sent back to the chat the
// last message came from.
type TelegramSource struct {
	bot         bot
	queue       *Queue
	pollTimeout int

	mu       sync.Mutex
	lastChat int64
	offset   int
}

// NewTelegramSource authorizes the bot token.
func NewTelegramSource(cfg TelegramConfig, ambient Report) (*TelegramSource, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	logx.Info().Str("username", api.Self.UserName).Msg("telegram bot authorized")
	return newTelegramSource(api, cfg.PollTimeout, ambient), nil
}

func newTelegramSource(b bot, pollTimeout int, ambient Report) *TelegramSource {
	return &TelegramSource{bot: b, queue: NewQueue(ambient), pollTimeout: pollTimeout}
}

// #endregion telegram-source

// #region telegram-poll
// Run long-polls for updates until ctx is cancelled.
func (t *TelegramSource) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := t.poll(); err != nil {
			logx.Debug().Err(err).Msg("telegram poll failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(3 * time.Second):
			}
		}
	}
}

func (t *TelegramSource) poll() error {
	t.mu.Lock()
	req := tgbotapi.NewUpdate(t.offset)
	t.mu.Unlock()
	req.Timeout = t.pollTimeout

	updates, err := t.bot.GetUpdates(req)
	if err != nil {
		return err
	}
	for _, u := range updates {
		t.mu.Lock()
		if u.UpdateID >= t.offset {
			t.offset = u.UpdateID + 1
		}
		t.mu.Unlock()

		msg := u.Message
		if msg == nil {
			continue
		}
		var r Report
		switch {
		case len(msg.Photo) > 0 && msg.Caption != "":
			r.Vision = "I am shown a picture: " + msg.Caption
		case msg.Text != "":
			r.Speech = msg.Text
		default:
			continue
		}
		t.mu.Lock()
		t.lastChat = msg.Chat.ID
		t.mu.Unlock()
		t.queue.Push(r)
	}
	return nil
}

// #endregion telegram-poll

func (t *TelegramSource) Perceive(ctx context.Context) (Report, error) {
	return t.queue.Perceive(ctx)
}

// Reply sends text to the most recent chat. It is a no-op before any
// message has been received.
func (t *TelegramSource) Reply(text string) error {
	t.mu.Lock()
	chat := t.lastChat
	t.mu.Unlock()
	if chat == 0 || text == "" {
		return nil
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(chat, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
