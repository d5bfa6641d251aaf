package telegram

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/assisthub/assist-gateway/internal/channel"
)

// Adapter bridges Telegram long polling to the orchestrator
type Adapter struct {
	bot      *tgbotapi.BotAPI
	token    string
	isAdmin  func(userID string) bool
	incoming chan *channel.Message
}

func New(token string, isAdmin func(string) bool) *Adapter {
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	return &Adapter{
		token:    token,
		isAdmin:  isAdmin,
		incoming: make(chan *channel.Message, 100),
	}
}

func (t *Adapter) Name() string {
	return "telegram"
}

func (t *Adapter) IsEnabled() bool {
	return t.token != ""
}

func (t *Adapter) Start(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return err
	}
	t.bot = bot
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for update := range updates {
			if update.Message == nil {
				continue
			}
			userID := strconv.FormatInt(update.Message.Chat.ID, 10)
			role := channel.RoleUser
			if t.isAdmin(userID) {
				role = channel.RoleAdmin
			}
			msg := &channel.Message{
				ID:        strconv.Itoa(update.Message.MessageID),
				Channel:   "telegram",
				UserID:    userID,
				Username:  update.Message.From.UserName,
				Role:      role,
				Content:   update.Message.Text,
				Metadata:  map[string]string{"from_id": strconv.FormatInt(update.Message.From.ID, 10)},
				Timestamp: int64(update.Message.Date),
			}
			t.incoming <- msg
		}
	}()
	return nil
}

// Stop halts long polling. incoming stays open; closing it here could
// panic a producer goroutine mid-send, consumers drain via their context.
func (t *Adapter) Stop() error {
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	return nil
}

func (t *Adapter) SendMessage(userID string, resp *channel.Response) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return err
	}
	reply := tgbotapi.NewMessage(chatID, resp.Content)
	_, err = t.bot.Send(reply)
	return err
}

func (t *Adapter) Incoming() <-chan *channel.Message {
	return t.incoming
}
