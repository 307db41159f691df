package gateway

import (
	"context"
	"fmt"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const telegramMessageLimit = 4096

type TelegramGateway struct {
	Bot     *tgbotapi.BotAPI
	Handler *Handler
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewTelegramGateway(token string, handler *Handler) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	ctx, cancel := context.WithCancel(context.Background())
	return &TelegramGateway{
		Bot:     bot,
		Handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

func (tg *TelegramGateway) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		log.Printf("[%s] %s", senderName(update.Message), update.Message.Text)

		chatID := strconv.FormatInt(update.Message.Chat.ID, 10)
		reply := tg.Handler.Handle(tg.ctx, "telegram", chatID, update.Message.Text)
		if err := tg.Send(chatID, reply); err != nil {
			log.Printf("Error replying on telegram: %v", err)
		}
	}
	return nil
}

// senderName labels a message for the log. Channel posts have no sender.
func senderName(msg *tgbotapi.Message) string {
	if msg.From != nil {
		return msg.From.UserName
	}
	if msg.SenderChat != nil {
		return msg.SenderChat.Title
	}
	return "unknown"
}

// Send delivers text as plain messages, split at the Telegram size limit.
func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	for _, part := range chunk(text, telegramMessageLimit) {
		if _, err := tg.Bot.Send(tgbotapi.NewMessage(id, part)); err != nil {
			return err
		}
	}
	return nil
}

func (tg *TelegramGateway) Stop() error {
	tg.cancel()
	tg.Bot.StopReceivingUpdates()
	return nil
}
