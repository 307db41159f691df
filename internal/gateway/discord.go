package gateway

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const discordMessageLimit = 2000

type DiscordGateway struct {
	Session *discordgo.Session
	Handler *Handler
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewDiscordGateway(token string, handler *Handler) (*DiscordGateway, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	ctx, cancel := context.WithCancel(context.Background())
	d := &DiscordGateway{Session: s, Handler: handler, ctx: ctx, cancel: cancel}
	s.AddHandler(d.onMessage)
	return d, nil
}

// Start opens the websocket; messages are handled on discordgo's goroutines.
func (d *DiscordGateway) Start() error {
	if err := d.Session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	log.Printf("Discord connected as %s", d.Session.State.User.Username)
	return nil
}

func (d *DiscordGateway) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	text := strings.TrimSpace(m.Content)
	if mention := "<@" + s.State.User.ID + ">"; strings.HasPrefix(text, mention) {
		text = strings.TrimSpace(strings.TrimPrefix(text, mention))
	} else if m.GuildID != "" {
		// in servers only react when addressed
		return
	}

	log.Printf("[%s] %s", m.Author.Username, text)
	reply := d.Handler.Handle(d.ctx, "discord", m.ChannelID, text)
	if err := d.Send(m.ChannelID, reply); err != nil {
		log.Printf("Error replying on discord: %v", err)
	}
}

func (d *DiscordGateway) Send(chatID string, text string) error {
	for _, part := range chunk(text, discordMessageLimit) {
		if _, err := d.Session.ChannelMessageSend(chatID, part); err != nil {
			return err
		}
	}
	return nil
}

func (d *DiscordGateway) Stop() error {
	d.cancel()
	return d.Session.Close()
}
