package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/assisthub/assist-gateway/internal/channel"
)

// Adapter bridges Discord DMs and mentions to the orchestrator
type Adapter struct {
	token    string
	isAdmin  func(userID string) bool
	session  *discordgo.Session
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

func (d *Adapter) Name() string {
	return "discord"
}

func (d *Adapter) IsEnabled() bool {
	return d.token != ""
}

func (d *Adapter) Start(ctx context.Context) error {
	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return err
	}
	d.session = session

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author.Bot {
			return
		}

		// Only respond in DMs or when mentioned
		if m.GuildID != "" && !d.isMentioned(s.State.User.ID, m.Mentions) {
			return
		}

		role := channel.RoleUser
		if d.isAdmin(m.Author.ID) {
			role = channel.RoleAdmin
		}
		msg := &channel.Message{
			ID:       m.ID,
			Channel:  "discord",
			UserID:   m.Author.ID,
			Username: m.Author.Username,
			Role:     role,
			Content:  m.Content,
			Metadata: map[string]string{
				"guild_id":   m.GuildID,
				"channel_id": m.ChannelID,
			},
			Timestamp: m.Timestamp.Unix(),
		}
		d.incoming <- msg
	})

	if err := session.Open(); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		session.Close()
	}()

	return nil
}

// Stop closes the Discord session. incoming stays open so in-flight
// handler sends cannot panic; consumers drain via their context.
func (d *Adapter) Stop() error {
	if d.session != nil {
		d.session.Close()
	}
	return nil
}

func (d *Adapter) SendMessage(userID string, resp *channel.Response) error {
	ch, err := d.session.UserChannelCreate(userID)
	if err != nil {
		return err
	}

	_, err = d.session.ChannelMessageSend(ch.ID, resp.Content)
	return err
}

func (d *Adapter) Incoming() <-chan *channel.Message {
	return d.incoming
}

func (d *Adapter) isMentioned(botID string, mentions []*discordgo.User) bool {
	for _, mention := range mentions {
		if mention.ID == botID {
			return true
		}
	}
	return false
}
