// Package discord runs the citizen conversation over Discord direct
// messages as a secondary channel. Discord has no native location share, so
// a coordinate pair on the final message line stands in for one.
package discord

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/roadwatch/roadwatch/internal/chat"
)

const handlePrefix = "discord:"

// Adapter connects the engine to the Discord gateway. It satisfies the
// chat.Adapter contract: DM events become inbound messages, replies are
// posted back to the originating DM channel.
type Adapter struct {
	token   string
	session *discordgo.Session

	mu      sync.Mutex
	inbound chan chat.InboundMessage
	closed  bool
}

// NewAdapter creates an Adapter.
func NewAdapter(token string) (*Adapter, error) {
	if token == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	return &Adapter{
		token:   token,
		inbound: make(chan chat.InboundMessage, 64),
	}, nil
}

// Connect opens the gateway session and registers the DM handler.
func (a *Adapter) Connect(ctx context.Context) error {
	session, err := discordgo.New("Bot " + a.token)
	if err != nil {
		return fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentMessageContent
	session.AddHandler(a.onMessage)

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	a.session = session
	log.Printf("discord: gateway connected as %s", session.State.User.Username)
	return nil
}

// Listen returns the inbound message channel. The channel closes when the
// context is cancelled or the adapter is closed.
func (a *Adapter) Listen(ctx context.Context) (<-chan chat.InboundMessage, error) {
	if a.session == nil {
		return nil, fmt.Errorf("discord: listen before connect")
	}
	go func() {
		<-ctx.Done()
		a.closeInbound()
	}()
	return a.inbound, nil
}

// Send posts a reply to the DM channel encoded in the user handle.
func (a *Adapter) Send(ctx context.Context, msg chat.OutboundMessage) error {
	if a.session == nil {
		return fmt.Errorf("discord: send before connect")
	}
	if msg.Text == "" {
		return nil
	}
	channelID := strings.TrimPrefix(msg.UserHandle, handlePrefix)
	if _, err := a.session.ChannelMessageSend(channelID, msg.Text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: send to %s: %w", channelID, err)
	}
	return nil
}

// Close shuts down the gateway session and the inbound channel.
func (a *Adapter) Close() error {
	a.closeInbound()
	if a.session == nil {
		return nil
	}
	if err := a.session.Close(); err != nil {
		return fmt.Errorf("discord: close gateway: %w", err)
	}
	return nil
}

func (a *Adapter) closeInbound() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.closed {
		a.closed = true
		close(a.inbound)
	}
}

// onMessage filters gateway events down to citizen DMs and enqueues them.
func (a *Adapter) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	// Guild messages are ignored: the conversation is strictly one-on-one.
	if m.GuildID != "" {
		return
	}

	msg := toInbound(m)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	select {
	case a.inbound <- msg:
	default:
		log.Printf("discord: inbound queue full, dropping message %s", m.ID)
	}
}

// toInbound translates a Discord message into the engine's model.
func toInbound(m *discordgo.MessageCreate) chat.InboundMessage {
	text, lat, lng := extractLocation(m.Content)

	msg := chat.InboundMessage{
		Platform:   "discord",
		DeliveryID: m.ID,
		UserHandle: handlePrefix + m.ChannelID,
		UserName:   m.Author.Username,
		Text:       text,
		Latitude:   lat,
		Longitude:  lng,
		Timestamp:  time.Now(),
	}
	if len(m.Attachments) > 0 {
		msg.MediaCount = len(m.Attachments)
		msg.MediaURL = m.Attachments[0].URL
		msg.MediaContentType = m.Attachments[0].ContentType
	}
	return msg
}

// extractLocation pulls a trailing "lat, lng" line out of the message text.
// The line must be exactly two decimal numbers separated by a comma; any
// other final line leaves the text untouched and the location absent.
func extractLocation(content string) (text string, lat, lng *float64) {
	content = strings.TrimSpace(content)
	lines := strings.Split(content, "\n")
	last := strings.TrimSpace(lines[len(lines)-1])

	parts := strings.SplitN(last, ",", 2)
	if len(parts) != 2 {
		return content, nil, nil
	}
	latVal, latErr := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lngVal, lngErr := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if latErr != nil || lngErr != nil {
		return content, nil, nil
	}

	text = strings.TrimSpace(strings.Join(lines[:len(lines)-1], "\n"))
	return text, &latVal, &lngVal
}
