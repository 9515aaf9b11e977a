// Package senses connects external input channels to the engine. The Discord
// sense watches a dream-capture channel and forwards message text for
// ingestion.
package senses

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/avint/metaloom/internal/logging"
)

// DreamHandler receives captured dream text with its capture time
type DreamHandler func(text string, capturedAt time.Time) error

// DiscordSense listens to a Discord channel and captures dream reports
type DiscordSense struct {
	session   *discordgo.Session
	channelID string
	ownerID   string
	botID     string
	onDream   DreamHandler
}

// DiscordConfig holds Discord connection settings
type DiscordConfig struct {
	Token     string
	ChannelID string
	OwnerID   string
}

// NewDiscordSense creates a new Discord dream sense
func NewDiscordSense(cfg DiscordConfig, onDream DreamHandler) (*DiscordSense, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	sense := &DiscordSense{
		session:   session,
		channelID: cfg.ChannelID,
		ownerID:   cfg.OwnerID,
		onDream:   onDream,
	}

	// Register message handler
	session.AddHandler(sense.handleMessage)

	// We only need message content
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	return sense, nil
}

// Start connects to Discord and begins listening
func (d *DiscordSense) Start() error {
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	// Get bot's user ID for self-filtering
	d.botID = d.session.State.User.ID
	logging.Info("discord-sense", "Connected as %s", d.session.State.User.Username)

	return nil
}

// Stop disconnects from Discord
func (d *DiscordSense) Stop() error {
	return d.session.Close()
}

// Session returns the underlying Discord session
func (d *DiscordSense) Session() *discordgo.Session {
	return d.session
}

// handleMessage processes incoming Discord messages
func (d *DiscordSense) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore messages from self
	if m.Author.ID == d.botID {
		return
	}

	// Only process messages from the configured dream channel (if set)
	if d.channelID != "" && m.ChannelID != d.channelID {
		return
	}

	// Owner-only when an owner is configured
	if d.ownerID != "" && m.Author.ID != d.ownerID {
		return
	}

	text := strings.TrimSpace(m.Content)
	if text == "" {
		return
	}

	// Prefer the message's own timestamp; fall back to receipt time
	capturedAt := m.Timestamp
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	logging.Info("discord-sense", "Dream captured: %s", truncate(text, 50))

	if d.onDream == nil {
		return
	}
	if err := d.onDream(text, capturedAt); err != nil {
		logging.Warn("discord-sense", "Dream rejected: %v", err)
		d.acknowledge(m.ChannelID, fmt.Sprintf("Could not record that dream: %v", err))
		return
	}
	d.acknowledge(m.ChannelID, "Dream recorded.")
}

// acknowledge sends a short reply; failures are logged, not fatal
func (d *DiscordSense) acknowledge(channelID, msg string) {
	if _, err := d.session.ChannelMessageSend(channelID, msg); err != nil {
		logging.Warn("discord-sense", "Failed to acknowledge: %v", err)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
