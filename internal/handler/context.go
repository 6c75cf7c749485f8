// Package handler translates Discord commands and button presses into
// service calls and renders the outcomes. Handlers hold no business
// logic: eligibility, capacity, state and validation all live in the
// services, and handlers only map sentinel errors to user-facing text.
package handler

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"discord-row-bot/internal/pkg/ratelimit"
	"discord-row-bot/internal/service"
	"discord-row-bot/internal/sheets"
)

// Ctx carries one incoming command: the session, the triggering message
// and the arguments after the command word.
type Ctx struct {
	Session *discordgo.Session
	Message *discordgo.MessageCreate
	Args    []string
}

// UserID returns the author's Discord id.
func (c *Ctx) UserID() string {
	return c.Message.Author.ID
}

// DisplayName prefers the guild nickname over the account username.
func (c *Ctx) DisplayName() string {
	if c.Message.Member != nil && c.Message.Member.Nick != "" {
		return c.Message.Member.Nick
	}
	if c.Message.Author.GlobalName != "" {
		return c.Message.Author.GlobalName
	}
	return c.Message.Author.Username
}

// Roles returns the author's guild role ids, empty outside a guild.
func (c *Ctx) Roles() []string {
	if c.Message.Member == nil {
		return nil
	}
	return c.Message.Member.Roles
}

// Reply sends plain text to the channel the command came from.
func (c *Ctx) Reply(text string) error {
	_, err := c.Session.ChannelMessageSend(c.Message.ChannelID, text)
	if err != nil {
		log.Error().Err(err).Str("channel_id", c.Message.ChannelID).Msg("Failed to send reply")
	}
	return err
}

// Replyf formats and sends plain text.
func (c *Ctx) Replyf(format string, args ...interface{}) error {
	return c.Reply(fmt.Sprintf(format, args...))
}

// ReplyEmbed sends an embed to the originating channel.
func (c *Ctx) ReplyEmbed(embed *discordgo.MessageEmbed) error {
	_, err := c.Session.ChannelMessageSendEmbed(c.Message.ChannelID, embed)
	if err != nil {
		log.Error().Err(err).Str("channel_id", c.Message.ChannelID).Msg("Failed to send embed")
	}
	return err
}

// RenderError maps service sentinels to user-facing text. Unknown errors
// get a generic message; the cause is logged, not shown.
func RenderError(err error) string {
	switch {
	case errors.Is(err, service.ErrUserBlocked):
		return "❌ You are currently blocked from signups."
	case errors.Is(err, service.ErrNotEligible):
		return "❌ The main team requires the competitive marker role."
	case errors.Is(err, service.ErrTeamFull):
		return "❌ That team is already full."
	case errors.Is(err, service.ErrCycleLocked):
		return "🔒 Signups are locked for this event."
	case errors.Is(err, service.ErrIncompleteResults):
		return "❌ Some teams with signups have no recorded result yet."
	case errors.Is(err, service.ErrWrongState):
		return "❌ That action is not valid in the event's current state."
	case errors.Is(err, service.ErrInvalidIGN):
		return fmt.Sprintf("❌ %v", err)
	case errors.Is(err, service.ErrInvalidTime):
		return fmt.Sprintf("❌ %v", err)
	case errors.Is(err, service.ErrResultNotFound):
		return "❌ No result with that id."
	case errors.Is(err, service.ErrAlreadyRetracted):
		return "❌ That result was already retracted."
	case errors.Is(err, sheets.ErrSheetsDisabled):
		return "ℹ️ Sheets mirroring is not configured."
	case errors.Is(err, ratelimit.ErrRateLimited):
		return "⏳ Slow down a little and try again."
	default:
		log.Error().Err(err).Msg("Command failed")
		return "❌ Something went wrong, please try again later."
	}
}
