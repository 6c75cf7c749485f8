// Package bot owns the Discord session: it routes prefix commands and
// button presses to handlers, gates admin commands on configured role
// ids and drops traffic over the per-user rate budgets.
package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"discord-row-bot/internal/config"
	"discord-row-bot/internal/handler"
	"discord-row-bot/internal/model"
)

// Dependencies holds everything the bot routes to.
type Dependencies struct {
	Config         *config.Config
	IGNHandler     *handler.IGNHandler
	RosterHandler  *handler.RosterHandler
	ResultsHandler *handler.ResultsHandler
	AdminHandler   *handler.AdminHandler
	NotifyHandler  *handler.NotifyHandler
}

// command is one routable prefix command.
type command struct {
	run   func(*handler.Ctx) error
	admin bool
}

// Bot wraps the discordgo session with routing and middleware.
type Bot struct {
	session *discordgo.Session
	cfg     *config.Config
	deps    *Dependencies

	commands      map[string]command
	commandLimits *userLimits
	buttonLimits  *userLimits
}

// New creates the Bot and registers its handlers on a fresh session.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	session, err := discordgo.New("Bot " + deps.Config.Bot.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent

	b := &Bot{
		session:       session,
		cfg:           deps.Config,
		deps:          deps,
		commandLimits: newUserLimits(deps.Config.Limits.CommandsPerMinute),
		buttonLimits:  newUserLimits(deps.Config.Limits.ButtonsPerMinute),
	}
	b.registerCommands()

	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("Bot is ready")
	})
	session.AddHandler(b.handleMessage)
	session.AddHandler(b.handleInteraction)

	return b, nil
}

func (b *Bot) registerCommands() {
	d := b.deps
	b.commands = map[string]command{
		// Player commands.
		"setign":   {run: d.IGNHandler.HandleSetIGN},
		"myign":    {run: d.IGNHandler.HandleMyIGN},
		"clearign": {run: d.IGNHandler.HandleClearIGN},
		"teams":    {run: d.RosterHandler.HandleTeams},
		"events":   {run: d.RosterHandler.HandleEvents},
		"mystats":  {run: d.ResultsHandler.HandleMyStats},
		"results":  {run: d.ResultsHandler.HandleResults},
		"notify":   {run: d.NotifyHandler.HandleNotify},

		// Admin commands.
		"startevent": {run: d.AdminHandler.HandleStartEvent, admin: true},
		"lock":       {run: d.AdminHandler.HandleLock, admin: true},
		"win":        {run: func(c *handler.Ctx) error { return d.ResultsHandler.HandleAddResult(c, model.OutcomeWin) }, admin: true},
		"loss":       {run: func(c *handler.Ctx) error { return d.ResultsHandler.HandleAddResult(c, model.OutcomeLoss) }, admin: true},
		"draw":       {run: func(c *handler.Ctx) error { return d.ResultsHandler.HandleAddResult(c, model.OutcomeDraw) }, admin: true},
		"retract":    {run: d.ResultsHandler.HandleRetract, admin: true},
		"block":      {run: d.AdminHandler.HandleBlock, admin: true},
		"unblock":    {run: d.AdminHandler.HandleUnblock, admin: true},
		"absent":     {run: d.RosterHandler.HandleAbsent, admin: true},
		"settime":    {run: d.AdminHandler.HandleSetTime, admin: true},
		"setpower":   {run: d.AdminHandler.HandleSetPower, admin: true},
		"sheets":     {run: d.AdminHandler.HandleSheets, admin: true},
		"export":     {run: d.AdminHandler.HandleExport, admin: true},
	}
}

// handleMessage routes prefix commands.
func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	prefix := b.cfg.Bot.Prefix
	if !strings.HasPrefix(m.Content, prefix) {
		return
	}

	fields := strings.Fields(strings.TrimPrefix(m.Content, prefix))
	if len(fields) == 0 {
		return
	}
	name := strings.ToLower(fields[0])
	cmd, ok := b.commands[name]
	if !ok {
		return
	}

	ctx := &handler.Ctx{Session: s, Message: m, Args: fields[1:]}

	log.Debug().
		Str("user_id", m.Author.ID).
		Str("command", name).
		Msg("Received command")

	if cmd.admin && !b.cfg.IsAdmin(ctx.Roles()) {
		log.Warn().
			Str("user_id", m.Author.ID).
			Str("command", name).
			Msg("Non-admin attempted admin command")
		_ = ctx.Reply("❌ That command requires an admin role.")
		return
	}

	if !b.commandLimits.allow(m.Author.ID) {
		_ = ctx.Reply("⏳ Slow down a little and try again.")
		return
	}

	if err := cmd.run(ctx); err != nil {
		log.Error().Err(err).Str("command", name).Msg("Command handler failed")
	}
}

// handleInteraction routes the signup button presses.
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent || i.Member == nil {
		return
	}
	customID := i.MessageComponentData().CustomID
	userID := i.Member.User.ID

	if !b.buttonLimits.allow(userID) {
		b.respondEphemeral(s, i, "⏳ Slow down a little and try again.")
		return
	}

	switch {
	case strings.HasPrefix(customID, handler.JoinButtonPrefix):
		team, ok := model.ParseTeam(strings.TrimPrefix(customID, handler.JoinButtonPrefix))
		if !ok {
			return
		}
		hasMarker := b.cfg.HasMainTeamRole(i.Member.Roles)
		b.deps.RosterHandler.HandleJoinButton(s, i, team, hasMarker)

	case strings.HasPrefix(customID, handler.LeaveButtonPrefix):
		team, ok := model.ParseTeam(strings.TrimPrefix(customID, handler.LeaveButtonPrefix))
		if !ok {
			return
		}
		b.deps.RosterHandler.HandleLeaveButton(s, i, team)
	}
}

func (b *Bot) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to respond to interaction")
	}
}

// Start opens the gateway connection.
func (b *Bot) Start() error {
	log.Info().Msg("Starting bot...")
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	log.Info().Msg("Stopping bot...")
	return b.session.Close()
}

// Announce posts a message with optional components to a channel. Used
// by the scheduler for the weekly signup post and summaries.
func (b *Bot) Announce(channelID, content string, components []discordgo.MessageComponent) error {
	_, err := b.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:    content,
		Components: components,
	})
	if err != nil {
		log.Error().Err(err).Str("channel_id", channelID).Msg("Failed to post announcement")
	}
	return err
}

// SendDM delivers a direct message, creating the DM channel on demand.
func (b *Bot) SendDM(userID, content string) error {
	channel, err := b.session.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	_, err = b.session.ChannelMessageSend(channel.ID, content)
	return err
}
