package handler

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"discord-row-bot/internal/model"
	"discord-row-bot/internal/service"
)

// Component custom-id prefixes for the signup buttons. The team key
// follows the colon, e.g. "row_join:main_team".
const (
	JoinButtonPrefix  = "row_join:"
	LeaveButtonPrefix = "row_leave:"
)

// RosterHandler serves the signup surface: roster display, the signup
// message with its buttons, and join/leave presses.
type RosterHandler struct {
	roster    *service.RosterService
	lifecycle *service.LifecycleService
	notify    *service.NotificationService
	igns      *service.IGNService
}

// NewRosterHandler creates a new RosterHandler.
func NewRosterHandler(
	roster *service.RosterService,
	lifecycle *service.LifecycleService,
	notify *service.NotificationService,
	igns *service.IGNService,
) *RosterHandler {
	return &RosterHandler{
		roster:    roster,
		lifecycle: lifecycle,
		notify:    notify,
		igns:      igns,
	}
}

// HandleTeams handles "teams": the current rosters as an embed.
func (h *RosterHandler) HandleTeams(c *Ctx) error {
	cycle := h.lifecycle.Current()

	embed := &discordgo.MessageEmbed{
		Title:       "Rally of War — Team Signups",
		Description: fmt.Sprintf("Event state: **%s**", cycle.State),
		Color:       0x2b6cb0,
	}
	for _, team := range model.Teams() {
		roster := cycle.Rosters[team]
		lines := make([]string, 0, len(roster))
		for i, userID := range roster {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, h.igns.ResolveDisplay(userID, fmt.Sprintf("<@%s>", userID))))
		}
		value := "*no signups yet*"
		if len(lines) > 0 {
			value = strings.Join(lines, "\n")
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: fmt.Sprintf("%s — %d/%d — %s",
				team.DisplayName(), len(roster), h.roster.Capacity(), cycle.Times[team]),
			Value: value,
		})
	}
	return c.ReplyEmbed(embed)
}

// HandleEvents handles "events": countdown to each team's next event.
func (h *RosterHandler) HandleEvents(c *Ctx) error {
	now := time.Now().UTC()
	var lines []string
	for _, team := range model.Teams() {
		next, err := h.notify.NextEvent(team, now)
		if err != nil {
			lines = append(lines, fmt.Sprintf("%s — no time configured", team.DisplayName()))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s — <t:%d:F> (in %s)",
			team.DisplayName(), next.Unix(), formatCountdown(next.Sub(now))))
	}
	return c.Reply(strings.Join(lines, "\n"))
}

// SignupComponents builds the join/leave button rows for the weekly
// signup message.
func SignupComponents() []discordgo.MessageComponent {
	var joins, leaves []discordgo.MessageComponent
	for _, team := range model.Teams() {
		joins = append(joins, discordgo.Button{
			Label:    "Join " + team.DisplayName(),
			Style:    discordgo.PrimaryButton,
			CustomID: JoinButtonPrefix + string(team),
		})
		leaves = append(leaves, discordgo.Button{
			Label:    "Leave " + team.DisplayName(),
			Style:    discordgo.SecondaryButton,
			CustomID: LeaveButtonPrefix + string(team),
		})
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: joins},
		discordgo.ActionsRow{Components: leaves},
	}
}

// HandleJoinButton processes a join button press.
func (h *RosterHandler) HandleJoinButton(s *discordgo.Session, i *discordgo.InteractionCreate, team model.Team, hasMarker bool) {
	member := i.Member
	if member == nil {
		return
	}
	req := service.JoinRequest{
		UserID:      member.User.ID,
		DisplayName: memberDisplayName(member),
		HasMarker:   hasMarker,
	}
	if err := h.roster.Join(team, req); err != nil {
		respondEphemeral(s, i, RenderError(err))
		return
	}
	respondEphemeral(s, i, fmt.Sprintf("✅ You are signed up for %s.", team.DisplayName()))
}

// HandleLeaveButton processes a leave button press.
func (h *RosterHandler) HandleLeaveButton(s *discordgo.Session, i *discordgo.InteractionCreate, team model.Team) {
	member := i.Member
	if member == nil {
		return
	}
	if err := h.roster.Leave(team, member.User.ID); err != nil {
		respondEphemeral(s, i, RenderError(err))
		return
	}
	respondEphemeral(s, i, fmt.Sprintf("👋 You left %s.", team.DisplayName()))
}

// HandleAbsent handles the admin "absent <user>" command.
func (h *RosterHandler) HandleAbsent(c *Ctx) error {
	target, ok := targetUser(c)
	if !ok {
		return c.Reply("Usage: `absent <@user>`")
	}
	if err := h.roster.MarkAbsent(target); err != nil {
		return c.Reply(RenderError(err))
	}
	return c.Replyf("✅ Marked <@%s> absent for this event.", target)
}

func memberDisplayName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
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

// targetUser extracts the first mentioned user, or a raw id argument.
func targetUser(c *Ctx) (string, bool) {
	if len(c.Message.Mentions) > 0 {
		return c.Message.Mentions[0].ID, true
	}
	if len(c.Args) > 0 {
		id := strings.Trim(c.Args[0], "<@!>")
		if id != "" {
			return id, true
		}
	}
	return "", false
}

func formatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Minute)
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
