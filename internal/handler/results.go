package handler

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"discord-row-bot/internal/model"
	"discord-row-bot/internal/service"
)

// ResultsHandler serves match results and player statistics.
type ResultsHandler struct {
	results *service.ResultsService
	stats   *service.StatsService
	igns    *service.IGNService
}

// NewResultsHandler creates a new ResultsHandler.
func NewResultsHandler(results *service.ResultsService, stats *service.StatsService, igns *service.IGNService) *ResultsHandler {
	return &ResultsHandler{results: results, stats: stats, igns: igns}
}

// HandleAddResult handles the admin "win|loss|draw <team> [enemy]" forms.
func (h *ResultsHandler) HandleAddResult(c *Ctx, outcome model.Outcome) error {
	if len(c.Args) < 1 {
		return c.Replyf("Usage: `%s <team> [enemy alliance]`", outcome)
	}
	team, ok := model.ParseTeam(c.Args[0])
	if !ok {
		return c.Replyf("Unknown team %q. Use main, team2 or team3.", c.Args[0])
	}
	enemy := strings.Join(c.Args[1:], " ")

	entry, err := h.results.Record(team, outcome, c.UserID(), enemy)
	if err != nil {
		return c.Reply(RenderError(err))
	}
	msg := fmt.Sprintf("✅ Recorded **%s** for %s", outcome, team.DisplayName())
	if enemy != "" {
		msg += fmt.Sprintf(" vs **%s**", enemy)
	}
	return c.Reply(msg + fmt.Sprintf(" (id `%s`).", entry.ID))
}

// HandleRetract handles the admin "retract <id> <reason>" command.
func (h *ResultsHandler) HandleRetract(c *Ctx) error {
	if len(c.Args) < 2 {
		return c.Reply("Usage: `retract <result id> <reason>`")
	}
	resultID := c.Args[0]
	reason := strings.Join(c.Args[1:], " ")

	if err := h.results.Retract(resultID, reason, c.UserID()); err != nil {
		return c.Reply(RenderError(err))
	}
	return c.Replyf("✅ Result `%s` retracted: %s", resultID, reason)
}

// HandleResults handles "results": standing results of the live cycle.
func (h *ResultsHandler) HandleResults(c *Ctx) error {
	standing := h.results.Standing()
	if len(standing) == 0 {
		return c.Reply("No results recorded for this event yet.")
	}
	var lines []string
	for _, e := range standing {
		line := fmt.Sprintf("%s — **%s**", e.Team.DisplayName(), e.Outcome)
		if e.EnemyAlliance != "" {
			line += fmt.Sprintf(" vs %s", e.EnemyAlliance)
		}
		line += fmt.Sprintf(" · `%s`", e.ID)
		lines = append(lines, line)
	}
	return c.Reply(strings.Join(lines, "\n"))
}

// HandleMyStats handles "mystats".
func (h *ResultsHandler) HandleMyStats(c *Ctx) error {
	stats := h.stats.Aggregate(c.UserID())
	combined := stats.Combined()
	if combined.Total() == 0 && stats.Absents == 0 {
		return c.Reply("No recorded matches for you yet.")
	}

	name := h.igns.ResolveDisplay(c.UserID(), c.DisplayName())
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Stats — %s", name),
		Color: 0x2f855a,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name: "Overall",
				Value: fmt.Sprintf("%d W / %d L / %d D (%d matches, %d absences)",
					combined.Wins, combined.Losses, combined.Draws, combined.Total(), stats.Absents),
			},
		},
	}
	for _, team := range model.Teams() {
		rec, ok := stats.TeamRecords[team]
		if !ok || rec.Total() == 0 {
			continue
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   team.DisplayName(),
			Value:  fmt.Sprintf("%d W / %d L / %d D", rec.Wins, rec.Losses, rec.Draws),
			Inline: true,
		})
	}
	return c.ReplyEmbed(embed)
}
