package handler

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"discord-row-bot/internal/config"
	"discord-row-bot/internal/model"
	"discord-row-bot/internal/service"
	"discord-row-bot/internal/sheets"
)

// AdminHandler serves the admin command surface: lifecycle transitions,
// blocks, event times, sheets mirroring and the workbook export. Admin
// gating happens in the bot router before these are reached.
type AdminHandler struct {
	cfg        *config.Config
	lifecycle  *service.LifecycleService
	igns       *service.IGNService
	reconciler *sheets.Reconciler
	provider   *service.SnapshotProvider
	export     *service.ExportService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	cfg *config.Config,
	lifecycle *service.LifecycleService,
	igns *service.IGNService,
	reconciler *sheets.Reconciler,
	provider *service.SnapshotProvider,
	export *service.ExportService,
) *AdminHandler {
	return &AdminHandler{
		cfg:        cfg,
		lifecycle:  lifecycle,
		igns:       igns,
		reconciler: reconciler,
		provider:   provider,
		export:     export,
	}
}

// HandleStartEvent handles "startevent": archive the finished cycle and
// post a fresh signup message. A LOCKED cycle is first marked resulted,
// which fails while teams with signups are missing results.
func (h *AdminHandler) HandleStartEvent(c *Ctx) error {
	if h.lifecycle.State() == model.StateLocked {
		if err := h.lifecycle.MarkResulted(); err != nil {
			if missing := h.lifecycle.TeamsMissingResults(); len(missing) > 0 {
				names := make([]string, 0, len(missing))
				for _, t := range missing {
					names = append(names, t.DisplayName())
				}
				return c.Replyf("%s\nMissing results for: %s", RenderError(err), strings.Join(names, ", "))
			}
			return c.Reply(RenderError(err))
		}
	}
	if err := h.lifecycle.Archive(); err != nil {
		return c.Reply(RenderError(err))
	}

	cycle := h.lifecycle.Current()
	_, err := c.Session.ChannelMessageSendComplex(c.Message.ChannelID, &discordgo.MessageSend{
		Content:    signupMessageContent(cycle),
		Components: SignupComponents(),
	})
	return err
}

// HandleLock handles "lock": freeze the rosters.
func (h *AdminHandler) HandleLock(c *Ctx) error {
	if err := h.lifecycle.Lock(c.UserID()); err != nil {
		return c.Reply(RenderError(err))
	}
	return c.Reply("🔒 Signups are locked. Good luck out there!")
}

// HandleSetTime handles "settime <team> <HH:MM UTC Weekday>".
func (h *AdminHandler) HandleSetTime(c *Ctx) error {
	if len(c.Args) < 2 {
		return c.Reply("Usage: `settime <team> <HH:MM UTC Weekday>`")
	}
	team, ok := model.ParseTeam(c.Args[0])
	if !ok {
		return c.Replyf("Unknown team %q. Use main, team2 or team3.", c.Args[0])
	}
	value := strings.Join(c.Args[1:], " ")
	if _, err := service.ParseEventTime(value); err != nil {
		return c.Reply(RenderError(err))
	}
	if err := h.lifecycle.SetTime(team, value); err != nil {
		return c.Reply(RenderError(err))
	}
	return c.Replyf("✅ %s now plays at **%s**.", team.DisplayName(), value)
}

// HandleBlock handles "block <user> [days]".
func (h *AdminHandler) HandleBlock(c *Ctx) error {
	target, ok := targetUser(c)
	if !ok {
		return c.Reply("Usage: `block <@user> [days]`")
	}
	days := 7
	if len(c.Args) > 1 {
		parsed, err := strconv.Atoi(c.Args[1])
		if err != nil || parsed < 1 {
			return c.Reply("Block duration must be a positive number of days.")
		}
		days = parsed
	}
	if max := h.cfg.Teams.MaxBanDays; max > 0 && days > max {
		days = max
	}
	if err := h.igns.Block(target, c.UserID(), days); err != nil {
		return c.Reply(RenderError(err))
	}
	return c.Replyf("🚫 <@%s> is blocked from signups for %d days.", target, days)
}

// HandleUnblock handles "unblock <user>".
func (h *AdminHandler) HandleUnblock(c *Ctx) error {
	target, ok := targetUser(c)
	if !ok {
		return c.Reply("Usage: `unblock <@user>`")
	}
	if err := h.igns.Unblock(target); err != nil {
		return c.Reply(RenderError(err))
	}
	return c.Replyf("✅ <@%s> can sign up again.", target)
}

// HandleSetPower handles "setpower <user> <rating>".
func (h *AdminHandler) HandleSetPower(c *Ctx) error {
	target, ok := targetUser(c)
	if !ok || len(c.Args) < 2 {
		return c.Reply("Usage: `setpower <@user> <rating>`")
	}
	rating, err := strconv.ParseFloat(c.Args[1], 64)
	if err != nil {
		return c.Reply("Power rating must be a number.")
	}
	if err := h.igns.SetPowerRating(target, rating); err != nil {
		return c.Reply(RenderError(err))
	}
	return c.Replyf("✅ Power rating for <@%s> set to %.1f.", target, rating)
}

// HandleSheets handles "sheets sync" and "sheets load".
func (h *AdminHandler) HandleSheets(c *Ctx) error {
	if len(c.Args) < 1 {
		return c.Reply("Usage: `sheets sync` or `sheets load`")
	}
	switch strings.ToLower(c.Args[0]) {
	case "sync":
		report := h.reconciler.SyncAll(context.Background(), h.provider.Take())
		if report.Err != nil && len(report.Results) == 0 {
			return c.Reply(RenderError(report.Err))
		}
		var lines []string
		for _, res := range report.Results {
			if res.Err != nil {
				lines = append(lines, fmt.Sprintf("❌ %s: %v", res.Table, res.Err))
			} else {
				lines = append(lines, fmt.Sprintf("✅ %s", res.Table))
			}
		}
		return c.Reply("Sheets sync:\n" + strings.Join(lines, "\n"))
	case "load":
		tabs, err := h.reconciler.Load(context.Background())
		if err != nil {
			return c.Reply(RenderError(err))
		}
		var lines []string
		for name, rows := range tabs {
			dataRows := len(rows)
			if dataRows > 0 {
				dataRows--
			}
			lines = append(lines, fmt.Sprintf("%s: %d rows", name, dataRows))
		}
		return c.Reply("Spreadsheet contents:\n" + strings.Join(lines, "\n"))
	default:
		return c.Reply("Usage: `sheets sync` or `sheets load`")
	}
}

// HandleExport handles "export": attach the .xlsx workbook.
func (h *AdminHandler) HandleExport(c *Ctx) error {
	data, err := h.export.Workbook()
	if err != nil {
		return c.Reply(RenderError(err))
	}
	_, err = c.Session.ChannelFileSend(c.Message.ChannelID, "row-export.xlsx", bytes.NewReader(data))
	return err
}

// signupMessageContent renders the weekly signup announcement.
func signupMessageContent(cycle model.Cycle) string {
	var b strings.Builder
	b.WriteString("📣 **Rally of War — signups are open!**\n\n")
	for _, team := range model.Teams() {
		fmt.Fprintf(&b, "%s — %s\n", team.DisplayName(), cycle.Times[team])
	}
	b.WriteString("\nUse the buttons below to join or leave a team.")
	return b.String()
}
