package handler

import (
	"strings"

	"discord-row-bot/internal/model"
	"discord-row-bot/internal/service"
)

// NotifyHandler serves the per-user notification preference commands.
type NotifyHandler struct {
	notify *service.NotificationService
}

// NewNotifyHandler creates a new NotifyHandler.
func NewNotifyHandler(notify *service.NotificationService) *NotifyHandler {
	return &NotifyHandler{notify: notify}
}

// HandleNotify handles the "notify" command family:
//
//	notify                     — show current preferences
//	notify dm on|off           — toggle direct messages
//	notify mention on|off      — toggle channel mentions
//	notify quiet HH:MM HH:MM   — set a quiet-hours window (UTC)
//	notify quiet off           — clear the quiet-hours window
func (h *NotifyHandler) HandleNotify(c *Ctx) error {
	if len(c.Args) == 0 {
		return h.showPrefs(c)
	}

	switch strings.ToLower(c.Args[0]) {
	case "dm", "mention":
		if len(c.Args) < 2 {
			return c.Replyf("Usage: `notify %s on|off`", c.Args[0])
		}
		enabled, ok := parseOnOff(c.Args[1])
		if !ok {
			return c.Replyf("Usage: `notify %s on|off`", c.Args[0])
		}
		channel := model.NotificationChannelDM
		if strings.EqualFold(c.Args[0], "mention") {
			channel = model.NotificationChannelMention
		}
		if err := h.notify.SetChannel(c.UserID(), channel, enabled); err != nil {
			return c.Reply(RenderError(err))
		}
		state := "off"
		if enabled {
			state = "on"
		}
		return c.Replyf("✅ %s notifications are now **%s**.", c.Args[0], state)

	case "quiet":
		if len(c.Args) == 2 && strings.EqualFold(c.Args[1], "off") {
			if err := h.notify.SetQuietHours(c.UserID(), "", ""); err != nil {
				return c.Reply(RenderError(err))
			}
			return c.Reply("✅ Quiet hours cleared.")
		}
		if len(c.Args) < 3 {
			return c.Reply("Usage: `notify quiet HH:MM HH:MM` or `notify quiet off`")
		}
		if err := h.notify.SetQuietHours(c.UserID(), c.Args[1], c.Args[2]); err != nil {
			return c.Reply(RenderError(err))
		}
		return c.Replyf("✅ Quiet hours set: %s–%s UTC.", c.Args[1], c.Args[2])

	default:
		return c.Reply("Usage: `notify [dm|mention on|off] [quiet HH:MM HH:MM|off]`")
	}
}

func (h *NotifyHandler) showPrefs(c *Ctx) error {
	prefs, err := h.notify.Prefs(c.UserID())
	if err != nil {
		return c.Reply(RenderError(err))
	}
	onOff := func(channel string) string {
		if enabled, ok := prefs.Channels[channel]; ok && !enabled {
			return "off"
		}
		return "on"
	}
	quiet := "not set"
	if prefs.QuietStart != "" {
		quiet = prefs.QuietStart + "–" + prefs.QuietEnd + " UTC"
	}
	return c.Replyf("🔔 Your notifications:\nDM: **%s**\nMention: **%s**\nQuiet hours: **%s**",
		onOff(model.NotificationChannelDM), onOff(model.NotificationChannelMention), quiet)
}

func parseOnOff(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "on", "yes", "true", "1":
		return true, true
	case "off", "no", "false", "0":
		return false, true
	default:
		return false, false
	}
}
