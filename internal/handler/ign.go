package handler

import (
	"strings"

	"discord-row-bot/internal/service"
)

// IGNHandler serves the identity commands.
type IGNHandler struct {
	igns *service.IGNService
}

// NewIGNHandler creates a new IGNHandler.
func NewIGNHandler(igns *service.IGNService) *IGNHandler {
	return &IGNHandler{igns: igns}
}

// HandleSetIGN handles "setign <name>".
func (h *IGNHandler) HandleSetIGN(c *Ctx) error {
	ign := strings.Join(c.Args, " ")
	if strings.TrimSpace(ign) == "" {
		return c.Reply("Usage: `setign <in-game name>`")
	}
	if err := h.igns.SetIGN(c.UserID(), ign); err != nil {
		return c.Reply(RenderError(err))
	}
	return c.Replyf("✅ IGN set to **%s**.", strings.TrimSpace(ign))
}

// HandleMyIGN handles "myign".
func (h *IGNHandler) HandleMyIGN(c *Ctx) error {
	ign, ok := h.igns.IGN(c.UserID())
	if !ok {
		return c.Reply("You have no IGN set. Use `setign <name>` to set one.")
	}
	return c.Replyf("Your IGN is **%s**.", ign)
}

// HandleClearIGN handles "clearign".
func (h *IGNHandler) HandleClearIGN(c *Ctx) error {
	if err := h.igns.ClearIGN(c.UserID()); err != nil {
		return c.Reply(RenderError(err))
	}
	return c.Reply("✅ IGN cleared.")
}
