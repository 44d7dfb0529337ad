package handler

import (
	"strconv"

	"github.com/arturoeanton/go-study-assistant/internal/port"
	"github.com/gofiber/fiber/v3"
)

// ActivityHandler exposes the request audit log as an activity feed.
type ActivityHandler struct {
	store port.AuditStore
}

// NewActivityHandler creates a new activity handler.
func NewActivityHandler(store port.AuditStore) *ActivityHandler {
	return &ActivityHandler{store: store}
}

// Register sets up activity routes.
func (h *ActivityHandler) Register(router fiber.Router) {
	router.Get("/activity", h.List)
}

// List returns audit logs, newest first, with optional action filter.
func (h *ActivityHandler) List(c fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	action := c.Query("action", "")

	logs, err := h.store.ListAuditLogs(c.Context(), limit, action)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"logs":  logs,
		"count": len(logs),
	})
}
