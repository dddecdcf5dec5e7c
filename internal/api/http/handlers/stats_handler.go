package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/community-service/internal/service"
)

// StatsHandler exposes aggregate engagement statistics to admins.
type StatsHandler struct {
	stats *service.StatsService
}

// NewStatsHandler returns a new handler instance.
func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Community returns the combined rollup. Admin access is enforced by
// the route middleware before this runs.
func (h *StatsHandler) Community(c *fiber.Ctx) error {
	stats, err := h.stats.Aggregate(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}
