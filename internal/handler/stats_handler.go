package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/helloquitx/hqx-api/internal/service"
)

// StatsHandler serves aggregate counters for signed-in users.
type StatsHandler struct {
	statsService *service.StatsService
}

func NewStatsHandler(statsService *service.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// GetTotal handles GET /api/stats/total. Requires auth.
func (h *StatsHandler) GetTotal(c *gin.Context) {
	stats, err := h.statsService.GetTotalStats()
	if err != nil {
		log.Printf("[StatsHandler] Failed to load stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
