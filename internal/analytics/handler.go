package analytics

import (
	"strconv"

	"realty_leads_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

const defaultDays = 30

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Summary returns the rollup of the last days.
// GET /api/v1/analytics/summary?days=
func (h *Handler) Summary(c *gin.Context) {
	s, err := h.svc.Summary(c.Request.Context(), daysParam(c))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, s)
}

// Snapshots lists stored daily snapshots.
// GET /api/v1/analytics/snapshots?days=
func (h *Handler) Snapshots(c *gin.Context) {
	items, err := h.svc.Snapshots(c.Request.Context(), daysParam(c))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": items})
}

func daysParam(c *gin.Context) int {
	raw := c.Query("days")
	if raw == "" {
		return defaultDays
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return days
}
