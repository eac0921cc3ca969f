package markets

import (
	"net/http"
	"strconv"
	"time"

	"realty_leads_backend/platform/httpkit"
	"realty_leads_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid property id"
)

// RecomputeRequest optionally pins the period; the current UTC day otherwise.
type RecomputeRequest struct {
	PeriodStart string `json:"periodStart" validate:"omitempty,datetime=2006-01-02"`
}

// PropertyEventRequest records one view, lead or conversion.
type PropertyEventRequest struct {
	Kind string `json:"kind" validate:"required,oneof=view lead conversion"`
}

// Handler serves the markets endpoints.
type Handler struct {
	svc *Service
	val *validator.Validator
}

func NewHandler(svc *Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// List returns the ranked markets of the latest period.
// GET /api/v1/markets?limit=
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	ms, err := h.svc.Latest(c.Request.Context(), limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": ms})
}

// Recompute runs the market aggregation synchronously.
// POST /api/v1/markets/recompute
func (h *Handler) Recompute(c *gin.Context) {
	var req RecomputeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	start := time.Now().UTC()
	if req.PeriodStart != "" {
		start, _ = time.Parse("2006-01-02", req.PeriodStart)
	}
	ms, err := h.svc.RecomputeAll(c.Request.Context(), start)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": ms})
}

// Property returns one property's metrics.
// GET /api/v1/markets/properties/:id
func (h *Handler) Property(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	pm, err := h.svc.Property(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, pm)
}

// RecordEvent counts a property view, lead or conversion.
// POST /api/v1/markets/properties/:id/events
func (h *Handler) RecordEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	var req PropertyEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}
	if err := h.svc.RecordPropertyEvent(c.Request.Context(), id, req.Kind); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}
