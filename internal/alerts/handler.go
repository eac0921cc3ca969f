package alerts

import (
	"net/http"
	"strconv"

	"realty_leads_backend/platform/httpkit"
	"realty_leads_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TransitionRequest moves an alert to acknowledged or resolved.
type TransitionRequest struct {
	Status string `json:"status" validate:"required,oneof=acknowledged resolved"`
}

type Handler struct {
	svc *Service
	val *validator.Validator
}

func NewHandler(svc *Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// List returns alerts, newest first.
// GET /api/v1/alerts?status=&limit=
func (h *Handler) List(c *gin.Context) {
	var status Status
	if raw := c.Query("status"); raw != "" {
		s, ok := ParseStatus(raw)
		if !ok {
			httpkit.Error(c, http.StatusBadRequest, "invalid status", nil)
			return
		}
		status = s
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	items, err := h.svc.List(c.Request.Context(), status, limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": items})
}

// Transition updates an alert's status.
// PATCH /api/v1/alerts/:id
func (h *Handler) Transition(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid alert id", nil)
		return
	}
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", validator.FieldErrors(err))
		return
	}
	a, err := h.svc.Transition(c.Request.Context(), id, Status(req.Status))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, a)
}
