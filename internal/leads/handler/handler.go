package handler

import (
	"context"
	"net/http"
	"strconv"

	"realty_leads_backend/internal/imports"
	"realty_leads_backend/internal/leads/domain"
	"realty_leads_backend/internal/leads/service"
	"realty_leads_backend/internal/leads/transport"
	"realty_leads_backend/platform/httpkit"
	"realty_leads_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidLeadID    = "invalid lead id"
	msgInvalidDays      = "days must be a positive integer"
)

// LeadService is the lifecycle surface the handler drives.
type LeadService interface {
	Submit(ctx context.Context, sub domain.LeadSubmission) (service.SubmitResult, error)
	ImportBatch(ctx context.Context, target string, subs []domain.LeadSubmission) (service.BatchResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (domain.Lead, error)
	Purchase(ctx context.Context, id, purchaser uuid.UUID, priceCents int64) (domain.Lead, error)
	Rescore(ctx context.Context, id uuid.UUID) (domain.Lead, error)
}

// AttemptLister lists recent import attempts.
type AttemptLister interface {
	List(ctx context.Context, days int) ([]imports.Attempt, error)
}

// Handler handles lead HTTP requests.
type Handler struct {
	svc      LeadService
	attempts AttemptLister
	val      *validator.Validator
}

func New(svc LeadService, attempts AttemptLister, val *validator.Validator) *Handler {
	return &Handler{svc: svc, attempts: attempts, val: val}
}

// Submit captures one public form submission.
// POST /api/v1/leads/submit
func (h *Handler) Submit(c *gin.Context) {
	var req transport.SubmitLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	res, err := h.svc.Submit(c.Request.Context(), req.ToSubmission())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, res)
}

// Import routes a batch of submissions.
// POST /api/v1/imports
func (h *Handler) Import(c *gin.Context) {
	var req transport.ImportLeadsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	subs := make([]domain.LeadSubmission, 0, len(req.Leads))
	for _, l := range req.Leads {
		subs = append(subs, l.ToSubmission())
	}
	res, err := h.svc.ImportBatch(c.Request.Context(), req.Target, subs)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, res)
}

// ListImports returns attempts started within the last days.
// GET /api/v1/imports?days=
func (h *Handler) ListImports(c *gin.Context) {
	days := 7
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidDays, nil)
			return
		}
		days = n
	}
	items, err := h.attempts.List(c.Request.Context(), days)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": items})
}

// GET /api/v1/leads/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	lead, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

// UpdateStatus applies a lifecycle transition.
// PATCH /api/v1/leads/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	var req transport.UpdateLeadStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	lead, err := h.svc.UpdateStatus(c.Request.Context(), id, req.Status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

// POST /api/v1/leads/:id/purchase
func (h *Handler) Purchase(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	var req transport.PurchaseLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	purchaser, _ := uuid.Parse(req.PurchaserID)
	lead, err := h.svc.Purchase(c.Request.Context(), id, purchaser, req.PriceCents)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

// POST /api/v1/leads/:id/rescore
func (h *Handler) Rescore(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	lead, err := h.svc.Rescore(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func leadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return uuid.Nil, false
	}
	return id, true
}
