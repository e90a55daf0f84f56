package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/quotedesk/approval-api/internal/dto"
	"github.com/quotedesk/approval-api/internal/models"
	"github.com/quotedesk/approval-api/internal/service"
	appErrors "github.com/quotedesk/approval-api/pkg/errors"
	"github.com/quotedesk/approval-api/pkg/response"
)

type workflowService interface {
	Create(ctx context.Context, req dto.CreateWorkflowRequest, actor *models.JWTClaims) (*models.Workflow, error)
	Get(ctx context.Context, id string) (*models.Workflow, error)
	List(ctx context.Context) ([]models.Workflow, error)
	Queue(ctx context.Context, role models.UserRole) ([]models.Workflow, error)
	UpdateStep(ctx context.Context, id string, stepNumber int, update models.StepUpdate, actor *models.JWTClaims) (*models.Workflow, error)
	Update(ctx context.Context, id string, patch models.WorkflowPatch, actor *models.JWTClaims) (*models.Workflow, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
}

type auditExporter interface {
	AuditReport(ctx context.Context, format service.ExportFormat) (*service.ExportResult, error)
}

// WorkflowHandler exposes the approval workflow REST surface.
type WorkflowHandler struct {
	service  workflowService
	exporter auditExporter
}

// NewWorkflowHandler constructs the handler.
func NewWorkflowHandler(svc workflowService, exporter auditExporter) *WorkflowHandler {
	return &WorkflowHandler{service: svc, exporter: exporter}
}

// Create godoc
// @Summary Start an approval workflow
// @Tags Workflows
// @Accept json
// @Produce json
// @Param payload body dto.CreateWorkflowRequest true "Workflow payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /workflows [post]
func (h *WorkflowHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid workflow payload"))
		return
	}
	wf, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, dto.CreateWorkflowResponse{WorkflowID: wf.ID}, nil, map[string]interface{}{"workflow": wf})
}

// List godoc
// @Summary List all workflows (audit view)
// @Tags Workflows
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /workflows [get]
func (h *WorkflowHandler) List(c *gin.Context) {
	workflows, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, workflows, nil)
}

// Queue godoc
// @Summary List workflows awaiting the caller's role
// @Tags Workflows
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /workflows/queue [get]
func (h *WorkflowHandler) Queue(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	workflows, err := h.service.Queue(c.Request.Context(), claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, workflows, nil)
}

// Export godoc
// @Summary Export the audit view as CSV or PDF
// @Tags Workflows
// @Produce octet-stream
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} binary
// @Router /workflows/export [get]
func (h *WorkflowHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "exports are disabled"))
		return
	}
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.exporter.AuditReport(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

// Get godoc
// @Summary Get workflow detail
// @Tags Workflows
// @Produce json
// @Param id path string true "Workflow ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /workflows/{id} [get]
func (h *WorkflowHandler) Get(c *gin.Context) {
	wf, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, wf, nil)
}

// Update godoc
// @Summary Administrative partial update of a workflow
// @Tags Workflows
// @Accept json
// @Produce json
// @Param id path string true "Workflow ID"
// @Param payload body dto.UpdateWorkflowRequest true "Fields to update"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /workflows/{id} [put]
func (h *WorkflowHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid update payload"))
		return
	}
	patch := models.WorkflowPatch{
		Status:      req.Status,
		CurrentStep: req.CurrentStep,
		ClientName:  req.ClientName,
		Amount:      req.Amount,
	}
	wf, err := h.service.Update(c.Request.Context(), c.Param("id"), patch, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, wf, nil)
}

// UpdateStep godoc
// @Summary Act on the active step of a workflow
// @Description Approve, deny, or comment on the step. The caller's role
// @Description comes from the JWT claims, never from the request body.
// @Tags Workflows
// @Accept json
// @Produce json
// @Param id path string true "Workflow ID"
// @Param stepNumber path int true "Step number (1-indexed)"
// @Param payload body dto.UpdateStepRequest true "Step action"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /workflows/{id}/step/{stepNumber} [put]
func (h *WorkflowHandler) UpdateStep(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	stepNumber, err := strconv.Atoi(c.Param("stepNumber"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "stepNumber must be an integer"))
		return
	}
	var req dto.UpdateStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid step payload"))
		return
	}
	update := models.StepUpdate{
		Status:   req.Status,
		Comments: req.Comments,
		Email:    req.Email,
	}
	wf, err := h.service.UpdateStep(c.Request.Context(), c.Param("id"), stepNumber, update, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, wf, nil)
}

// Delete godoc
// @Summary Delete a workflow
// @Tags Workflows
// @Param id path string true "Workflow ID"
// @Success 204 "No Content"
// @Failure 404 {object} response.Envelope
// @Router /workflows/{id} [delete]
func (h *WorkflowHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
