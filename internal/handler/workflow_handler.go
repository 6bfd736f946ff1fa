package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wilsbb/tor-accreditation-api/internal/dto"
	"github.com/wilsbb/tor-accreditation-api/internal/models"
	appErrors "github.com/wilsbb/tor-accreditation-api/pkg/errors"
	"github.com/wilsbb/tor-accreditation-api/pkg/response"
)

type workflowService interface {
	Submit(ctx context.Context, applicantID, actorID string) (*dto.ActionResult, error)
	Resync(ctx context.Context, applicantID, actorID string) (dto.SyncResult, error)
	Accept(ctx context.Context, applicantID, actorID string) (*dto.ActionResult, error)
	Deny(ctx context.Context, applicantID, actorID string) (*dto.ActionResult, error)
	Cancel(ctx context.Context, applicantID, actorID string) (*dto.ActionResult, error)
	Finalize(ctx context.Context, applicantID, actorID string) (*dto.ActionResult, error)
}

// WorkflowHandler exposes REST endpoints for the accreditation lifecycle.
type WorkflowHandler struct {
	service workflowService
}

// NewWorkflowHandler constructs the handler.
func NewWorkflowHandler(service workflowService) *WorkflowHandler {
	return &WorkflowHandler{service: service}
}

// Submit godoc
// @Summary Open an accreditation request
// @Tags Workflow
// @Accept json
// @Produce json
// @Param payload body dto.SubmitRequest true "Submit payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests [post]
func (h *WorkflowHandler) Submit(c *gin.Context) {
	var req dto.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid submit payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	// Applicants open their own request; only staff may open one on
	// another account's behalf.
	if req.ApplicantID != claims.UserID &&
		claims.Role != models.RoleAdmin && claims.Role != models.RoleFaculty {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "cannot open a request for another account"))
		return
	}
	result, err := h.service.Submit(c.Request.Context(), req.ApplicantID, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, result, nil)
}

// Sync godoc
// @Summary Re-copy extracted transcript rows into the evaluation table
// @Tags Workflow
// @Produce json
// @Param applicantId path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /requests/{applicantId}/sync [post]
func (h *WorkflowHandler) Sync(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.Resync(c.Request.Context(), c.Param("applicantId"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Accept godoc
// @Summary Accept a pending request for evaluation
// @Tags Workflow
// @Produce json
// @Param applicantId path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{applicantId}/accept [post]
func (h *WorkflowHandler) Accept(c *gin.Context) {
	h.action(c, h.service.Accept)
}

// Deny godoc
// @Summary Deny a request and remove its copied rows
// @Tags Workflow
// @Produce json
// @Param applicantId path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{applicantId}/deny [post]
func (h *WorkflowHandler) Deny(c *gin.Context) {
	h.action(c, h.service.Deny)
}

// Cancel godoc
// @Summary Cancel the caller's own request
// @Tags Workflow
// @Produce json
// @Param applicantId path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /requests/{applicantId}/cancel [post]
func (h *WorkflowHandler) Cancel(c *gin.Context) {
	h.action(c, h.service.Cancel)
}

// Finalize godoc
// @Summary Freeze the evaluation and close the request
// @Tags Workflow
// @Produce json
// @Param applicantId path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /requests/{applicantId}/finalize [post]
func (h *WorkflowHandler) Finalize(c *gin.Context) {
	h.action(c, h.service.Finalize)
}

func (h *WorkflowHandler) action(c *gin.Context, fn func(context.Context, string, string) (*dto.ActionResult, error)) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := fn(c.Request.Context(), c.Param("applicantId"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	var meta map[string]interface{}
	if result.UnreviewedEntries > 0 {
		meta = map[string]interface{}{"unreviewed_entries": result.UnreviewedEntries}
	}
	response.JSON(c, http.StatusOK, result, nil, meta)
}
