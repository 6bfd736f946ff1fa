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

type evaluationService interface {
	SetEvaluation(ctx context.Context, entryID, status, actorID string) (*models.SubjectEntry, error)
	SetNote(ctx context.Context, entryID, note, actorID string) (*models.SubjectEntry, error)
	ListForApplicant(ctx context.Context, applicantID, status string) ([]models.SubjectEntry, error)
}

// EntryHandler exposes REST endpoints for per-entry evaluation state.
type EntryHandler struct {
	service evaluationService
}

// NewEntryHandler constructs the handler.
func NewEntryHandler(service evaluationService) *EntryHandler {
	return &EntryHandler{service: service}
}

// List godoc
// @Summary List evaluation entries for an applicant's active request
// @Tags Entries
// @Produce json
// @Param applicantId path string true "Applicant ID"
// @Param status query string false "Filter by evaluation status"
// @Success 200 {object} response.Envelope
// @Router /requests/{applicantId}/entries [get]
func (h *EntryHandler) List(c *gin.Context) {
	entries, err := h.service.ListForApplicant(c.Request.Context(), c.Param("applicantId"), c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// UpdateEvaluation godoc
// @Summary Set the credit evaluation on one entry
// @Tags Entries
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body dto.UpdateEvaluationRequest true "Evaluation status"
// @Success 200 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /entries/{id}/evaluation [patch]
func (h *EntryHandler) UpdateEvaluation(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid evaluation payload"))
		return
	}
	entry, err := h.service.SetEvaluation(c.Request.Context(), c.Param("id"), string(req.Status), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// UpdateNote godoc
// @Summary Set the reviewer note on one entry
// @Tags Entries
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body dto.UpdateNoteRequest true "Note body"
// @Success 200 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /entries/{id}/note [patch]
func (h *EntryHandler) UpdateNote(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid note payload"))
		return
	}
	entry, err := h.service.SetNote(c.Request.Context(), c.Param("id"), req.Note, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}
