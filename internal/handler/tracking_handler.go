package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wilsbb/tor-accreditation-api/internal/dto"
	"github.com/wilsbb/tor-accreditation-api/internal/models"
	"github.com/wilsbb/tor-accreditation-api/internal/service"
	appErrors "github.com/wilsbb/tor-accreditation-api/pkg/errors"
	"github.com/wilsbb/tor-accreditation-api/pkg/response"
)

type trackingService interface {
	Progress(ctx context.Context, applicantID string) (*dto.ProgressResponse, error)
	ActiveDetails(ctx context.Context, applicantID string) (*dto.SubmissionDetails, error)
	ListByStage(ctx context.Context, stage models.Stage, limit, offset int) ([]dto.SubmissionListItem, error)
	FinalizedList(ctx context.Context, limit, offset int) ([]models.FinalizedSummary, error)
	FinalizedReport(ctx context.Context, submissionID string) (*dto.FinalizedReport, error)
	Curriculum(ctx context.Context) ([]models.CurriculumSubject, error)
}

type exportService interface {
	Generate(ctx context.Context, submissionID string, format service.ExportFormat) (*service.ExportFile, error)
}

// TrackingHandler serves the read side: the applicant tracker, staff
// dashboards, curriculum reference, and finalized reports.
type TrackingHandler struct {
	service trackingService
	exports exportService
}

// NewTrackingHandler constructs the handler.
func NewTrackingHandler(service trackingService, exports exportService) *TrackingHandler {
	return &TrackingHandler{service: service, exports: exports}
}

// Progress godoc
// @Summary Applicant progress step
// @Tags Tracking
// @Produce json
// @Param applicantId path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Router /tracking/{applicantId}/progress [get]
func (h *TrackingHandler) Progress(c *gin.Context) {
	progress, err := h.service.Progress(c.Request.Context(), c.Param("applicantId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}

// Details godoc
// @Summary Active submission with profile and entries
// @Tags Tracking
// @Produce json
// @Param applicantId path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tracking/{applicantId} [get]
func (h *TrackingHandler) Details(c *gin.Context) {
	details, err := h.service.ActiveDetails(c.Request.Context(), c.Param("applicantId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, nil)
}

// ListByStage godoc
// @Summary Staff dashboard listing by stage
// @Tags Tracking
// @Produce json
// @Param stage query string true "Lifecycle stage"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *TrackingHandler) ListByStage(c *gin.Context) {
	stage := models.Stage(c.DefaultQuery("stage", string(models.StagePending)))
	limit, offset := pageParams(c)
	items, err := h.service.ListByStage(c.Request.Context(), stage, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// FinalizedList godoc
// @Summary Finalized summaries
// @Tags Tracking
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /finalized [get]
func (h *TrackingHandler) FinalizedList(c *gin.Context) {
	limit, offset := pageParams(c)
	summaries, err := h.service.FinalizedList(c.Request.Context(), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, nil)
}

// FinalizedReport godoc
// @Summary Frozen snapshot of one finalized submission
// @Tags Tracking
// @Produce json
// @Param submissionId path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /finalized/{submissionId} [get]
func (h *TrackingHandler) FinalizedReport(c *gin.Context) {
	report, err := h.service.FinalizedReport(c.Request.Context(), c.Param("submissionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Export godoc
// @Summary Download a finalized summary as CSV or PDF
// @Tags Tracking
// @Produce octet-stream
// @Param submissionId path string true "Submission ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /finalized/{submissionId}/export [get]
func (h *TrackingHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export service not configured"))
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportFormatCSV)))
	file, err := h.exports.Generate(c.Request.Context(), c.Param("submissionId"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Payload)
}

// Curriculum godoc
// @Summary Institutional subject catalog
// @Tags Tracking
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /curriculum [get]
func (h *TrackingHandler) Curriculum(c *gin.Context) {
	subjects, err := h.service.Curriculum(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}

func pageParams(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
