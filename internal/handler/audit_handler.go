package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wilsbb/tor-accreditation-api/internal/models"
	"github.com/wilsbb/tor-accreditation-api/pkg/response"
)

type auditReader interface {
	Recent(ctx context.Context, resourceID string, limit int) ([]models.AuditLog, error)
}

// AuditHandler exposes the accreditation audit trail to staff.
type AuditHandler struct {
	service auditReader
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(service auditReader) *AuditHandler {
	return &AuditHandler{service: service}
}

// Recent godoc
// @Summary List recent audit trail records
// @Tags Audit
// @Produce json
// @Param resource_id query string false "Scope to one resource ID"
// @Param limit query int false "Max records (default 20)"
// @Success 200 {object} response.Envelope
// @Router /audit [get]
func (h *AuditHandler) Recent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	logs, err := h.service.Recent(c.Request.Context(), c.Query("resource_id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}
