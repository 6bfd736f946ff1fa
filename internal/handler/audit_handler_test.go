package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wilsbb/tor-accreditation-api/internal/models"
	appErrors "github.com/wilsbb/tor-accreditation-api/pkg/errors"
)

type auditReaderMock struct {
	logs         []models.AuditLog
	err          error
	lastResource string
	lastLimit    int
}

func (m *auditReaderMock) Recent(ctx context.Context, resourceID string, limit int) ([]models.AuditLog, error) {
	m.lastResource, m.lastLimit = resourceID, limit
	if m.err != nil {
		return nil, m.err
	}
	return m.logs, nil
}

func TestAuditHandlerRecent(t *testing.T) {
	actor := "staff-1"
	mock := &auditReaderMock{logs: []models.AuditLog{
		{ID: "a1", UserID: &actor, Action: models.AuditActionFinalize, Resource: "accreditation"},
		{ID: "a2", UserID: &actor, Action: models.AuditActionDeny, Resource: "accreditation"},
	}}
	handler := NewAuditHandler(mock)

	c, w := newWorkflowTestContext(t, http.MethodGet, "/audit?resource_id=sub-1&limit=5", nil)

	handler.Recent(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "sub-1", mock.lastResource)
	require.Equal(t, 5, mock.lastLimit)

	var envelope struct {
		Data []models.AuditLog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 2)
	require.Equal(t, models.AuditActionFinalize, envelope.Data[0].Action)
}

func TestAuditHandlerRecentStoreFailure(t *testing.T) {
	mock := &auditReaderMock{err: appErrors.ErrInternal}
	handler := NewAuditHandler(mock)

	c, w := newWorkflowTestContext(t, http.MethodGet, "/audit", nil)

	handler.Recent(c)
	require.Equal(t, http.StatusInternalServerError, w.Code)
}
