package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/wilsbb/tor-accreditation-api/internal/models"
	appErrors "github.com/wilsbb/tor-accreditation-api/pkg/errors"
)

type auditStore interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
	ListRecent(ctx context.Context, resourceID string, limit int) ([]models.AuditLog, error)
}

// AuditService persists the accreditation audit trail. Writes never
// fail the calling operation; a lost audit row is logged and dropped.
type AuditService struct {
	store  auditStore
	logger *zap.Logger
}

func NewAuditService(store auditStore, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{store: store, logger: logger}
}

// Record writes one audit row for a workflow or evaluation action.
func (s *AuditService) Record(ctx context.Context, userID, action, detail string) {
	if s == nil || s.store == nil {
		return
	}

	var actor *string
	if userID != "" {
		actor = &userID
	}
	payload, _ := json.Marshal(map[string]string{"detail": detail})

	entry := &models.AuditLog{
		UserID:    actor,
		Action:    action,
		Resource:  "accreditation",
		NewValues: payload,
	}
	if err := s.store.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("audit write failed",
			zap.String("action", action),
			zap.Error(err))
	}
}

// Recent returns the latest audit rows, optionally scoped to one resource.
func (s *AuditService) Recent(ctx context.Context, resourceID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	logs, err := s.store.ListRecent(ctx, resourceID, limit)
	if err != nil {
		return nil, appErrors.Internal(err)
	}
	return logs, nil
}
