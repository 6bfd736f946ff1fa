package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/wilsbb/tor-accreditation-api/internal/dto"
	"github.com/wilsbb/tor-accreditation-api/internal/models"
	"github.com/wilsbb/tor-accreditation-api/internal/repository"
	"github.com/wilsbb/tor-accreditation-api/internal/upstream"
	appErrors "github.com/wilsbb/tor-accreditation-api/pkg/errors"
)

type entryUpserter interface {
	UpsertEntries(ctx context.Context, entries []models.SubjectEntry) (repository.UpsertOutcome, error)
}

type syncMetrics interface {
	RecordSyncRows(copied, skipped int)
}

// SyncService copies raw OCR comparison rows into the evaluation store. The
// copy is idempotent: the (submission_id, subject_code) dedupe key in the
// store makes re-running a partially-failed or repeated sync safe, so callers
// may retry the whole action freely.
type SyncService struct {
	source   upstream.TranscriptSource
	entries  entryUpserter
	metrics  syncMetrics
	maxUnits float64
	logger   *zap.Logger
}

// NewSyncService constructs the service.
func NewSyncService(source upstream.TranscriptSource, entries entryUpserter, metrics syncMetrics, maxUnits float64, logger *zap.Logger) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxUnits <= 0 {
		maxUnits = DefaultMaxSubjectUnits
	}
	return &SyncService{source: source, entries: entries, metrics: metrics, maxUnits: maxUnits, logger: logger}
}

// CopyIntoEvaluation reads the applicant's OCR comparison rows, classifies
// each one, and upserts them under the submission. A source with nothing to
// offer yields an Empty result, which is a valid "nothing to process yet"
// outcome rather than a failure.
func (s *SyncService) CopyIntoEvaluation(ctx context.Context, submissionID, applicantID string) (dto.SyncResult, error) {
	rows, err := s.source.FetchComparisonRows(ctx, applicantID)
	if err != nil {
		return dto.SyncResult{}, err
	}
	if len(rows) == 0 {
		s.logger.Info("OCR source yielded no rows",
			zap.String("submission_id", submissionID),
			zap.String("applicant_id", applicantID))
		return dto.SyncResult{Empty: true}, nil
	}

	entries := make([]models.SubjectEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, models.SubjectEntry{
			SubmissionID:       submissionID,
			SubjectCode:        row.SubjectCode,
			SubjectDescription: row.SubjectDescription,
			Units:              row.Units,
			FinalGrade:         row.FinalGrade,
			Remark:             ClassifyUnits(row.Units, s.maxUnits),
			CreditEvaluation:   models.EvaluationVoid,
		})
	}

	outcome, err := s.entries.UpsertEntries(ctx, entries)
	if err != nil {
		return dto.SyncResult{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to copy entries into evaluation store")
	}

	if s.metrics != nil {
		s.metrics.RecordSyncRows(outcome.Inserted, outcome.Skipped)
	}
	s.logger.Info("synced OCR rows into evaluation store",
		zap.String("submission_id", submissionID),
		zap.Int("copied", outcome.Inserted),
		zap.Int("skipped", outcome.Skipped))

	return dto.SyncResult{Copied: outcome.Inserted, Skipped: outcome.Skipped}, nil
}
