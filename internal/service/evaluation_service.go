package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/wilsbb/tor-accreditation-api/internal/models"
	appErrors "github.com/wilsbb/tor-accreditation-api/pkg/errors"
)

type entryStore interface {
	GetByID(ctx context.Context, id string) (*models.SubjectEntry, error)
	ListBySubmission(ctx context.Context, submissionID string, status models.CreditEvaluation) ([]models.SubjectEntry, error)
	SetEvaluation(ctx context.Context, id string, status models.CreditEvaluation) error
	SetNotes(ctx context.Context, id string, notes string) error
}

type submissionGetter interface {
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	GetActiveByApplicant(ctx context.Context, applicantID string) (*models.Submission, error)
}

// EvaluationService mutates per-entry review state while the parent
// submission is still open. Once the submission is finalized every
// entry becomes read-only.
type EvaluationService struct {
	entries     entryStore
	submissions submissionGetter
	audit       workflowAuditLogger
	logger      *zap.Logger
}

func NewEvaluationService(entries entryStore, submissions submissionGetter, audit workflowAuditLogger, logger *zap.Logger) *EvaluationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvaluationService{
		entries:     entries,
		submissions: submissions,
		audit:       audit,
		logger:      logger,
	}
}

// SetEvaluation moves one entry to the given review state.
func (s *EvaluationService) SetEvaluation(ctx context.Context, entryID, status, actorID string) (*models.SubjectEntry, error) {
	evaluation := models.CreditEvaluation(status)
	if !evaluation.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown evaluation status: "+status)
	}

	entry, err := s.writableEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	if err := s.entries.SetEvaluation(ctx, entry.ID, evaluation); err != nil {
		return nil, entryWriteError(err)
	}
	entry.CreditEvaluation = evaluation

	if s.audit != nil {
		s.audit.Record(ctx, actorID, models.AuditActionEvaluationUpdate,
			"entry "+entry.ID+" -> "+status)
	}
	return entry, nil
}

// SetNote replaces the staff note on one entry.
func (s *EvaluationService) SetNote(ctx context.Context, entryID, note, actorID string) (*models.SubjectEntry, error) {
	entry, err := s.writableEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	if err := s.entries.SetNotes(ctx, entry.ID, note); err != nil {
		return nil, entryWriteError(err)
	}
	entry.Notes = note

	if s.audit != nil {
		s.audit.Record(ctx, actorID, models.AuditActionNoteUpdate, "entry "+entry.ID)
	}
	return entry, nil
}

// ListForApplicant returns the evaluation rows of the applicant's
// active submission, optionally filtered by review state.
func (s *EvaluationService) ListForApplicant(ctx context.Context, applicantID, status string) ([]models.SubjectEntry, error) {
	filter := models.CreditEvaluation(status)
	if status != "" && !filter.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown evaluation status: "+status)
	}

	submission, err := s.submissions.GetActiveByApplicant(ctx, applicantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active accreditation request for this account")
		}
		return nil, appErrors.Internal(err)
	}

	entries, err := s.entries.ListBySubmission(ctx, submission.ID, filter)
	if err != nil {
		return nil, appErrors.Internal(err)
	}
	return entries, nil
}

// entryWriteError maps a failed guarded entry update. The store's
// UPDATE only matches rows under an open submission, so zero matched
// rows after writableEntry succeeded means a concurrent action closed
// the submission between the read and the write.
func entryWriteError(err error) error {
	if err == sql.ErrNoRows {
		return appErrors.Clone(appErrors.ErrLocked, "submission was closed while updating the entry")
	}
	return appErrors.Internal(err)
}

// writableEntry loads the entry and rejects the mutation when the
// parent submission has reached a terminal stage.
func (s *EvaluationService) writableEntry(ctx context.Context, entryID string) (*models.SubjectEntry, error) {
	entry, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "evaluation entry not found")
		}
		return nil, appErrors.Internal(err)
	}

	submission, err := s.submissions.GetByID(ctx, entry.SubmissionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Internal(err)
	}

	if submission.Stage == models.StageFinalized {
		return nil, appErrors.ErrLocked
	}
	if submission.Stage.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "submission is closed")
	}
	return entry, nil
}
