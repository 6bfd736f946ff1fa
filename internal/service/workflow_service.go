package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wilsbb/tor-accreditation-api/internal/dto"
	"github.com/wilsbb/tor-accreditation-api/internal/models"
	"github.com/wilsbb/tor-accreditation-api/internal/repository"
	appErrors "github.com/wilsbb/tor-accreditation-api/pkg/errors"
)

// transitions is the closed set of legal stage changes. Anything not in
// this table is rejected with ErrInvalidTransition before any state is
// touched.
var transitions = map[models.Stage]map[models.Action]models.Stage{
	models.StageRequest: {
		models.ActionAccept: models.StagePending,
		models.ActionDeny:   models.StageDenied,
		models.ActionCancel: models.StageCancelled,
	},
	models.StagePending: {
		models.ActionDeny:     models.StageDenied,
		models.ActionFinalize: models.StageFinalized,
	},
}

// nextStage resolves the target stage for an action applied at the
// current stage. ok is false when the pair is not in the table.
func nextStage(current models.Stage, action models.Action) (models.Stage, bool) {
	row, ok := transitions[current]
	if !ok {
		return "", false
	}
	next, ok := row[action]
	return next, ok
}

type submissionStore interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	GetActiveByApplicant(ctx context.Context, applicantID string) (*models.Submission, error)
	UpdateStage(ctx context.Context, id string, from, to models.Stage) error
}

type entryCascadeStore interface {
	ListBySubmission(ctx context.Context, submissionID string, status models.CreditEvaluation) ([]models.SubjectEntry, error)
	DeleteBySubmission(ctx context.Context, submissionID string) (int64, error)
}

type summaryStore interface {
	FinalizeSubmission(ctx context.Context, submission *models.Submission) (*models.FinalizedSummary, error)
}

type transcriptSyncer interface {
	CopyIntoEvaluation(ctx context.Context, submissionID, applicantID string) (dto.SyncResult, error)
}

type workflowAuditLogger interface {
	Record(ctx context.Context, userID, action, detail string)
}

type workflowMetrics interface {
	RecordAccreditationAction(action, outcome string)
}

type trackingInvalidator interface {
	InvalidateApplicant(ctx context.Context, applicantID string)
}

// WorkflowService drives a submission through its lifecycle. Every
// staff action goes through the transition table and a compare-and-set
// stage update, so two concurrent decisions on the same submission
// resolve to exactly one winner.
type WorkflowService struct {
	submissions    submissionStore
	entries        entryCascadeStore
	summaries      summaryStore
	syncer         transcriptSyncer
	audit          workflowAuditLogger
	metrics        workflowMetrics
	cache          trackingInvalidator
	strictFinalize bool
	logger         *zap.Logger
}

func NewWorkflowService(
	submissions submissionStore,
	entries entryCascadeStore,
	summaries summaryStore,
	syncer transcriptSyncer,
	audit workflowAuditLogger,
	metrics workflowMetrics,
	cache trackingInvalidator,
	strictFinalize bool,
	logger *zap.Logger,
) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{
		submissions:    submissions,
		entries:        entries,
		summaries:      summaries,
		syncer:         syncer,
		audit:          audit,
		metrics:        metrics,
		cache:          cache,
		strictFinalize: strictFinalize,
		logger:         logger,
	}
}

// Submit opens a new accreditation request for the applicant and pulls
// the extracted transcript rows into the evaluation store. An applicant
// can hold at most one active submission at a time.
func (s *WorkflowService) Submit(ctx context.Context, applicantID, actorID string) (*dto.ActionResult, error) {
	if applicantID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "account_id is required")
	}

	if existing, err := s.submissions.GetActiveByApplicant(ctx, applicantID); err == nil && existing != nil {
		s.record(ctx, actorID, models.AuditActionSubmit, "rejected: active submission "+existing.ID)
		return nil, appErrors.Clone(appErrors.ErrConflict, "an active accreditation request already exists for this account")
	} else if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Internal(err)
	}

	submission := &models.Submission{ApplicantID: applicantID}
	if err := s.submissions.Create(ctx, submission); err != nil {
		// The active-submission read above is advisory; the insert
		// itself is what serializes two concurrent submits.
		if errors.Is(err, repository.ErrActiveSubmissionExists) {
			s.recordOutcome(models.ActionSubmit, "conflict")
			return nil, appErrors.Clone(appErrors.ErrConflict, "an active accreditation request already exists for this account")
		}
		s.recordOutcome(models.ActionSubmit, "error")
		return nil, appErrors.Internal(err)
	}

	result := &dto.ActionResult{
		ApplicantID:  applicantID,
		SubmissionID: submission.ID,
		Stage:        submission.Stage,
		Message:      "Request submitted.",
	}

	sync, err := s.syncer.CopyIntoEvaluation(ctx, submission.ID, applicantID)
	if err != nil {
		// The request itself stands; the transcript copy can be
		// retried through the sync endpoint once the extractor is
		// reachable again.
		s.logger.Warn("transcript copy failed at submit",
			zap.String("submission_id", submission.ID),
			zap.Error(err))
		result.Message = "Request submitted. Transcript rows could not be copied yet."
	} else if sync.Empty {
		result.Message = "Request submitted. No extracted transcript rows were found."
	} else {
		result.Message = fmt.Sprintf("Request submitted. Copied %d record(s).", sync.Copied)
	}

	s.recordOutcome(models.ActionSubmit, "success")
	s.record(ctx, actorID, models.AuditActionSubmit, "submission "+submission.ID)
	s.invalidate(ctx, applicantID)
	return result, nil
}

// Resync re-runs the transcript copy for the applicant's active
// submission. Rows already present are skipped, so calling it any
// number of times converges to the same evaluation store state.
func (s *WorkflowService) Resync(ctx context.Context, applicantID, actorID string) (dto.SyncResult, error) {
	submission, err := s.activeSubmission(ctx, applicantID)
	if err != nil {
		return dto.SyncResult{}, err
	}

	result, err := s.syncer.CopyIntoEvaluation(ctx, submission.ID, applicantID)
	if err != nil {
		s.recordOutcome(models.ActionSync, "upstream_error")
		return dto.SyncResult{}, err
	}

	s.recordOutcome(models.ActionSync, "success")
	s.record(ctx, actorID, models.AuditActionSync,
		fmt.Sprintf("submission %s copied=%d skipped=%d", submission.ID, result.Copied, result.Skipped))
	s.invalidate(ctx, applicantID)
	return result, nil
}

// Accept moves the applicant's request into evaluation.
func (s *WorkflowService) Accept(ctx context.Context, applicantID, actorID string) (*dto.ActionResult, error) {
	submission, err := s.activeSubmission(ctx, applicantID)
	if err != nil {
		return nil, err
	}

	if err := s.transition(ctx, submission, models.ActionAccept); err != nil {
		return nil, err
	}

	s.record(ctx, actorID, models.AuditActionAccept, "submission "+submission.ID)
	s.invalidate(ctx, applicantID)
	return &dto.ActionResult{
		ApplicantID:  applicantID,
		SubmissionID: submission.ID,
		Stage:        submission.Stage,
		Message:      "Request accepted.",
	}, nil
}

// Deny rejects the request and removes every copied transcript row so a
// later resubmission starts from a clean evaluation store.
func (s *WorkflowService) Deny(ctx context.Context, applicantID, actorID string) (*dto.ActionResult, error) {
	submission, err := s.activeSubmission(ctx, applicantID)
	if err != nil {
		return nil, err
	}

	if err := s.transition(ctx, submission, models.ActionDeny); err != nil {
		return nil, err
	}

	removed, err := s.entries.DeleteBySubmission(ctx, submission.ID)
	if err != nil {
		// Stage already flipped; report the denial and leave the
		// orphaned rows to the next cascade attempt.
		s.logger.Error("entry cascade failed after deny",
			zap.String("submission_id", submission.ID),
			zap.Error(err))
	}

	s.record(ctx, actorID, models.AuditActionDeny,
		fmt.Sprintf("submission %s removed=%d", submission.ID, removed))
	s.invalidate(ctx, applicantID)
	return &dto.ActionResult{
		ApplicantID:  applicantID,
		SubmissionID: submission.ID,
		Stage:        submission.Stage,
		Message:      fmt.Sprintf("Request denied. Removed %d record(s).", removed),
	}, nil
}

// Cancel withdraws the applicant's own request. Only the owner can
// cancel, and only while the request has not been accepted yet.
func (s *WorkflowService) Cancel(ctx context.Context, applicantID, actorID string) (*dto.ActionResult, error) {
	if actorID != applicantID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the requesting applicant can cancel")
	}

	submission, err := s.activeSubmission(ctx, applicantID)
	if err != nil {
		return nil, err
	}

	if err := s.transition(ctx, submission, models.ActionCancel); err != nil {
		return nil, err
	}

	removed, err := s.entries.DeleteBySubmission(ctx, submission.ID)
	if err != nil {
		s.logger.Error("entry cascade failed after cancel",
			zap.String("submission_id", submission.ID),
			zap.Error(err))
	}

	s.record(ctx, actorID, models.AuditActionCancel,
		fmt.Sprintf("submission %s removed=%d", submission.ID, removed))
	s.invalidate(ctx, applicantID)
	return &dto.ActionResult{
		ApplicantID:  applicantID,
		SubmissionID: submission.ID,
		Stage:        submission.Stage,
		Message:      "Request cancelled.",
	}, nil
}

// Finalize freezes the evaluation into an immutable summary and closes
// the submission, all in one transaction. Entries still marked Void are
// reported back to the caller; when strict finalize is enabled they
// block the action instead.
func (s *WorkflowService) Finalize(ctx context.Context, applicantID, actorID string) (*dto.ActionResult, error) {
	submission, err := s.activeSubmission(ctx, applicantID)
	if err != nil {
		return nil, err
	}

	if _, ok := nextStage(submission.Stage, models.ActionFinalize); !ok {
		s.recordOutcome(models.ActionFinalize, "invalid_transition")
		return nil, invalidTransition(submission.Stage, models.ActionFinalize)
	}

	// The unreviewed count gates strict finalize and feeds the response
	// meta; the frozen copy itself is taken by the store inside the
	// finalize transaction.
	entries, err := s.entries.ListBySubmission(ctx, submission.ID, "")
	if err != nil {
		return nil, appErrors.Internal(err)
	}

	unreviewed := 0
	for _, e := range entries {
		if e.CreditEvaluation == models.EvaluationVoid {
			unreviewed++
		}
	}
	if unreviewed > 0 && s.strictFinalize {
		s.recordOutcome(models.ActionFinalize, "precondition_failed")
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("%d entr(ies) are still unreviewed", unreviewed))
	}

	summary, err := s.summaries.FinalizeSubmission(ctx, submission)
	if err != nil {
		if err == sql.ErrNoRows {
			// Lost the race to another decision on the same
			// submission.
			s.recordOutcome(models.ActionFinalize, "invalid_transition")
			return nil, invalidTransition(submission.Stage, models.ActionFinalize)
		}
		s.recordOutcome(models.ActionFinalize, "error")
		return nil, appErrors.Internal(err)
	}

	submission.Stage = models.StageFinalized
	submission.UpdatedAt = time.Now()

	s.recordOutcome(models.ActionFinalize, "success")
	s.record(ctx, actorID, models.AuditActionFinalize,
		fmt.Sprintf("submission %s entries=%d", submission.ID, summary.EntryCount))
	s.invalidate(ctx, applicantID)
	return &dto.ActionResult{
		ApplicantID:       applicantID,
		SubmissionID:      submission.ID,
		Stage:             submission.Stage,
		Message:           "Request finalized.",
		UnreviewedEntries: unreviewed,
	}, nil
}

// transition applies a table-checked CAS stage update and mutates the
// in-memory submission on success.
func (s *WorkflowService) transition(ctx context.Context, submission *models.Submission, action models.Action) error {
	next, ok := nextStage(submission.Stage, action)
	if !ok {
		s.recordOutcome(action, "invalid_transition")
		return invalidTransition(submission.Stage, action)
	}

	if err := s.submissions.UpdateStage(ctx, submission.ID, submission.Stage, next); err != nil {
		if err == sql.ErrNoRows {
			s.recordOutcome(action, "invalid_transition")
			return invalidTransition(submission.Stage, action)
		}
		s.recordOutcome(action, "error")
		return appErrors.Internal(err)
	}

	submission.Stage = next
	submission.UpdatedAt = time.Now()
	s.recordOutcome(action, "success")
	return nil
}

func (s *WorkflowService) activeSubmission(ctx context.Context, applicantID string) (*models.Submission, error) {
	submission, err := s.submissions.GetActiveByApplicant(ctx, applicantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active accreditation request for this account")
		}
		return nil, appErrors.Internal(err)
	}
	return submission, nil
}

func invalidTransition(stage models.Stage, action models.Action) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrInvalidTransition,
		fmt.Sprintf("action %q is not permitted from stage %q", action, stage))
}

func (s *WorkflowService) record(ctx context.Context, actorID string, action, detail string) {
	if s.audit != nil {
		s.audit.Record(ctx, actorID, action, detail)
	}
}

func (s *WorkflowService) recordOutcome(action models.Action, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordAccreditationAction(string(action), outcome)
	}
}

func (s *WorkflowService) invalidate(ctx context.Context, applicantID string) {
	if s.cache != nil {
		s.cache.InvalidateApplicant(ctx, applicantID)
	}
}
