package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wilsbb/tor-accreditation-api/internal/dto"
	"github.com/wilsbb/tor-accreditation-api/internal/models"
	"github.com/wilsbb/tor-accreditation-api/internal/repository"
	appErrors "github.com/wilsbb/tor-accreditation-api/pkg/errors"
)

type submissionStoreStub struct {
	submissions map[string]*models.Submission
	seq         int
	createErr   error
}

func newSubmissionStoreStub() *submissionStoreStub {
	return &submissionStoreStub{submissions: make(map[string]*models.Submission)}
}

func (s *submissionStoreStub) Create(ctx context.Context, submission *models.Submission) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.seq++
	if submission.ID == "" {
		submission.ID = fmt.Sprintf("sub-%d", s.seq)
	}
	if submission.Stage == "" {
		submission.Stage = models.StageRequest
	}
	copy := *submission
	s.submissions[submission.ID] = &copy
	return nil
}

func (s *submissionStoreStub) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	if sub, ok := s.submissions[id]; ok {
		copy := *sub
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *submissionStoreStub) GetActiveByApplicant(ctx context.Context, applicantID string) (*models.Submission, error) {
	for _, sub := range s.submissions {
		if sub.ApplicantID == applicantID && !sub.Stage.Terminal() {
			copy := *sub
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *submissionStoreStub) UpdateStage(ctx context.Context, id string, from, to models.Stage) error {
	sub, ok := s.submissions[id]
	if !ok || sub.Stage != from {
		return sql.ErrNoRows
	}
	sub.Stage = to
	return nil
}

type entryCascadeStub struct {
	entries map[string][]models.SubjectEntry
	onList  func()
}

func newEntryCascadeStub() *entryCascadeStub {
	return &entryCascadeStub{entries: make(map[string][]models.SubjectEntry)}
}

func (s *entryCascadeStub) ListBySubmission(ctx context.Context, submissionID string, status models.CreditEvaluation) ([]models.SubjectEntry, error) {
	rows := append([]models.SubjectEntry(nil), s.entries[submissionID]...)
	if s.onList != nil {
		s.onList()
	}
	if status == "" {
		return rows, nil
	}
	filtered := make([]models.SubjectEntry, 0, len(rows))
	for _, e := range rows {
		if e.CreditEvaluation == status {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

func (s *entryCascadeStub) DeleteBySubmission(ctx context.Context, submissionID string) (int64, error) {
	count := int64(len(s.entries[submissionID]))
	delete(s.entries, submissionID)
	return count, nil
}

type summaryStoreStub struct {
	submissions *submissionStoreStub
	entries     *entryCascadeStub
	summaries   map[string]*models.FinalizedSummary
	frozen      map[string][]models.SummaryEntry
	err         error
}

func newSummaryStoreStub(submissions *submissionStoreStub, entries *entryCascadeStub) *summaryStoreStub {
	return &summaryStoreStub{
		submissions: submissions,
		entries:     entries,
		summaries:   make(map[string]*models.FinalizedSummary),
		frozen:      make(map[string][]models.SummaryEntry),
	}
}

// FinalizeSubmission mirrors the real store: the stage flip and the entry
// snapshot happen together, reading the live entries at commit time.
func (s *summaryStoreStub) FinalizeSubmission(ctx context.Context, submission *models.Submission) (*models.FinalizedSummary, error) {
	if s.err != nil {
		return nil, s.err
	}
	if err := s.submissions.UpdateStage(ctx, submission.ID, models.StagePending, models.StageFinalized); err != nil {
		return nil, err
	}
	live := s.entries.entries[submission.ID]
	summary := &models.FinalizedSummary{
		SubmissionID: submission.ID,
		ApplicantID:  submission.ApplicantID,
		EntryCount:   len(live),
	}
	s.summaries[submission.ID] = summary
	rows := make([]models.SummaryEntry, 0, len(live))
	for _, e := range live {
		rows = append(rows, models.SummaryEntry{
			SubmissionID:     submission.ID,
			SubjectCode:      e.SubjectCode,
			Units:            e.Units,
			Remark:           e.Remark,
			CreditEvaluation: e.CreditEvaluation,
		})
	}
	s.frozen[submission.ID] = rows
	return summary, nil
}

type syncerStub struct {
	result dto.SyncResult
	err    error
	calls  int
}

func (s *syncerStub) CopyIntoEvaluation(ctx context.Context, submissionID, applicantID string) (dto.SyncResult, error) {
	s.calls++
	return s.result, s.err
}

type workflowAuditStub struct {
	actions []string
}

func (a *workflowAuditStub) Record(ctx context.Context, userID, action, detail string) {
	a.actions = append(a.actions, action)
}

type workflowFixture struct {
	submissions *submissionStoreStub
	entries     *entryCascadeStub
	summaries   *summaryStoreStub
	syncer      *syncerStub
	audit       *workflowAuditStub
	svc         *WorkflowService
}

func newWorkflowFixture(strict bool) *workflowFixture {
	submissions := newSubmissionStoreStub()
	entries := newEntryCascadeStub()
	summaries := newSummaryStoreStub(submissions, entries)
	syncer := &syncerStub{result: dto.SyncResult{Copied: 2}}
	audit := &workflowAuditStub{}
	svc := NewWorkflowService(submissions, entries, summaries, syncer, audit, nil, nil, strict, nil)
	return &workflowFixture{
		submissions: submissions,
		entries:     entries,
		summaries:   summaries,
		syncer:      syncer,
		audit:       audit,
		svc:         svc,
	}
}

func (f *workflowFixture) seed(applicantID string, stage models.Stage, entries ...models.SubjectEntry) *models.Submission {
	sub := &models.Submission{ApplicantID: applicantID, Stage: stage}
	_ = f.submissions.Create(context.Background(), sub)
	f.submissions.submissions[sub.ID].Stage = stage
	sub.Stage = stage
	for i := range entries {
		entries[i].SubmissionID = sub.ID
	}
	f.entries.entries[sub.ID] = entries
	return sub
}

func TestNextStageTable(t *testing.T) {
	stages := []models.Stage{
		models.StageRequest, models.StagePending,
		models.StageDenied, models.StageCancelled, models.StageFinalized,
	}
	actions := []models.Action{
		models.ActionAccept, models.ActionDeny,
		models.ActionCancel, models.ActionFinalize,
	}
	allowed := map[string]models.Stage{
		"Request/accept":   models.StagePending,
		"Request/deny":     models.StageDenied,
		"Request/cancel":   models.StageCancelled,
		"Pending/deny":     models.StageDenied,
		"Pending/finalize": models.StageFinalized,
	}

	for _, stage := range stages {
		for _, action := range actions {
			key := fmt.Sprintf("%s/%s", stage, action)
			next, ok := nextStage(stage, action)
			if want, legal := allowed[key]; legal {
				require.True(t, ok, key)
				require.Equal(t, want, next, key)
			} else {
				require.False(t, ok, key)
			}
		}
	}
}

func TestSubmitCreatesAndSyncs(t *testing.T) {
	f := newWorkflowFixture(false)

	result, err := f.svc.Submit(context.Background(), "acct-1", "acct-1")
	require.NoError(t, err)
	require.Equal(t, models.StageRequest, result.Stage)
	require.Equal(t, "Request submitted. Copied 2 record(s).", result.Message)
	require.Equal(t, 1, f.syncer.calls)
	require.Contains(t, f.audit.actions, models.AuditActionSubmit)
}

func TestSubmitRejectsSecondActiveSubmission(t *testing.T) {
	f := newWorkflowFixture(false)
	f.seed("acct-1", models.StagePending)

	_, err := f.svc.Submit(context.Background(), "acct-1", "acct-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSubmitConflictWhenInsertLosesRace(t *testing.T) {
	f := newWorkflowFixture(false)
	// The applicant has no visible active submission, but a concurrent
	// submit wins the insert: the unique index rejects this one.
	f.submissions.createErr = repository.ErrActiveSubmissionExists

	_, err := f.svc.Submit(context.Background(), "acct-1", "acct-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	require.Zero(t, f.syncer.calls)
}

func TestSubmitSurvivesEmptySource(t *testing.T) {
	f := newWorkflowFixture(false)
	f.syncer.result = dto.SyncResult{Empty: true}

	result, err := f.svc.Submit(context.Background(), "acct-1", "acct-1")
	require.NoError(t, err)
	require.Equal(t, "Request submitted. No extracted transcript rows were found.", result.Message)
}

func TestSubmitSurvivesUpstreamFailure(t *testing.T) {
	f := newWorkflowFixture(false)
	f.syncer.err = appErrors.ErrUpstreamUnavailable

	result, err := f.svc.Submit(context.Background(), "acct-1", "acct-1")
	require.NoError(t, err)
	require.Equal(t, models.StageRequest, result.Stage)
	// The submission stands; the copy is retried through the sync endpoint.
	_, getErr := f.submissions.GetActiveByApplicant(context.Background(), "acct-1")
	require.NoError(t, getErr)
}

func TestAcceptMovesRequestToPending(t *testing.T) {
	f := newWorkflowFixture(false)
	f.seed("acct-1", models.StageRequest)

	result, err := f.svc.Accept(context.Background(), "acct-1", "staff-1")
	require.NoError(t, err)
	require.Equal(t, models.StagePending, result.Stage)
}

func TestAcceptTwiceIsInvalidTransition(t *testing.T) {
	f := newWorkflowFixture(false)
	f.seed("acct-1", models.StageRequest)

	_, err := f.svc.Accept(context.Background(), "acct-1", "staff-1")
	require.NoError(t, err)

	_, err = f.svc.Accept(context.Background(), "acct-1", "staff-2")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestConcurrentDecisionsResolveToOneWinner(t *testing.T) {
	f := newWorkflowFixture(false)
	sub := f.seed("acct-1", models.StageRequest)

	// A second reviewer snapshots the submission, then loses the stage
	// flip to the first decision.
	_, err := f.svc.Accept(context.Background(), "acct-1", "staff-1")
	require.NoError(t, err)

	// Replay a deny that was computed against the stale Request stage.
	stale := &models.Submission{ID: sub.ID, ApplicantID: "acct-1", Stage: models.StageRequest}
	err = f.svc.transition(context.Background(), stale, models.ActionCancel)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestDenyCascadesAndReportsCount(t *testing.T) {
	f := newWorkflowFixture(false)
	f.seed("acct-1", models.StagePending,
		models.SubjectEntry{SubjectCode: "CS101"},
		models.SubjectEntry{SubjectCode: "CS102"},
	)

	result, err := f.svc.Deny(context.Background(), "acct-1", "staff-1")
	require.NoError(t, err)
	require.Equal(t, models.StageDenied, result.Stage)
	require.Equal(t, "Request denied. Removed 2 record(s).", result.Message)

	_, err = f.submissions.GetActiveByApplicant(context.Background(), "acct-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCancelRequiresOwner(t *testing.T) {
	f := newWorkflowFixture(false)
	f.seed("acct-1", models.StageRequest)

	_, err := f.svc.Cancel(context.Background(), "acct-1", "staff-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	result, err := f.svc.Cancel(context.Background(), "acct-1", "acct-1")
	require.NoError(t, err)
	require.Equal(t, models.StageCancelled, result.Stage)
}

func TestCancelAfterAcceptIsInvalid(t *testing.T) {
	f := newWorkflowFixture(false)
	f.seed("acct-1", models.StagePending)

	_, err := f.svc.Cancel(context.Background(), "acct-1", "acct-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestFinalizeFreezesSummary(t *testing.T) {
	f := newWorkflowFixture(false)
	sub := f.seed("acct-1", models.StagePending,
		models.SubjectEntry{SubjectCode: "CS101", Units: "3", Remark: models.RemarkPassed, CreditEvaluation: models.EvaluationAccepted},
		models.SubjectEntry{SubjectCode: "CS102", Units: "20", Remark: models.RemarkFailed, CreditEvaluation: models.EvaluationDenied},
	)

	result, err := f.svc.Finalize(context.Background(), "acct-1", "staff-1")
	require.NoError(t, err)
	require.Equal(t, models.StageFinalized, result.Stage)
	require.Zero(t, result.UnreviewedEntries)

	summary := f.summaries.summaries[sub.ID]
	require.NotNil(t, summary)
	require.Equal(t, 2, summary.EntryCount)

	frozen := f.summaries.frozen[sub.ID]
	require.Len(t, frozen, 2)
	require.Equal(t, models.EvaluationAccepted, frozen[0].CreditEvaluation)
	require.Equal(t, models.EvaluationDenied, frozen[1].CreditEvaluation)
}

func TestFinalizeFreezesEntriesAsOfCommit(t *testing.T) {
	f := newWorkflowFixture(false)
	sub := f.seed("acct-1", models.StagePending,
		models.SubjectEntry{SubjectCode: "CS101", CreditEvaluation: models.EvaluationVoid},
	)
	// An evaluation edit lands after the unreviewed-count read but
	// before the finalize transaction commits; the frozen copy must
	// carry it.
	f.entries.onList = func() {
		f.entries.entries[sub.ID][0].CreditEvaluation = models.EvaluationAccepted
	}

	_, err := f.svc.Finalize(context.Background(), "acct-1", "staff-1")
	require.NoError(t, err)

	frozen := f.summaries.frozen[sub.ID]
	require.Len(t, frozen, 1)
	require.Equal(t, models.EvaluationAccepted, frozen[0].CreditEvaluation)
}

func TestFinalizeReportsUnreviewedEntries(t *testing.T) {
	f := newWorkflowFixture(false)
	f.seed("acct-1", models.StagePending,
		models.SubjectEntry{SubjectCode: "CS101", CreditEvaluation: models.EvaluationAccepted},
		models.SubjectEntry{SubjectCode: "CS102", CreditEvaluation: models.EvaluationVoid},
	)

	result, err := f.svc.Finalize(context.Background(), "acct-1", "staff-1")
	require.NoError(t, err)
	require.Equal(t, 1, result.UnreviewedEntries)
}

func TestStrictFinalizeBlocksUnreviewedEntries(t *testing.T) {
	f := newWorkflowFixture(true)
	f.seed("acct-1", models.StagePending,
		models.SubjectEntry{SubjectCode: "CS101", CreditEvaluation: models.EvaluationVoid},
	)

	_, err := f.svc.Finalize(context.Background(), "acct-1", "staff-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestFinalizeBeforeAcceptIsInvalid(t *testing.T) {
	f := newWorkflowFixture(false)
	f.seed("acct-1", models.StageRequest)

	_, err := f.svc.Finalize(context.Background(), "acct-1", "staff-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestFinalizeLosingTheRaceIsInvalidTransition(t *testing.T) {
	f := newWorkflowFixture(false)
	f.seed("acct-1", models.StagePending)
	f.summaries.err = sql.ErrNoRows

	_, err := f.svc.Finalize(context.Background(), "acct-1", "staff-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestResyncRequiresActiveSubmission(t *testing.T) {
	f := newWorkflowFixture(false)

	_, err := f.svc.Resync(context.Background(), "acct-1", "staff-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	f.seed("acct-1", models.StageRequest)
	result, err := f.svc.Resync(context.Background(), "acct-1", "staff-1")
	require.NoError(t, err)
	require.Equal(t, 2, result.Copied)
}

func TestFullLifecycle(t *testing.T) {
	f := newWorkflowFixture(false)
	f.syncer.result = dto.SyncResult{Copied: 2}

	submitted, err := f.svc.Submit(context.Background(), "acct-9", "acct-9")
	require.NoError(t, err)

	f.entries.entries[submitted.SubmissionID] = []models.SubjectEntry{
		{SubmissionID: submitted.SubmissionID, SubjectCode: "CS101", Units: "3", Remark: models.RemarkPassed, CreditEvaluation: models.EvaluationAccepted},
		{SubmissionID: submitted.SubmissionID, SubjectCode: "CS102", Units: "20", Remark: models.RemarkFailed, CreditEvaluation: models.EvaluationDenied},
	}

	_, err = f.svc.Accept(context.Background(), "acct-9", "staff-1")
	require.NoError(t, err)

	final, err := f.svc.Finalize(context.Background(), "acct-9", "staff-1")
	require.NoError(t, err)
	require.Equal(t, models.StageFinalized, final.Stage)
	require.Equal(t, 2, f.summaries.summaries[submitted.SubmissionID].EntryCount)

	// Terminal stage: no further active submission, applicant may resubmit.
	_, err = f.submissions.GetActiveByApplicant(context.Background(), "acct-9")
	require.ErrorIs(t, err, sql.ErrNoRows)
	_, err = f.svc.Submit(context.Background(), "acct-9", "acct-9")
	require.NoError(t, err)
}
