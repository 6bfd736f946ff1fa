package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wilsbb/tor-accreditation-api/internal/models"
	"github.com/wilsbb/tor-accreditation-api/internal/repository"
	"github.com/wilsbb/tor-accreditation-api/internal/upstream"
	appErrors "github.com/wilsbb/tor-accreditation-api/pkg/errors"
)

type transcriptSourceStub struct {
	rows []upstream.TranscriptRow
	err  error
}

func (s *transcriptSourceStub) FetchComparisonRows(ctx context.Context, applicantID string) ([]upstream.TranscriptRow, error) {
	return s.rows, s.err
}

type entryUpserterStub struct {
	received []models.SubjectEntry
	outcome  repository.UpsertOutcome
	err      error
}

func (s *entryUpserterStub) UpsertEntries(ctx context.Context, entries []models.SubjectEntry) (repository.UpsertOutcome, error) {
	s.received = append([]models.SubjectEntry(nil), entries...)
	if s.err != nil {
		return repository.UpsertOutcome{}, s.err
	}
	if s.outcome == (repository.UpsertOutcome{}) {
		return repository.UpsertOutcome{Inserted: len(entries)}, nil
	}
	return s.outcome, nil
}

func TestSyncCopiesAndClassifiesRows(t *testing.T) {
	source := &transcriptSourceStub{rows: []upstream.TranscriptRow{
		{SubjectCode: "CS101", SubjectDescription: "Intro to Computing", Units: "3", FinalGrade: "1.5"},
		{SubjectCode: "CS102", SubjectDescription: "Programming I", Units: "20", FinalGrade: "2.0"},
	}}
	store := &entryUpserterStub{}
	svc := NewSyncService(source, store, nil, DefaultMaxSubjectUnits, nil)

	result, err := svc.CopyIntoEvaluation(context.Background(), "sub-1", "acct-1")
	require.NoError(t, err)
	require.Equal(t, 2, result.Copied)
	require.False(t, result.Empty)

	require.Len(t, store.received, 2)
	require.Equal(t, models.RemarkPassed, store.received[0].Remark)
	require.Equal(t, models.RemarkFailed, store.received[1].Remark)
	for _, entry := range store.received {
		require.Equal(t, "sub-1", entry.SubmissionID)
		require.Equal(t, models.EvaluationVoid, entry.CreditEvaluation)
	}
}

func TestSyncEmptySourceIsNotAnError(t *testing.T) {
	svc := NewSyncService(&transcriptSourceStub{}, &entryUpserterStub{}, nil, DefaultMaxSubjectUnits, nil)

	result, err := svc.CopyIntoEvaluation(context.Background(), "sub-1", "acct-1")
	require.NoError(t, err)
	require.True(t, result.Empty)
	require.Zero(t, result.Copied)
}

func TestSyncSkipCountSurvivesRerun(t *testing.T) {
	source := &transcriptSourceStub{rows: []upstream.TranscriptRow{
		{SubjectCode: "CS101", Units: "3"},
		{SubjectCode: "CS102", Units: "4"},
	}}
	store := &entryUpserterStub{outcome: repository.UpsertOutcome{Inserted: 0, Skipped: 2}}
	svc := NewSyncService(source, store, nil, DefaultMaxSubjectUnits, nil)

	result, err := svc.CopyIntoEvaluation(context.Background(), "sub-1", "acct-1")
	require.NoError(t, err)
	require.Zero(t, result.Copied)
	require.Equal(t, 2, result.Skipped)
	require.False(t, result.Empty)
}

func TestSyncPropagatesUpstreamFailure(t *testing.T) {
	source := &transcriptSourceStub{err: appErrors.ErrUpstreamUnavailable}
	svc := NewSyncService(source, &entryUpserterStub{}, nil, DefaultMaxSubjectUnits, nil)

	_, err := svc.CopyIntoEvaluation(context.Background(), "sub-1", "acct-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrUpstreamUnavailable.Code, appErr.Code)
}
