package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/wilsbb/tor-accreditation-api/internal/models"
)

func newEntryRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEntryRepositoryUpsertCountsInsertedAndSkipped(t *testing.T) {
	db, mock, cleanup := newEntryRepoMock(t)
	defer cleanup()

	repo := NewEntryRepository(db)
	mock.ExpectBegin()
	// First row lands, second hits the (submission_id, subject_code)
	// conflict and is left alone.
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subject_entries")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subject_entries")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	entries := []models.SubjectEntry{
		{SubmissionID: "sub-1", SubjectCode: "CS101", Units: "3", Remark: models.RemarkPassed},
		{SubmissionID: "sub-1", SubjectCode: "CS102", Units: "20", Remark: models.RemarkFailed},
	}
	outcome, err := repo.UpsertEntries(context.Background(), entries)
	require.NoError(t, err)
	require.Equal(t, 1, outcome.Inserted)
	require.Equal(t, 1, outcome.Skipped)
	require.NotEmpty(t, entries[0].ID)
	require.Equal(t, models.EvaluationVoid, entries[0].CreditEvaluation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepositoryUpsertEmptyBatch(t *testing.T) {
	db, mock, cleanup := newEntryRepoMock(t)
	defer cleanup()

	repo := NewEntryRepository(db)
	outcome, err := repo.UpsertEntries(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, outcome.Inserted)
	require.Zero(t, outcome.Skipped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepositoryUpsertRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newEntryRepoMock(t)
	defer cleanup()

	repo := NewEntryRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subject_entries")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := repo.UpsertEntries(context.Background(), []models.SubjectEntry{
		{SubmissionID: "sub-1", SubjectCode: "CS101"},
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepositoryListBySubmissionWithFilter(t *testing.T) {
	db, mock, cleanup := newEntryRepoMock(t)
	defer cleanup()

	repo := NewEntryRepository(db)
	rows := sqlmock.NewRows([]string{"id", "submission_id", "subject_code", "subject_description", "units", "final_grade", "remark", "credit_evaluation", "notes", "created_at", "updated_at"}).
		AddRow("e1", "sub-1", "CS101", "Intro", "3", "1.5", "Passed", "Accepted", "", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, submission_id, subject_code")).
		WithArgs("sub-1", models.EvaluationAccepted).
		WillReturnRows(rows)

	list, err := repo.ListBySubmission(context.Background(), "sub-1", models.EvaluationAccepted)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, models.EvaluationAccepted, list[0].CreditEvaluation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepositorySetEvaluation(t *testing.T) {
	db, mock, cleanup := newEntryRepoMock(t)
	defer cleanup()

	repo := NewEntryRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE subject_entries SET credit_evaluation")).
		WithArgs(models.EvaluationAccepted, sqlmock.AnyArg(), "e1", models.StageRequest, models.StagePending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetEvaluation(context.Background(), "e1", models.EvaluationAccepted))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE subject_entries SET credit_evaluation")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.SetEvaluation(context.Background(), "missing", models.EvaluationDenied)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepositorySetEvaluationGuardsOpenStage(t *testing.T) {
	db, mock, cleanup := newEntryRepoMock(t)
	defer cleanup()

	repo := NewEntryRepository(db)
	// The update itself carries the open-stage predicate; a row under a
	// finalized submission matches nothing.
	mock.ExpectExec(regexp.QuoteMeta("EXISTS (SELECT 1 FROM submissions s")).
		WithArgs(models.EvaluationAccepted, sqlmock.AnyArg(), "e1", models.StageRequest, models.StagePending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetEvaluation(context.Background(), "e1", models.EvaluationAccepted)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepositorySetNotesGuardsOpenStage(t *testing.T) {
	db, mock, cleanup := newEntryRepoMock(t)
	defer cleanup()

	repo := NewEntryRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("EXISTS (SELECT 1 FROM submissions s")).
		WithArgs("recheck", sqlmock.AnyArg(), "e1", models.StageRequest, models.StagePending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetNotes(context.Background(), "e1", "recheck")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepositoryDeleteBySubmission(t *testing.T) {
	db, mock, cleanup := newEntryRepoMock(t)
	defer cleanup()

	repo := NewEntryRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM subject_entries")).
		WithArgs("sub-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	removed, err := repo.DeleteBySubmission(context.Background(), "sub-1")
	require.NoError(t, err)
	require.EqualValues(t, 3, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}
