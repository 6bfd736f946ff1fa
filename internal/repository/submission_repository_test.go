package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/wilsbb/tor-accreditation-api/internal/models"
)

func newSubmissionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSubmissionRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submissions")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	submission := &models.Submission{ApplicantID: "acct-1"}
	require.NoError(t, repo.Create(context.Background(), submission))
	require.NotEmpty(t, submission.ID)
	require.Equal(t, models.StageRequest, submission.Stage)

	rows := sqlmock.NewRows([]string{"id", "applicant_id", "stage", "submitted_at", "updated_at"}).
		AddRow(submission.ID, "acct-1", "Request", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, applicant_id, stage")).
		WithArgs(submission.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, submission.ID, found.ID)
	require.Equal(t, models.StageRequest, found.Stage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryCreateMapsUniqueViolation(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	// The partial unique index on open submissions rejects a second
	// concurrent request for the same applicant.
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submissions")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Submission{ApplicantID: "acct-1"})
	require.ErrorIs(t, err, ErrActiveSubmissionExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryGetActiveByApplicant(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	rows := sqlmock.NewRows([]string{"id", "applicant_id", "stage", "submitted_at", "updated_at"}).
		AddRow("sub-1", "acct-1", "Pending", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, applicant_id, stage")).
		WithArgs("acct-1", models.StageRequest, models.StagePending).
		WillReturnRows(rows)

	active, err := repo.GetActiveByApplicant(context.Background(), "acct-1")
	require.NoError(t, err)
	require.Equal(t, models.StagePending, active.Stage)
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, applicant_id, stage")).
		WithArgs("acct-2", models.StageRequest, models.StagePending).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetActiveByApplicant(context.Background(), "acct-2")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSubmissionRepositoryListByStage(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	rows := sqlmock.NewRows([]string{"id", "applicant_id", "stage", "submitted_at", "updated_at"}).
		AddRow("sub-1", "acct-1", "Pending", time.Now(), time.Now()).
		AddRow("sub-2", "acct-2", "Pending", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, applicant_id, stage")).
		WithArgs(models.StagePending, 20, 0).
		WillReturnRows(rows)

	list, err := repo.ListByStage(context.Background(), models.StagePending, 20, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "sub-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryUpdateStage(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET stage")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStage(context.Background(), "sub-1", models.StageRequest, models.StagePending))

	// The guarded update matches zero rows when another action already
	// moved the submission.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET stage")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateStage(context.Background(), "sub-1", models.StageRequest, models.StagePending)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
