package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wilsbb/tor-accreditation-api/internal/dto"
	"github.com/wilsbb/tor-accreditation-api/internal/models"
	appErrors "github.com/wilsbb/tor-accreditation-api/pkg/errors"
)

type reportSourceStub struct {
	report *dto.FinalizedReport
	err    error
}

func (s *reportSourceStub) FinalizedReport(ctx context.Context, submissionID string) (*dto.FinalizedReport, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.report, nil
}

func newReportStub() *reportSourceStub {
	return &reportSourceStub{report: &dto.FinalizedReport{
		Summary: models.FinalizedSummary{
			SubmissionID: "sub-1",
			ApplicantID:  "acct-1",
			EntryCount:   2,
			FinalizedAt:  time.Now().UTC(),
		},
		Entries: []models.SummaryEntry{
			{SubjectCode: "CS101", SubjectDescription: "Intro", Units: "3", FinalGrade: "1.5", Remark: models.RemarkPassed, CreditEvaluation: models.EvaluationAccepted},
			{SubjectCode: "CS102", SubjectDescription: "Data", Units: "20", FinalGrade: "2.0", Remark: models.RemarkFailed, CreditEvaluation: models.EvaluationDenied, Notes: "over the unit cap"},
		},
	}}
}

func TestExportServiceGeneratesCSV(t *testing.T) {
	svc := NewExportService(newReportStub(), nil, nil, nil)

	file, err := svc.Generate(context.Background(), "sub-1", ExportFormatCSV)
	require.NoError(t, err)
	require.Equal(t, "text/csv", file.ContentType)
	require.True(t, strings.HasPrefix(file.Filename, "accreditation-acct-1-"))
	require.True(t, strings.HasSuffix(file.Filename, ".csv"))

	body := string(file.Payload)
	require.Contains(t, body, "Subject Code")
	require.Contains(t, body, "CS101")
	require.Contains(t, body, "Failed / Invalid Units")
}

func TestExportServiceGeneratesPDF(t *testing.T) {
	svc := NewExportService(newReportStub(), nil, nil, nil)

	file, err := svc.Generate(context.Background(), "sub-1", ExportFormatPDF)
	require.NoError(t, err)
	require.Equal(t, "application/pdf", file.ContentType)
	require.True(t, strings.HasSuffix(file.Filename, ".pdf"))
	require.True(t, strings.HasPrefix(string(file.Payload), "%PDF"))
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(newReportStub(), nil, nil, nil)

	_, err := svc.Generate(context.Background(), "sub-1", ExportFormat("xlsx"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServicePropagatesMissingReport(t *testing.T) {
	svc := NewExportService(&reportSourceStub{err: appErrors.Clone(appErrors.ErrNotFound, "finalized summary not found")}, nil, nil, nil)

	_, err := svc.Generate(context.Background(), "missing", ExportFormatCSV)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
