package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/wilsbb/tor-accreditation-api/internal/dto"
	"github.com/wilsbb/tor-accreditation-api/pkg/export"
	appErrors "github.com/wilsbb/tor-accreditation-api/pkg/errors"
)

// ExportFormat selects the rendered output type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type reportSource interface {
	FinalizedReport(ctx context.Context, submissionID string) (*dto.FinalizedReport, error)
}

// ExportFile is a rendered report ready to be streamed to the client.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders finalized accreditation summaries as CSV or PDF.
// Files are small enough to build in memory and stream inline.
type ExportService struct {
	reports reportSource
	csv     csvRenderer
	pdf     pdfRenderer
	logger  *zap.Logger
}

func NewExportService(reports reportSource, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{reports: reports, csv: csv, pdf: pdf, logger: logger}
}

// Generate renders the frozen snapshot of one finalized submission.
func (s *ExportService) Generate(ctx context.Context, submissionID string, format ExportFormat) (*ExportFile, error) {
	report, err := s.reports.FinalizedReport(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	dataset := buildReportDataset(report)
	title := fmt.Sprintf("Accreditation Summary %s", report.Summary.SubmissionID)

	var payload []byte
	var contentType string
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format: "+string(format))
	}
	if err != nil {
		s.logger.Error("export render failed",
			zap.String("submission_id", submissionID),
			zap.String("format", string(format)),
			zap.Error(err))
		return nil, appErrors.Internal(err)
	}

	filename := fmt.Sprintf("accreditation-%s-%s.%s",
		report.Summary.ApplicantID,
		time.Now().UTC().Format("20060102"),
		format)
	return &ExportFile{Filename: filename, ContentType: contentType, Payload: payload}, nil
}

func buildReportDataset(report *dto.FinalizedReport) export.Dataset {
	rows := make([][]string, 0, len(report.Entries))
	for _, e := range report.Entries {
		rows = append(rows, []string{
			e.SubjectCode,
			e.SubjectDescription,
			e.Units,
			e.FinalGrade,
			string(e.Remark),
			string(e.CreditEvaluation),
			e.Notes,
		})
	}
	rows = append(rows, []string{
		"", "", "", "", "", "Entries", strconv.Itoa(report.Summary.EntryCount),
	})
	return export.Dataset{
		Headers: []string{"Subject Code", "Description", "Units", "Final Grade", "Remark", "Evaluation", "Notes"},
		Rows:    rows,
	}
}
