package dto

import "github.com/wilsbb/tor-accreditation-api/internal/models"

// Progress step values mirror the applicant-facing tracker: 1 Request,
// 2 Pending, 3 Finalized. Zero means no active submission.
const (
	ProgressNone      = 0
	ProgressRequest   = 1
	ProgressPending   = 2
	ProgressFinalized = 3
)

// ProgressResponse reports the applicant's position in the workflow.
type ProgressResponse struct {
	ApplicantID string       `json:"applicant_id"`
	Step        int          `json:"step"`
	Stage       models.Stage `json:"stage,omitempty"`
}

// SubmissionDetails bundles a submission with its profile and entries for
// review screens and the tracker modal.
type SubmissionDetails struct {
	Submission models.Submission        `json:"submission"`
	Profile    *models.ApplicantProfile `json:"profile,omitempty"`
	Entries    []models.SubjectEntry    `json:"entries"`
}

// SubmissionListItem is one row in the staff dashboards, enriched with the
// applicant's profile when the profile store can supply it.
type SubmissionListItem struct {
	Submission models.Submission        `json:"submission"`
	Profile    *models.ApplicantProfile `json:"profile,omitempty"`
}

// FinalizedReport bundles a finalized summary with its frozen entries.
type FinalizedReport struct {
	Summary models.FinalizedSummary `json:"summary"`
	Entries []models.SummaryEntry   `json:"entries"`
}
