package dto

import "github.com/wilsbb/tor-accreditation-api/internal/models"

// SubmitRequest creates a new accreditation submission for an applicant.
type SubmitRequest struct {
	ApplicantID string `json:"account_id" binding:"required"`
}

// ActionResult reports the outcome of a workflow action.
type ActionResult struct {
	ApplicantID  string       `json:"applicant_id"`
	SubmissionID string       `json:"submission_id"`
	Stage        models.Stage `json:"stage"`
	Message      string       `json:"message"`
	// UnreviewedEntries is populated on finalize when entries were still
	// Void and the strict policy is disabled.
	UnreviewedEntries int `json:"unreviewed_entries,omitempty"`
}

// SyncResult reports the outcome of copying OCR rows into the comparison
// table. Empty marks a source that yielded nothing to process; it is a valid
// no-op outcome, not an error.
type SyncResult struct {
	Copied  int  `json:"copied"`
	Skipped int  `json:"skipped"`
	Empty   bool `json:"empty"`
}

// UpdateEvaluationRequest sets the staff credit evaluation on one entry.
type UpdateEvaluationRequest struct {
	Status models.CreditEvaluation `json:"status" binding:"required"`
}

// UpdateNoteRequest sets free-text reviewer notes on one entry.
type UpdateNoteRequest struct {
	Note string `json:"note"`
}

// EntryQuery filters entry listings by evaluation status.
type EntryQuery struct {
	Status models.CreditEvaluation `form:"status"`
}
