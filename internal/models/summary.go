package models

import "time"

// FinalizedSummary is the immutable snapshot of a submission's entries taken
// at the moment of finalization. It exists if and only if the owning
// submission reached the Finalized stage.
type FinalizedSummary struct {
	SubmissionID string    `db:"submission_id" json:"submission_id"`
	ApplicantID  string    `db:"applicant_id" json:"applicant_id"`
	EntryCount   int       `db:"entry_count" json:"entry_count"`
	FinalizedAt  time.Time `db:"finalized_at" json:"finalized_at"`
}

// SummaryEntry is one frozen transcript row inside a FinalizedSummary.
// Never mutated after creation.
type SummaryEntry struct {
	ID                 string           `db:"id" json:"id"`
	SubmissionID       string           `db:"submission_id" json:"submission_id"`
	SubjectCode        string           `db:"subject_code" json:"subject_code"`
	SubjectDescription string           `db:"subject_description" json:"subject_description"`
	Units              string           `db:"units" json:"units"`
	FinalGrade         string           `db:"final_grade" json:"final_grade"`
	Remark             Remark           `db:"remark" json:"remark"`
	CreditEvaluation   CreditEvaluation `db:"credit_evaluation" json:"credit_evaluation"`
	Notes              string           `db:"notes" json:"notes"`
}
