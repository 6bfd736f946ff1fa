package models

import "time"

// Remark is the automatically computed pass/fail label for a subject entry,
// derived from its unit count at copy time.
type Remark string

const (
	RemarkPassed Remark = "Passed"
	RemarkFailed Remark = "Failed / Invalid Units"
)

// CreditEvaluation is the staff decision on whether a subject transfers for
// credit. Void means not yet reviewed.
type CreditEvaluation string

const (
	EvaluationVoid        CreditEvaluation = "Void"
	EvaluationAccepted    CreditEvaluation = "Accepted"
	EvaluationDenied      CreditEvaluation = "Denied"
	EvaluationInvestigate CreditEvaluation = "Investigate"
)

// Valid reports whether the value is one of the known evaluation statuses.
func (e CreditEvaluation) Valid() bool {
	switch e {
	case EvaluationVoid, EvaluationAccepted, EvaluationDenied, EvaluationInvestigate:
		return true
	}
	return false
}

// SubjectEntry is one row of a submission's transcript after comparison
// against the reference curriculum.
type SubjectEntry struct {
	ID                 string           `db:"id" json:"id"`
	SubmissionID       string           `db:"submission_id" json:"submission_id"`
	SubjectCode        string           `db:"subject_code" json:"subject_code"`
	SubjectDescription string           `db:"subject_description" json:"subject_description"`
	Units              string           `db:"units" json:"units"`
	FinalGrade         string           `db:"final_grade" json:"final_grade"`
	Remark             Remark           `db:"remark" json:"remark"`
	CreditEvaluation   CreditEvaluation `db:"credit_evaluation" json:"credit_evaluation"`
	Notes              string           `db:"notes" json:"notes"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
}

// CurriculumSubject is one row of the institution's reference curriculum.
type CurriculumSubject struct {
	ID          string `db:"id" json:"id"`
	SubjectCode string `db:"subject_code" json:"subject_code"`
	Units       string `db:"units" json:"units"`
	Description string `db:"description" json:"description"`
}
