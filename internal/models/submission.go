package models

import "time"

// Stage represents the coarse-grained lifecycle stage of a submission.
type Stage string

const (
	StageRequest   Stage = "Request"
	StagePending   Stage = "Pending"
	StageDenied    Stage = "Denied"
	StageCancelled Stage = "Cancelled"
	StageFinalized Stage = "Finalized"
)

// Terminal reports whether the stage admits no further transitions.
func (s Stage) Terminal() bool {
	switch s {
	case StageDenied, StageCancelled, StageFinalized:
		return true
	}
	return false
}

// Valid reports whether the value is one of the known stages.
func (s Stage) Valid() bool {
	switch s {
	case StageRequest, StagePending, StageDenied, StageCancelled, StageFinalized:
		return true
	}
	return false
}

// Action enumerates workflow intents applied to a submission.
type Action string

const (
	ActionSubmit   Action = "submit"
	ActionAccept   Action = "accept"
	ActionDeny     Action = "deny"
	ActionCancel   Action = "cancel"
	ActionFinalize Action = "finalize"
	ActionSync     Action = "sync"
)

// Submission is one accreditation attempt by one applicant.
type Submission struct {
	ID          string    `db:"id" json:"id"`
	ApplicantID string    `db:"applicant_id" json:"applicant_id"`
	Stage       Stage     `db:"stage" json:"stage"`
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
