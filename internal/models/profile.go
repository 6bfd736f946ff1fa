package models

// ApplicantProfile is identity metadata served by the external profile store.
// The core never mutates it.
type ApplicantProfile struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	SchoolName string `json:"school_name"`
}
