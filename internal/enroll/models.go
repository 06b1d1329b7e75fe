package enroll

import "errors"

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed" // one-way
	StatusWithdrawn Status = "withdrawn"
)

var (
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrModuleLocked       = errors.New("module is locked")
	ErrUnknownModule      = errors.New("module not part of this course")
)

// Enrollment is one learner's relationship to one course. At most one exists
// per (user, course) pair.
type Enrollment struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	CourseID string `json:"course_id"`

	Status          Status          `json:"status"`
	ProgressPercent int             `json:"progress_percent"`
	ModuleProgress  map[string]bool `json:"module_progress"` // moduleID -> completed

	BadgeIssuedAt  *int64 `json:"badge_issued_at,omitempty"`
	CertificateURL string `json:"certificate_url,omitempty"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}
