package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/parishhub/digitalschool/internal/enroll"
	"github.com/parishhub/digitalschool/internal/rbac"
)

// CertificateRequester is the issuance surface the certificate endpoint uses.
type CertificateRequester interface {
	IssueIfEligible(ctx context.Context, enrollmentID string) (string, error)
}

// POST /enrollments  { "course_id": "..." }
// Idempotent: an existing enrollment for (subject, course) is returned as-is.
func EnrollHandler(tracker *enroll.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := rbac.SubjectFromContext(r.Context())
		var req struct {
			CourseID string `json:"course_id"`
			UserID   string `json:"user_id,omitempty"` // teacher/admin enroll-on-behalf
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "bad json")
			return
		}
		if strings.TrimSpace(req.CourseID) == "" {
			badRequest(w, "course_id required")
			return
		}
		userID := sub
		role := rbac.RoleFromContext(r.Context())
		if req.UserID != "" && (role == "teacher" || role == "admin") {
			userID = req.UserID
		}
		e, err := tracker.Enroll(r.Context(), userID, req.CourseID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// GET /enrollments/{enrollmentID}
func GetEnrollmentHandler(tracker *enroll.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := ownEnrollment(r, tracker)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// GET /enrollments/{enrollmentID}/gating
// Always returns a consistent locked/unlocked snapshot for a valid
// enrollment; draft exams stay blocking.
func GatingHandler(tracker *enroll.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := ownEnrollment(r, tracker)
		if err != nil {
			writeError(w, err)
			return
		}
		gates, err := tracker.Gating(r.Context(), e.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"enrollment_id":    e.ID,
			"status":           e.Status,
			"progress_percent": e.ProgressPercent,
			"sections":         gates,
		})
	}
}

// POST /enrollments/{enrollmentID}/withdraw
func WithdrawHandler(tracker *enroll.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := ownEnrollment(r, tracker)
		if err != nil {
			writeError(w, err)
			return
		}
		out, err := tracker.Withdraw(r.Context(), e.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /enrollments/{enrollmentID}/modules/{moduleID}/complete
func CompleteModuleHandler(tracker *enroll.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := ownEnrollment(r, tracker)
		if err != nil {
			writeError(w, err)
			return
		}
		out, err := tracker.CompleteModule(r.Context(), e.ID, chi.URLParam(r, "moduleID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /enrollments/{enrollmentID}/certificate
// Lazy idempotent issuance; repeated calls return the same URL.
func CertificateHandler(tracker *enroll.Tracker, issuer CertificateRequester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := ownEnrollment(r, tracker)
		if err != nil {
			writeError(w, err)
			return
		}
		url, err := issuer.IssueIfEligible(r.Context(), e.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
	}
}

// ownEnrollment loads the enrollment and binds students to their own rows.
func ownEnrollment(r *http.Request, tracker *enroll.Tracker) (enroll.Enrollment, error) {
	e, err := tracker.Get(r.Context(), chi.URLParam(r, "enrollmentID"))
	if err != nil {
		return enroll.Enrollment{}, err
	}
	role := rbac.RoleFromContext(r.Context())
	if role == "admin" || role == "teacher" {
		return e, nil
	}
	if e.UserID != rbac.SubjectFromContext(r.Context()) {
		return enroll.Enrollment{}, enroll.ErrEnrollmentNotFound
	}
	return e, nil
}
