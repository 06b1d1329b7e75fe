package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/parishhub/digitalschool/internal/enroll"
	"github.com/parishhub/digitalschool/internal/exam"
	"github.com/parishhub/digitalschool/internal/rbac"
)

// ProgressRecomputer is the slice of the enrollment tracker the attempt
// handlers need after a submission lands.
type ProgressRecomputer interface {
	AfterSubmission(ctx context.Context, userID, courseID string) (enroll.Enrollment, error)
}

// POST /exams/{examID}/attempts
// Idempotent when an in_progress attempt exists; otherwise policy-checked.
func CreateAttemptHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID := chi.URLParam(r, "examID")
		sub := rbac.SubjectFromContext(r.Context())
		if sub == "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		a, err := store.Start(r.Context(), examID, sub)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// PATCH /attempts/{attemptID}/responses  { "question_id": "...", "answer_index": 0 }
func SaveResponseHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		var req struct {
			QuestionID  string `json:"question_id"`
			AnswerIndex *int   `json:"answer_index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "bad json")
			return
		}
		if strings.TrimSpace(req.QuestionID) == "" || req.AnswerIndex == nil {
			badRequest(w, "question_id and answer_index required")
			return
		}
		if err := requireOwnAttempt(r, store, id); err != nil {
			writeError(w, err)
			return
		}
		a, err := store.SaveResponse(r.Context(), id, req.QuestionID, *req.AnswerIndex)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// POST /attempts/{attemptID}/submit
// Idempotent; kicks off progress recomputation for the submitter's
// enrollment. Recompute failure never unwinds the submission.
func SubmitAttemptHandler(store exam.Store, tracker ProgressRecomputer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		if err := requireOwnAttempt(r, store, id); err != nil {
			writeError(w, err)
			return
		}
		a, err := store.Submit(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if _, err := tracker.AfterSubmission(r.Context(), a.UserID, a.CourseID); err != nil &&
			!errors.Is(err, enroll.ErrEnrollmentNotFound) {
			log.Printf("api: progress recompute failed for attempt %s: %v", a.ID, err)
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// GET /attempts/{attemptID}
func GetAttemptHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		if err := requireOwnAttempt(r, store, id); err != nil {
			writeError(w, err)
			return
		}
		a, err := store.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// GET /attempts?exam_id=...&course_id=...&user_id=...&status=...&limit=50&offset=0
// Students are scoped to their own attempts; user_id is forced to subject.
func ListAttemptsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := rbac.RoleFromContext(r.Context())
		sub := rbac.SubjectFromContext(r.Context())
		if role == "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
		if role != "admin" && role != "teacher" {
			userID = sub
		}
		list, err := store.List(r.Context(), exam.ListOpts{
			ExamID:   strings.TrimSpace(r.URL.Query().Get("exam_id")),
			CourseID: strings.TrimSpace(r.URL.Query().Get("course_id")),
			UserID:   userID,
			Status:   strings.TrimSpace(r.URL.Query().Get("status")),
			Limit:    parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset:   parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// requireOwnAttempt lets teachers and admins through and binds students to
// attempts they started.
func requireOwnAttempt(r *http.Request, store exam.Store, attemptID string) error {
	role := rbac.RoleFromContext(r.Context())
	if role == "admin" || role == "teacher" {
		return nil
	}
	a, err := store.Get(r.Context(), attemptID)
	if err != nil {
		return err
	}
	if a.UserID != rbac.SubjectFromContext(r.Context()) {
		return exam.ErrAttemptNotFound // do not leak other learners' attempts
	}
	return nil
}
