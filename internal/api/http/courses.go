package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/parishhub/digitalschool/internal/course"
	"github.com/parishhub/digitalschool/internal/rbac"
)

// The authoring surface is plain CRUD owned elsewhere; these handlers exist
// so a deployment can manage structure and so tests can seed it. Payloads are
// validated at the boundary rather than trusted.

// PUT /courses/{courseID}
func PutCourseHandler(store course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c course.Course
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			badRequest(w, "bad json")
			return
		}
		c.ID = chi.URLParam(r, "courseID")
		if err := validateCourse(c); err != nil {
			badRequest(w, err.Error())
			return
		}
		if err := store.PutCourse(r.Context(), c); err != nil {
			writeError(w, err)
			return
		}
		out, err := store.GetCourse(r.Context(), c.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /courses/{courseID}
func GetCourseHandler(store course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := store.GetCourse(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

// GET /exams/{examID}
// Answer keys are stripped unless the caller may view them.
func GetExamHandler(store course.Store) http.HandlerFunc {
	checker := rbac.NewChecker(nil)
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "examID")
		role := rbac.RoleFromContext(r.Context())
		var (
			ex  course.Exam
			err error
		)
		if checker.Has(role, "exam:view-keys") {
			ex, err = store.GetExamAdmin(r.Context(), id)
		} else {
			ex, err = store.GetExam(r.Context(), id)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ex)
	}
}

func validateCourse(c course.Course) error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("title required")
	}
	for i, sec := range c.Sections {
		if strings.TrimSpace(sec.ID) == "" {
			return fmt.Errorf("section %d: id required", i)
		}
		if sec.Exam == nil && i < len(c.Sections)-1 {
			return fmt.Errorf("section %q: only the final section may omit its gating exam", sec.ID)
		}
		for _, m := range sec.Modules {
			if strings.TrimSpace(m.ID) == "" {
				return fmt.Errorf("section %q: module id required", sec.ID)
			}
		}
		if sec.Exam == nil {
			continue
		}
		ex := sec.Exam
		if strings.TrimSpace(ex.ID) == "" {
			return fmt.Errorf("section %q: exam id required", sec.ID)
		}
		switch ex.Status {
		case "", course.ExamDraft, course.ExamReady, course.ExamPublished:
		default:
			return fmt.Errorf("exam %q: unknown status %q", ex.ID, ex.Status)
		}
		if ex.PassThreshold < 0 || ex.PassThreshold > 100 {
			return fmt.Errorf("exam %q: pass_threshold must be within [0,100]", ex.ID)
		}
		if ex.Retake.MaxAttempts != nil && *ex.Retake.MaxAttempts <= 0 {
			return fmt.Errorf("exam %q: max_attempts must be positive", ex.ID)
		}
		if ex.Retake.CooldownHours != nil && *ex.Retake.CooldownHours <= 0 {
			return fmt.Errorf("exam %q: cooldown_hours must be positive", ex.ID)
		}
		for _, q := range ex.Questions {
			if strings.TrimSpace(q.ID) == "" {
				return fmt.Errorf("exam %q: question id required", ex.ID)
			}
			if len(q.Options) < 2 {
				return fmt.Errorf("question %q: at least two options required", q.ID)
			}
			if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
				return fmt.Errorf("question %q: correct_index out of range", q.ID)
			}
			if q.Weight < 0 {
				return fmt.Errorf("question %q: weight must be non-negative", q.ID)
			}
		}
	}
	return nil
}
