package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/parishhub/digitalschool/internal/certificate"
	"github.com/parishhub/digitalschool/internal/course"
	"github.com/parishhub/digitalschool/internal/enroll"
	"github.com/parishhub/digitalschool/internal/exam"
)

// errorBody is the single error contract: a stable reason code plus a human
// message, and retry_at for cooldown denials.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	RetryAt string `json:"retry_at,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var cd *exam.CooldownError
	switch {
	case errors.As(err, &cd):
		writeJSON(w, http.StatusTooManyRequests, errorBody{
			Error:   "CooldownActive",
			Message: err.Error(),
			RetryAt: cd.RetryAt.UTC().Format(time.RFC3339),
		})
	case errors.Is(err, exam.ErrAttemptLimitExceeded):
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "AttemptLimitExceeded", Message: err.Error()})
	case errors.Is(err, exam.ErrExamNotPublished):
		writeJSON(w, http.StatusConflict, errorBody{Error: "ExamNotPublished", Message: err.Error()})
	case errors.Is(err, exam.ErrAttemptAlreadySubmitted):
		writeJSON(w, http.StatusConflict, errorBody{Error: "AttemptAlreadySubmitted", Message: err.Error()})
	case errors.Is(err, exam.ErrAttemptExpired):
		writeJSON(w, http.StatusConflict, errorBody{Error: "AttemptExpired", Message: err.Error()})
	case errors.Is(err, certificate.ErrCourseNotCompleted):
		writeJSON(w, http.StatusConflict, errorBody{Error: "CourseNotCompleted", Message: err.Error()})
	case errors.Is(err, enroll.ErrModuleLocked):
		writeJSON(w, http.StatusConflict, errorBody{Error: "ModuleLocked", Message: err.Error()})
	case errors.Is(err, exam.ErrUnknownQuestion),
		errors.Is(err, exam.ErrAnswerOutOfRange),
		errors.Is(err, enroll.ErrUnknownModule):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "ValidationError", Message: err.Error()})
	case errors.Is(err, exam.ErrAttemptNotFound),
		errors.Is(err, enroll.ErrEnrollmentNotFound),
		errors.Is(err, course.ErrCourseNotFound),
		errors.Is(err, course.ErrExamNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "NotFound", Message: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "ValidationError", Message: msg})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
