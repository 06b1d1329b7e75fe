package exam

import "github.com/parishhub/digitalschool/internal/course"

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSubmitted  Status = "submitted" // terminal
)

// Response is one recorded answer. Correct is authoritative only once the
// attempt is submitted; before that it is always false.
type Response struct {
	QuestionID  string `json:"question_id"`
	AnswerIndex int    `json:"answer_index"`
	Correct     bool   `json:"correct"`
}

// Attempt is one learner's pass through one exam. TotalQuestions and the
// question bank are snapshotted at start so later edits to the exam do not
// retroactively change an in-flight attempt.
type Attempt struct {
	ID       string `json:"id"`
	ExamID   string `json:"exam_id"`
	CourseID string `json:"course_id"`
	UserID   string `json:"user_id"`

	Status         Status     `json:"status"`
	Score          float64    `json:"score"` // 0-100, set on submission
	TotalQuestions int        `json:"total_questions"`
	Responses      []Response `json:"responses"` // ordered by snapshot question order

	StartedAt   int64  `json:"started_at"`
	SubmittedAt *int64 `json:"submitted_at,omitempty"`

	// snapshot carries correct indexes and is never serialized to clients.
	snapshot []course.Question
}

// Passed derives pass/fail; it is never stored.
func (a Attempt) Passed(threshold float64) bool {
	return a.Status == StatusSubmitted && a.Score >= threshold
}

func (a Attempt) answers() map[string]int {
	m := make(map[string]int, len(a.Responses))
	for _, r := range a.Responses {
		m[r.QuestionID] = r.AnswerIndex
	}
	return m
}
