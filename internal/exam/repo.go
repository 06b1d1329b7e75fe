package exam

import "context"

type ListOpts struct {
	ExamID   string
	CourseID string
	UserID   string
	Status   string // optional: in_progress|submitted
	Limit    int
	Offset   int
}

// Store is the attempt state machine's persistence boundary.
type Store interface {
	// Start creates an in_progress attempt, or returns the existing one for
	// this (user, exam) pair. The retake policy is enforced before creation;
	// two concurrent calls never yield two in_progress attempts.
	Start(ctx context.Context, examID, userID string) (Attempt, error)

	// SaveResponse upserts a single answer while the attempt is in progress
	// and inside the exam's time limit.
	SaveResponse(ctx context.Context, attemptID, questionID string, answerIndex int) (Attempt, error)

	// Submit transitions to submitted and scores the attempt against its
	// question-bank snapshot. Submitting a submitted attempt is a no-op
	// returning the existing result.
	Submit(ctx context.Context, attemptID string) (Attempt, error)

	Get(ctx context.Context, attemptID string) (Attempt, error)
	List(ctx context.Context, opts ListOpts) ([]Attempt, error)

	// PassedExamIDs returns the set of exams in a course the learner has a
	// passing submitted attempt for, resolving each exam's threshold.
	PassedExamIDs(ctx context.Context, userID, courseID string) (map[string]bool, error)
}
