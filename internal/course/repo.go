package course

import (
	"context"
	"errors"
)

var (
	ErrCourseNotFound = errors.New("course not found")
	ErrExamNotFound   = errors.New("exam not found")
)

// Store is the course structure store. The progression engine only reads it;
// PutCourse serves the (external) authoring surface and test seeding.
type Store interface {
	PutCourse(ctx context.Context, c Course) error

	// GetCourse returns the full ordered structure. Gating exams carry status
	// and policy but no questions.
	GetCourse(ctx context.Context, id string) (Course, error)

	// GetExam is learner-safe: questions without correct indexes.
	GetExam(ctx context.Context, id string) (Exam, error)

	// GetExamAdmin returns the full question bank, for snapshotting and grading.
	GetExamAdmin(ctx context.Context, id string) (Exam, error)
}
