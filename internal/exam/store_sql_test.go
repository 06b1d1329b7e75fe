package exam

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/parishhub/digitalschool/internal/course"
	"github.com/parishhub/digitalschool/internal/db"
	"github.com/parishhub/digitalschool/internal/grading"
)

func testStores(t *testing.T, name string) (*course.SQLStore, *SQLStore) {
	t.Helper()
	dbh, err := db.Open(context.Background(), db.DriverSQLite,
		"file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	courses := course.NewSQLStore(dbh, "sqlite")
	return courses, NewSQLStore(dbh, "sqlite", courses, grading.NewChoiceGrader(), 70)
}

func seedCourse(t *testing.T, courses *course.SQLStore, retake course.RetakePolicy, timeLimitSec int) {
	t.Helper()
	err := courses.PutCourse(context.Background(), course.Course{
		ID:    "c1",
		Title: "Catechism Basics",
		Sections: []course.Section{
			{ID: "s1", Title: "Foundations", Exam: &course.Exam{
				ID:           "e1",
				Title:        "Foundations Exam",
				Status:       course.ExamPublished,
				TimeLimitSec: timeLimitSec,
				Retake:       retake,
				Questions: []course.Question{
					{ID: "q1", Prompt: "?", Options: []string{"a", "b"}, CorrectIndex: 0},
					{ID: "q2", Prompt: "?", Options: []string{"a", "b"}, CorrectIndex: 1},
					{ID: "q3", Prompt: "?", Options: []string{"a", "b", "c"}, CorrectIndex: 2, Weight: 2},
				},
			}},
		},
	})
	if err != nil {
		t.Fatalf("seed course: %v", err)
	}
}

func TestStartIdempotent(t *testing.T) {
	courses, store := testStores(t, "start_idem")
	seedCourse(t, courses, course.RetakePolicy{}, 0)
	ctx := context.Background()

	a1, err := store.Start(ctx, "e1", "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if a1.Status != StatusInProgress || a1.TotalQuestions != 3 {
		t.Fatalf("unexpected attempt: %+v", a1)
	}
	a2, err := store.Start(ctx, "e1", "u1")
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if a2.ID != a1.ID {
		t.Fatalf("second start must return the open attempt: %s vs %s", a2.ID, a1.ID)
	}
}

func TestStartUnpublished(t *testing.T) {
	courses, store := testStores(t, "start_draft")
	err := courses.PutCourse(context.Background(), course.Course{
		ID: "c1", Title: "Draft Course",
		Sections: []course.Section{
			{ID: "s1", Title: "Only", Exam: &course.Exam{
				ID: "e1", Title: "Draft Exam", Status: course.ExamDraft,
				Questions: []course.Question{{ID: "q1", Options: []string{"a", "b"}, CorrectIndex: 0}},
			}},
		},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.Start(context.Background(), "e1", "u1"); !errors.Is(err, ErrExamNotPublished) {
		t.Fatalf("want ErrExamNotPublished, got %v", err)
	}
}

func TestSaveAndSubmit(t *testing.T) {
	courses, store := testStores(t, "save_submit")
	seedCourse(t, courses, course.RetakePolicy{}, 0)
	ctx := context.Background()

	a, err := store.Start(ctx, "e1", "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := store.SaveResponse(ctx, a.ID, "q1", 0); err != nil { // right, weight 1
		t.Fatalf("save q1: %v", err)
	}
	if _, err := store.SaveResponse(ctx, a.ID, "q3", 2); err != nil { // right, weight 2
		t.Fatalf("save q3: %v", err)
	}
	// q2 left unanswered and counts against the score.

	got, err := store.Submit(ctx, a.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.Status != StatusSubmitted || got.SubmittedAt == nil {
		t.Fatalf("not submitted: %+v", got)
	}
	if got.Score != 75 { // 3 of 4 weighted points
		t.Fatalf("want score 75, got %v", got.Score)
	}
	if !got.Passed(70) || got.Passed(80) {
		t.Fatalf("pass derivation wrong for score %v", got.Score)
	}
	for _, r := range got.Responses {
		if !r.Correct {
			t.Fatalf("recorded answers were correct: %+v", got.Responses)
		}
	}
}

func TestSaveResponseRevision(t *testing.T) {
	courses, store := testStores(t, "save_revise")
	seedCourse(t, courses, course.RetakePolicy{}, 0)
	ctx := context.Background()

	a, _ := store.Start(ctx, "e1", "u1")
	if _, err := store.SaveResponse(ctx, a.ID, "q1", 1); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.SaveResponse(ctx, a.ID, "q1", 0)
	if err != nil {
		t.Fatalf("revise: %v", err)
	}
	if len(got.Responses) != 1 || got.Responses[0].AnswerIndex != 0 {
		t.Fatalf("revision must replace, not append: %+v", got.Responses)
	}
}

func TestSaveResponseValidation(t *testing.T) {
	courses, store := testStores(t, "save_validate")
	seedCourse(t, courses, course.RetakePolicy{}, 0)
	ctx := context.Background()

	a, _ := store.Start(ctx, "e1", "u1")
	if _, err := store.SaveResponse(ctx, a.ID, "nope", 0); !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("want ErrUnknownQuestion, got %v", err)
	}
	if _, err := store.SaveResponse(ctx, a.ID, "q1", 5); !errors.Is(err, ErrAnswerOutOfRange) {
		t.Fatalf("want ErrAnswerOutOfRange, got %v", err)
	}
}

func TestSubmitIdempotent(t *testing.T) {
	courses, store := testStores(t, "submit_idem")
	seedCourse(t, courses, course.RetakePolicy{}, 0)
	ctx := context.Background()

	a, _ := store.Start(ctx, "e1", "u1")
	if _, err := store.SaveResponse(ctx, a.ID, "q1", 0); err != nil {
		t.Fatalf("save: %v", err)
	}
	first, err := store.Submit(ctx, a.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	second, err := store.Submit(ctx, a.ID)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if second.Score != first.Score || *second.SubmittedAt != *first.SubmittedAt {
		t.Fatalf("resubmit changed the result: %+v vs %+v", second, first)
	}
	if _, err := store.SaveResponse(ctx, a.ID, "q2", 1); !errors.Is(err, ErrAttemptAlreadySubmitted) {
		t.Fatalf("save after submit: want ErrAttemptAlreadySubmitted, got %v", err)
	}
}

func TestRetakeLimitAcrossAttempts(t *testing.T) {
	courses, store := testStores(t, "retake_limit")
	one := 1
	seedCourse(t, courses, course.RetakePolicy{MaxAttempts: &one}, 0)
	ctx := context.Background()

	a, err := store.Start(ctx, "e1", "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := store.Submit(ctx, a.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := store.Start(ctx, "e1", "u1"); !errors.Is(err, ErrAttemptLimitExceeded) {
		t.Fatalf("want ErrAttemptLimitExceeded, got %v", err)
	}
	// Another learner is unaffected; the limit is per (user, exam).
	if _, err := store.Start(ctx, "e1", "u2"); err != nil {
		t.Fatalf("other learner: %v", err)
	}
}

func TestCooldownAfterSubmission(t *testing.T) {
	courses, store := testStores(t, "retake_cooldown")
	cool := 24
	seedCourse(t, courses, course.RetakePolicy{CooldownHours: &cool}, 0)
	ctx := context.Background()

	a, _ := store.Start(ctx, "e1", "u1")
	if _, err := store.Submit(ctx, a.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err := store.Start(ctx, "e1", "u1")
	var cd *CooldownError
	if !errors.As(err, &cd) {
		t.Fatalf("want CooldownError, got %v", err)
	}

	// The window elapses.
	store.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	if _, err := store.Start(ctx, "e1", "u1"); err != nil {
		t.Fatalf("after cooldown: %v", err)
	}
}

func TestResponsesRejectedAfterTimeLimit(t *testing.T) {
	courses, store := testStores(t, "time_limit")
	seedCourse(t, courses, course.RetakePolicy{}, 60)
	ctx := context.Background()

	a, _ := store.Start(ctx, "e1", "u1")
	if _, err := store.SaveResponse(ctx, a.ID, "q1", 0); err != nil {
		t.Fatalf("in-window save: %v", err)
	}

	store.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := store.SaveResponse(ctx, a.ID, "q2", 1); !errors.Is(err, ErrAttemptExpired) {
		t.Fatalf("want ErrAttemptExpired, got %v", err)
	}
	// Late submit is accepted and grades what was recorded.
	got, err := store.Submit(ctx, a.ID)
	if err != nil {
		t.Fatalf("late submit: %v", err)
	}
	if got.Score != 25 { // only q1 of the 4 weighted points
		t.Fatalf("want 25, got %v", got.Score)
	}
}

func TestSnapshotSurvivesBankEdits(t *testing.T) {
	courses, store := testStores(t, "snapshot")
	seedCourse(t, courses, course.RetakePolicy{}, 0)
	ctx := context.Background()

	a, _ := store.Start(ctx, "e1", "u1")

	// The author replaces the bank mid-attempt.
	err := courses.PutCourse(ctx, course.Course{
		ID: "c1", Title: "Catechism Basics",
		Sections: []course.Section{
			{ID: "s1", Title: "Foundations", Exam: &course.Exam{
				ID: "e1", Title: "Foundations Exam", Status: course.ExamPublished,
				Questions: []course.Question{
					{ID: "q9", Prompt: "?", Options: []string{"x", "y"}, CorrectIndex: 1},
				},
			}},
		},
	})
	if err != nil {
		t.Fatalf("edit course: %v", err)
	}

	// The open attempt still answers and grades against its snapshot.
	if _, err := store.SaveResponse(ctx, a.ID, "q1", 0); err != nil {
		t.Fatalf("save against snapshot: %v", err)
	}
	if _, err := store.SaveResponse(ctx, a.ID, "q9", 1); !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("new bank question must be unknown to the attempt, got %v", err)
	}
	got, err := store.Submit(ctx, a.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.TotalQuestions != 3 || got.Score != 25 {
		t.Fatalf("snapshot grading wrong: %+v", got)
	}
}

func TestPassedExamIDsResolvesThresholds(t *testing.T) {
	courses, store := testStores(t, "passed_set")
	// e1 falls back to the default threshold (70); e2 sets its own (50).
	err := courses.PutCourse(context.Background(), course.Course{
		ID: "c1", Title: "Two Gates",
		Sections: []course.Section{
			{ID: "s1", Title: "One", Exam: &course.Exam{
				ID: "e1", Title: "E1", Status: course.ExamPublished,
				Questions: []course.Question{
					{ID: "q1", Options: []string{"a", "b"}, CorrectIndex: 0},
					{ID: "q2", Options: []string{"a", "b"}, CorrectIndex: 0},
					{ID: "q3", Options: []string{"a", "b"}, CorrectIndex: 0},
				},
			}},
			{ID: "s2", Title: "Two", Exam: &course.Exam{
				ID: "e2", Title: "E2", Status: course.ExamPublished, PassThreshold: 50,
				Questions: []course.Question{
					{ID: "q1", Options: []string{"a", "b"}, CorrectIndex: 0},
					{ID: "q2", Options: []string{"a", "b"}, CorrectIndex: 0},
					{ID: "q3", Options: []string{"a", "b"}, CorrectIndex: 0},
				},
			}},
		},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	ctx := context.Background()

	// Score 67 on both: fails e1's default 70, clears e2's 50.
	for _, examID := range []string{"e1", "e2"} {
		a, err := store.Start(ctx, examID, "u1")
		if err != nil {
			t.Fatalf("start %s: %v", examID, err)
		}
		for _, q := range []string{"q1", "q2"} {
			if _, err := store.SaveResponse(ctx, a.ID, q, 0); err != nil {
				t.Fatalf("save: %v", err)
			}
		}
		if _, err := store.Submit(ctx, a.ID); err != nil {
			t.Fatalf("submit %s: %v", examID, err)
		}
	}

	passed, err := store.PassedExamIDs(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("passed set: %v", err)
	}
	if passed["e1"] || !passed["e2"] {
		t.Fatalf("threshold resolution wrong: %v", passed)
	}
}
