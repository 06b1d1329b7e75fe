package enroll_test

import (
	"context"
	"errors"
	"testing"

	"github.com/parishhub/digitalschool/internal/course"
	"github.com/parishhub/digitalschool/internal/db"
	"github.com/parishhub/digitalschool/internal/enroll"
)

// fakePassed lets a test move the learner's passed set between recomputes.
type fakePassed struct{ set map[string]bool }

func (f *fakePassed) PassedExamIDs(context.Context, string, string) (map[string]bool, error) {
	return f.set, nil
}

type fakeIssuer struct {
	calls int
	url   string
	err   error
}

func (f *fakeIssuer) IssueIfEligible(context.Context, string) (string, error) {
	f.calls++
	return f.url, f.err
}

type fakeSink struct{ events []enroll.CompletionEvent }

func (f *fakeSink) CourseCompleted(_ context.Context, ev enroll.CompletionEvent) error {
	f.events = append(f.events, ev)
	return nil
}

func newTracker(t *testing.T, name string) (*enroll.Tracker, *enroll.SQLStore, *fakePassed, *fakeIssuer, *fakeSink) {
	t.Helper()
	dbh, err := db.Open(context.Background(), db.DriverSQLite,
		"file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })

	courses := course.NewSQLStore(dbh, "sqlite")
	if err := courses.PutCourse(context.Background(), course.Course{
		ID: "c1", Title: "Sacraments",
		Sections: []course.Section{
			{ID: "s1", Title: "One",
				Modules: []course.Module{{ID: "m1", Title: "Intro"}},
				Exam:    &course.Exam{ID: "e1", Title: "E1", Status: course.ExamPublished}},
			{ID: "s2", Title: "Two",
				Modules: []course.Module{{ID: "m2", Title: "Deeper"}},
				Exam:    &course.Exam{ID: "e2", Title: "E2", Status: course.ExamPublished}},
		},
	}); err != nil {
		t.Fatalf("seed course: %v", err)
	}

	store := enroll.NewSQLStore(dbh, "sqlite")
	passed := &fakePassed{set: map[string]bool{}}
	issuer := &fakeIssuer{url: "http://local/assets/certificates/x.html"}
	sink := &fakeSink{}
	return enroll.NewTracker(store, courses, passed, issuer, sink), store, passed, issuer, sink
}

func TestEnrollIdempotent(t *testing.T) {
	tr, _, _, _, _ := newTracker(t, "enroll_idem")
	ctx := context.Background()

	e1, err := tr.Enroll(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if e1.Status != enroll.StatusActive || e1.ProgressPercent != 0 {
		t.Fatalf("fresh enrollment wrong: %+v", e1)
	}
	e2, err := tr.Enroll(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("re-enroll: %v", err)
	}
	if e2.ID != e1.ID {
		t.Fatalf("re-enroll must return the same row: %s vs %s", e2.ID, e1.ID)
	}

	if _, err := tr.Enroll(ctx, "u1", "ghost"); !errors.Is(err, course.ErrCourseNotFound) {
		t.Fatalf("unknown course: want ErrCourseNotFound, got %v", err)
	}
}

func TestRecomputeProgressToCompletion(t *testing.T) {
	tr, _, passed, issuer, sink := newTracker(t, "recompute")
	ctx := context.Background()

	e, _ := tr.Enroll(ctx, "u1", "c1")

	passed.set = map[string]bool{"e1": true}
	got, err := tr.RecomputeProgress(ctx, e.ID)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if got.ProgressPercent != 50 || got.Status != enroll.StatusActive {
		t.Fatalf("halfway: %+v", got)
	}

	passed.set = map[string]bool{"e1": true, "e2": true}
	got, err = tr.RecomputeProgress(ctx, e.ID)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if got.Status != enroll.StatusCompleted || got.ProgressPercent != 100 {
		t.Fatalf("completion: %+v", got)
	}
	if got.BadgeIssuedAt == nil {
		t.Fatalf("badge not marked on completion")
	}
	if issuer.calls != 1 {
		t.Fatalf("eager certificate: want 1 call, got %d", issuer.calls)
	}
	if len(sink.events) != 1 || sink.events[0].EnrollmentID != e.ID {
		t.Fatalf("completion event: %+v", sink.events)
	}

	// Completion effects fire exactly once.
	if _, err := tr.RecomputeProgress(ctx, e.ID); err != nil {
		t.Fatalf("recompute after completion: %v", err)
	}
	if issuer.calls != 1 || len(sink.events) != 1 {
		t.Fatalf("effects re-fired: issuer=%d events=%d", issuer.calls, len(sink.events))
	}
}

func TestProgressNeverDecreases(t *testing.T) {
	tr, _, passed, _, _ := newTracker(t, "monotone")
	ctx := context.Background()

	e, _ := tr.Enroll(ctx, "u1", "c1")
	passed.set = map[string]bool{"e1": true}
	if _, err := tr.RecomputeProgress(ctx, e.ID); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	// The passed set shrinking (threshold raised, exam republished) must not
	// pull recorded progress back.
	passed.set = map[string]bool{}
	got, err := tr.RecomputeProgress(ctx, e.ID)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if got.ProgressPercent != 50 {
		t.Fatalf("progress regressed: %+v", got)
	}
}

func TestWithdraw(t *testing.T) {
	tr, _, passed, _, _ := newTracker(t, "withdraw")
	ctx := context.Background()

	e, _ := tr.Enroll(ctx, "u1", "c1")
	got, err := tr.Withdraw(ctx, e.ID)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got.Status != enroll.StatusWithdrawn {
		t.Fatalf("want withdrawn, got %+v", got)
	}
	// Idempotent.
	if got, err = tr.Withdraw(ctx, e.ID); err != nil || got.Status != enroll.StatusWithdrawn {
		t.Fatalf("re-withdraw: %+v, %v", got, err)
	}
	// Withdrawn enrollments no longer accrue progress.
	passed.set = map[string]bool{"e1": true}
	if got, err = tr.RecomputeProgress(ctx, e.ID); err != nil || got.ProgressPercent != 0 {
		t.Fatalf("withdrawn enrollment moved: %+v, %v", got, err)
	}
}

func TestWithdrawLeavesCompletedAlone(t *testing.T) {
	tr, _, passed, _, _ := newTracker(t, "withdraw_completed")
	ctx := context.Background()

	e, _ := tr.Enroll(ctx, "u1", "c1")
	passed.set = map[string]bool{"e1": true, "e2": true}
	if _, err := tr.RecomputeProgress(ctx, e.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, err := tr.Withdraw(ctx, e.ID)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got.Status != enroll.StatusCompleted {
		t.Fatalf("completed is terminal: %+v", got)
	}
}

func TestCompleteModule(t *testing.T) {
	tr, _, passed, _, _ := newTracker(t, "complete_module")
	ctx := context.Background()

	e, _ := tr.Enroll(ctx, "u1", "c1")

	got, err := tr.CompleteModule(ctx, e.ID, "m1")
	if err != nil {
		t.Fatalf("complete m1: %v", err)
	}
	if !got.ModuleProgress["m1"] {
		t.Fatalf("m1 not recorded: %+v", got.ModuleProgress)
	}
	// Re-completing is a no-op.
	if _, err := tr.CompleteModule(ctx, e.ID, "m1"); err != nil {
		t.Fatalf("re-complete: %v", err)
	}

	// m2 sits behind e1's gate.
	if _, err := tr.CompleteModule(ctx, e.ID, "m2"); !errors.Is(err, enroll.ErrModuleLocked) {
		t.Fatalf("want ErrModuleLocked, got %v", err)
	}
	passed.set = map[string]bool{"e1": true}
	if _, err := tr.CompleteModule(ctx, e.ID, "m2"); err != nil {
		t.Fatalf("unlocked m2: %v", err)
	}

	if _, err := tr.CompleteModule(ctx, e.ID, "ghost"); !errors.Is(err, enroll.ErrUnknownModule) {
		t.Fatalf("want ErrUnknownModule, got %v", err)
	}
}

func TestAfterSubmissionWithoutEnrollment(t *testing.T) {
	tr, _, _, _, _ := newTracker(t, "after_submission")
	if _, err := tr.AfterSubmission(context.Background(), "stranger", "c1"); !errors.Is(err, enroll.ErrEnrollmentNotFound) {
		t.Fatalf("want ErrEnrollmentNotFound, got %v", err)
	}
}
