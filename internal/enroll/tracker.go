package enroll

import (
	"context"
	"log"
	"time"

	"github.com/parishhub/digitalschool/internal/course"
)

// PassedSetReader supplies the learner's passed-exam set for a course. It is
// read fresh inside every derivation; the gating formula is order-independent
// given the full set, so concurrent submissions converge.
type PassedSetReader interface {
	PassedExamIDs(ctx context.Context, userID, courseID string) (map[string]bool, error)
}

// CertificateIssuer renders and records the completion certificate. Failures
// are best-effort: completion is the source of truth.
type CertificateIssuer interface {
	IssueIfEligible(ctx context.Context, enrollmentID string) (string, error)
}

// CompletionEvent is handed to the leaderboard sink when an enrollment
// completes. Fire-and-forget.
type CompletionEvent struct {
	EnrollmentID string `json:"enrollment_id"`
	UserID       string `json:"user_id"`
	CourseID     string `json:"course_id"`
	CompletedAt  int64  `json:"completed_at"`
}

type CompletionSink interface {
	CourseCompleted(ctx context.Context, ev CompletionEvent) error
}

// Tracker owns the enrollment lifecycle: idempotent enroll, fresh gating
// derivation, progress recomputation, one-way completion and its side
// effects, withdrawal.
type Tracker struct {
	store   Store
	courses course.Store
	passed  PassedSetReader

	certs CertificateIssuer // optional
	sink  CompletionSink    // optional

	now func() time.Time
}

func NewTracker(store Store, courses course.Store, passed PassedSetReader, certs CertificateIssuer, sink CompletionSink) *Tracker {
	return &Tracker{store: store, courses: courses, passed: passed, certs: certs, sink: sink, now: time.Now}
}

// Enroll is idempotent: an existing enrollment is returned unchanged.
func (t *Tracker) Enroll(ctx context.Context, userID, courseID string) (Enrollment, error) {
	if _, err := t.courses.GetCourse(ctx, courseID); err != nil {
		return Enrollment{}, err
	}
	return t.store.GetOrCreate(ctx, userID, courseID)
}

func (t *Tracker) Get(ctx context.Context, enrollmentID string) (Enrollment, error) {
	return t.store.Get(ctx, enrollmentID)
}

// Gating returns the per-section unlock snapshot. It never errors for a valid
// enrollment; draft exams simply stay blocking.
func (t *Tracker) Gating(ctx context.Context, enrollmentID string) ([]SectionGate, error) {
	e, err := t.store.Get(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	c, err := t.courses.GetCourse(ctx, e.CourseID)
	if err != nil {
		return nil, err
	}
	passed, err := t.passed.PassedExamIDs(ctx, e.UserID, e.CourseID)
	if err != nil {
		return nil, err
	}
	return Gates(c.Sections, passed), nil
}

// AfterSubmission recomputes progress for the submitter's enrollment in the
// exam's course. Missing enrollments are reported via ErrEnrollmentNotFound;
// callers that treat attempts without enrollment as benign may ignore it.
func (t *Tracker) AfterSubmission(ctx context.Context, userID, courseID string) (Enrollment, error) {
	e, err := t.store.GetByUserCourse(ctx, userID, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	return t.RecomputeProgress(ctx, e.ID)
}

// RecomputeProgress re-derives progress from the fresh passed set. Progress
// never decreases; completion is one-way and triggers the leaderboard event
// and eager certificate issuance, neither of which can roll it back.
func (t *Tracker) RecomputeProgress(ctx context.Context, enrollmentID string) (Enrollment, error) {
	e, err := t.store.Get(ctx, enrollmentID)
	if err != nil {
		return Enrollment{}, err
	}
	if e.Status != StatusActive {
		return e, nil
	}
	c, err := t.courses.GetCourse(ctx, e.CourseID)
	if err != nil {
		return Enrollment{}, err
	}
	passed, err := t.passed.PassedExamIDs(ctx, e.UserID, e.CourseID)
	if err != nil {
		return Enrollment{}, err
	}
	percent, complete := Progress(c.Sections, passed)

	if !complete {
		if err := t.store.SetProgress(ctx, enrollmentID, percent); err != nil {
			return Enrollment{}, err
		}
		return t.store.Get(ctx, enrollmentID)
	}

	transitioned, err := t.store.MarkCompleted(ctx, enrollmentID, percent)
	if err != nil {
		return Enrollment{}, err
	}
	if transitioned {
		t.fireCompletionEffects(ctx, e)
	}
	return t.store.Get(ctx, enrollmentID)
}

// Withdraw is idempotent; completed enrollments are returned untouched.
func (t *Tracker) Withdraw(ctx context.Context, enrollmentID string) (Enrollment, error) {
	return t.store.Withdraw(ctx, enrollmentID)
}

// CompleteModule marks one module done. Only modules in unlocked sections may
// be completed; re-completing is a no-op.
func (t *Tracker) CompleteModule(ctx context.Context, enrollmentID, moduleID string) (Enrollment, error) {
	e, err := t.store.Get(ctx, enrollmentID)
	if err != nil {
		return Enrollment{}, err
	}
	c, err := t.courses.GetCourse(ctx, e.CourseID)
	if err != nil {
		return Enrollment{}, err
	}
	passed, err := t.passed.PassedExamIDs(ctx, e.UserID, e.CourseID)
	if err != nil {
		return Enrollment{}, err
	}
	gates := Gates(c.Sections, passed)

	var owner *SectionGate
	for si := range c.Sections {
		for _, m := range c.Sections[si].Modules {
			if m.ID == moduleID {
				owner = &gates[si]
			}
		}
	}
	if owner == nil {
		return Enrollment{}, ErrUnknownModule
	}
	if !owner.Unlocked {
		return Enrollment{}, ErrModuleLocked
	}
	if e.ModuleProgress[moduleID] {
		return e, nil
	}
	e.ModuleProgress[moduleID] = true
	if err := t.store.SetModuleProgress(ctx, enrollmentID, e.ModuleProgress); err != nil {
		return Enrollment{}, err
	}
	return t.store.Get(ctx, enrollmentID)
}

func (t *Tracker) fireCompletionEffects(ctx context.Context, e Enrollment) {
	now := t.now().Unix()
	if t.sink != nil {
		ev := CompletionEvent{EnrollmentID: e.ID, UserID: e.UserID, CourseID: e.CourseID, CompletedAt: now}
		if err := t.sink.CourseCompleted(ctx, ev); err != nil {
			log.Printf("enroll: leaderboard notify failed for %s: %v", e.ID, err)
		}
	}
	if err := t.store.SetBadgeIssued(ctx, e.ID, now); err != nil {
		log.Printf("enroll: badge mark failed for %s: %v", e.ID, err)
	}
	if t.certs != nil {
		if _, err := t.certs.IssueIfEligible(ctx, e.ID); err != nil {
			log.Printf("enroll: eager certificate issue failed for %s: %v", e.ID, err)
		}
	}
}
