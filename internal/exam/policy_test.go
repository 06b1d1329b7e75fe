package exam_test

import (
	"errors"
	"testing"
	"time"

	"github.com/parishhub/digitalschool/internal/course"
	"github.com/parishhub/digitalschool/internal/exam"
)

func intp(v int) *int { return &v }

func submitted(startedAt, submittedAt time.Time) exam.Attempt {
	at := submittedAt.Unix()
	return exam.Attempt{Status: exam.StatusSubmitted, StartedAt: startedAt.Unix(), SubmittedAt: &at}
}

func TestEvaluateUnconstrained(t *testing.T) {
	now := time.Now()
	history := []exam.Attempt{submitted(now.Add(-time.Hour), now.Add(-time.Minute))}
	if err := exam.Evaluate(course.RetakePolicy{}, history, now); err != nil {
		t.Fatalf("nil policy must always allow: %v", err)
	}
}

func TestEvaluateMaxAttempts(t *testing.T) {
	now := time.Now()
	p := course.RetakePolicy{MaxAttempts: intp(2)}

	history := []exam.Attempt{submitted(now.Add(-2*time.Hour), now.Add(-90*time.Minute))}
	if err := exam.Evaluate(p, history, now); err != nil {
		t.Fatalf("second attempt should be allowed: %v", err)
	}

	history = append(history, submitted(now.Add(-time.Hour), now.Add(-30*time.Minute)))
	if err := exam.Evaluate(p, history, now); !errors.Is(err, exam.ErrAttemptLimitExceeded) {
		t.Fatalf("third attempt: want ErrAttemptLimitExceeded, got %v", err)
	}
}

func TestEvaluateMaxAttemptsCountsInProgress(t *testing.T) {
	now := time.Now()
	p := course.RetakePolicy{MaxAttempts: intp(1)}
	history := []exam.Attempt{{Status: exam.StatusInProgress, StartedAt: now.Add(-time.Minute).Unix()}}
	if err := exam.Evaluate(p, history, now); !errors.Is(err, exam.ErrAttemptLimitExceeded) {
		t.Fatalf("open attempt counts toward the limit, got %v", err)
	}
}

func TestEvaluateCooldown(t *testing.T) {
	now := time.Now()
	p := course.RetakePolicy{CooldownHours: intp(24)}
	submittedAt := now.Add(-time.Hour)
	history := []exam.Attempt{submitted(submittedAt.Add(-30*time.Minute), submittedAt)}

	err := exam.Evaluate(p, history, now)
	var cd *exam.CooldownError
	if !errors.As(err, &cd) {
		t.Fatalf("want CooldownError, got %v", err)
	}
	if !errors.Is(err, exam.ErrCooldownActive) {
		t.Fatalf("CooldownError must match ErrCooldownActive")
	}
	want := submittedAt.Add(24 * time.Hour)
	if !cd.RetryAt.Equal(time.Unix(want.Unix(), 0)) {
		t.Fatalf("retry at: want %v, got %v", want, cd.RetryAt)
	}

	// Window elapsed.
	if err := exam.Evaluate(p, history, submittedAt.Add(25*time.Hour)); err != nil {
		t.Fatalf("after the window: %v", err)
	}
}

func TestEvaluateCooldownFromOpenAttemptStart(t *testing.T) {
	now := time.Now()
	p := course.RetakePolicy{CooldownHours: intp(1)}
	history := []exam.Attempt{{Status: exam.StatusInProgress, StartedAt: now.Add(-10 * time.Minute).Unix()}}
	if err := exam.Evaluate(p, history, now); !errors.Is(err, exam.ErrCooldownActive) {
		t.Fatalf("open attempt blocks from its start time, got %v", err)
	}
}

func TestEvaluateLimitWinsOverCooldown(t *testing.T) {
	now := time.Now()
	p := course.RetakePolicy{MaxAttempts: intp(1), CooldownHours: intp(24)}
	history := []exam.Attempt{submitted(now.Add(-time.Hour), now.Add(-30*time.Minute))}
	if err := exam.Evaluate(p, history, now); !errors.Is(err, exam.ErrAttemptLimitExceeded) {
		t.Fatalf("limit check runs first, got %v", err)
	}
}
