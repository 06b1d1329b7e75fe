package exam

import (
	"time"

	"github.com/parishhub/digitalschool/internal/course"
)

// Evaluate decides whether a new attempt may start under the exam's retake
// policy, given the learner's full attempt history for that exam ordered by
// started_at. Both limits are independently optional; both are scoped to one
// (user, exam) pair.
//
// The attempt-limit check counts attempts in any status and wins over the
// cooldown check. The cooldown clock runs from the most recent attempt's
// submission time, or its start time if it is still in progress (an open
// attempt blocks for the full window).
func Evaluate(p course.RetakePolicy, history []Attempt, now time.Time) error {
	if p.MaxAttempts != nil && len(history) >= *p.MaxAttempts {
		return ErrAttemptLimitExceeded
	}
	if p.CooldownHours == nil || len(history) == 0 {
		return nil
	}
	last := history[len(history)-1]
	ref := last.StartedAt
	if last.SubmittedAt != nil {
		ref = *last.SubmittedAt
	}
	retryAt := time.Unix(ref, 0).Add(time.Duration(*p.CooldownHours) * time.Hour)
	if now.Before(retryAt) {
		return &CooldownError{RetryAt: retryAt}
	}
	return nil
}
