package exam

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrExamNotPublished        = errors.New("exam is not published")
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")
	ErrAttemptExpired          = errors.New("attempt time limit elapsed")
	ErrAttemptLimitExceeded    = errors.New("attempt limit exceeded")
	ErrCooldownActive          = errors.New("retake cooldown active")
	ErrUnknownQuestion         = errors.New("question not part of this attempt")
	ErrAnswerOutOfRange        = errors.New("answer index out of range")
)

// CooldownError carries the earliest timestamp at which a retake becomes
// possible. errors.Is(err, ErrCooldownActive) matches it.
type CooldownError struct {
	RetryAt time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("retake cooldown active until %s", e.RetryAt.UTC().Format(time.RFC3339))
}

func (e *CooldownError) Is(target error) bool { return target == ErrCooldownActive }
