package enroll

import "context"

// Store is the enrollment persistence boundary. Mutations carry their own
// guards so racing callers converge on one outcome.
type Store interface {
	// GetOrCreate is the idempotent enroll primitive: one row ever exists per
	// (user, course), whichever caller wins the race.
	GetOrCreate(ctx context.Context, userID, courseID string) (Enrollment, error)

	Get(ctx context.Context, id string) (Enrollment, error)
	GetByUserCourse(ctx context.Context, userID, courseID string) (Enrollment, error)

	// SetProgress raises progress_percent while the enrollment is active.
	// Writes that would lower it are dropped (monotone progress).
	SetProgress(ctx context.Context, id string, percent int) error

	// MarkCompleted performs the one-way active -> completed transition and
	// reports whether this call made it (false when already completed).
	MarkCompleted(ctx context.Context, id string, percent int) (bool, error)

	// Withdraw is idempotent; completed enrollments are left untouched.
	Withdraw(ctx context.Context, id string) (Enrollment, error)

	SetModuleProgress(ctx context.Context, id string, progress map[string]bool) error

	// ClaimCertificate atomically sets the certificate URL if none is
	// recorded and returns the canonical URL either way.
	ClaimCertificate(ctx context.Context, id, url string) (string, error)

	SetBadgeIssued(ctx context.Context, id string, at int64) error
}
