package certificate

import (
	"context"
	"errors"
	"time"

	"github.com/parishhub/digitalschool/internal/course"
	"github.com/parishhub/digitalschool/internal/enroll"
)

var ErrCourseNotCompleted = errors.New("course not completed")

// Data is everything a renderer needs. Branding comes from the course and is
// opaque to the issuer.
type Data struct {
	EnrollmentID string
	LearnerName  string
	CourseTitle  string
	Branding     course.Branding
	CompletedAt  time.Time
}

// Renderer produces a durable artifact and returns its URL. Renders must be
// deterministic per enrollment (same key on retry) so concurrent issuance
// cannot produce two artifacts.
type Renderer interface {
	Render(ctx context.Context, d Data) (string, error)
}

// Store is the slice of enrollment persistence the issuer needs.
type Store interface {
	Get(ctx context.Context, enrollmentID string) (enroll.Enrollment, error)
	ClaimCertificate(ctx context.Context, enrollmentID, url string) (string, error)
}

type CourseReader interface {
	GetCourse(ctx context.Context, id string) (course.Course, error)
}

// NameResolver maps a user id to a display name for the artifact. Optional;
// the user id is used verbatim when nil or on lookup failure.
type NameResolver func(ctx context.Context, userID string) (string, error)

type Issuer struct {
	store   Store
	courses CourseReader
	render  Renderer
	names   NameResolver
}

func NewIssuer(store Store, courses CourseReader, render Renderer, names NameResolver) *Issuer {
	return &Issuer{store: store, courses: courses, render: render, names: names}
}

// IssueIfEligible issues the enrollment's certificate at most once. An
// already-recorded URL is returned unchanged; a racing issue converges on the
// first claimed URL via the store's conditional write.
func (i *Issuer) IssueIfEligible(ctx context.Context, enrollmentID string) (string, error) {
	e, err := i.store.Get(ctx, enrollmentID)
	if err != nil {
		return "", err
	}
	if e.Status != enroll.StatusCompleted {
		return "", ErrCourseNotCompleted
	}
	if e.CertificateURL != "" {
		return e.CertificateURL, nil
	}

	c, err := i.courses.GetCourse(ctx, e.CourseID)
	if err != nil {
		return "", err
	}
	name := e.UserID
	if i.names != nil {
		if n, err := i.names(ctx, e.UserID); err == nil && n != "" {
			name = n
		}
	}
	completedAt := time.Unix(e.UpdatedAt, 0)

	url, err := i.render.Render(ctx, Data{
		EnrollmentID: e.ID,
		LearnerName:  name,
		CourseTitle:  c.Title,
		Branding:     c.Branding,
		CompletedAt:  completedAt,
	})
	if err != nil {
		return "", err
	}
	return i.store.ClaimCertificate(ctx, e.ID, url)
}
