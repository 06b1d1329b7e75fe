package enroll

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
	now    func() time.Time
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver, now: time.Now}
}

func (s *SQLStore) GetOrCreate(ctx context.Context, userID, courseID string) (Enrollment, error) {
	now := s.now().Unix()
	_, err := s.db.ExecContext(ctx, `INSERT INTO enrollments
		(id,user_id,course_id,status,progress_percent,module_progress_json,created_at,updated_at)
		VALUES ($1,$2,$3,$4,0,'{}',$5,$5)
		ON CONFLICT (user_id,course_id) DO NOTHING`,
		uuid.NewString(), userID, courseID, string(StatusActive), now)
	if err != nil {
		return Enrollment{}, err
	}
	return s.GetByUserCourse(ctx, userID, courseID)
}

func (s *SQLStore) Get(ctx context.Context, id string) (Enrollment, error) {
	row := s.db.QueryRowContext(ctx, selectEnrollment+` WHERE id=$1`, id)
	return scanEnrollment(row)
}

func (s *SQLStore) GetByUserCourse(ctx context.Context, userID, courseID string) (Enrollment, error) {
	row := s.db.QueryRowContext(ctx, selectEnrollment+` WHERE user_id=$1 AND course_id=$2`, userID, courseID)
	return scanEnrollment(row)
}

func (s *SQLStore) SetProgress(ctx context.Context, id string, percent int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE enrollments
		SET progress_percent=$1, updated_at=$2
		WHERE id=$3 AND status=$4 AND progress_percent < $1`,
		percent, s.now().Unix(), id, string(StatusActive))
	return err
}

func (s *SQLStore) MarkCompleted(ctx context.Context, id string, percent int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE enrollments
		SET status=$1, progress_percent=$2, updated_at=$3
		WHERE id=$4 AND status=$5`,
		string(StatusCompleted), percent, s.now().Unix(), id, string(StatusActive))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *SQLStore) Withdraw(ctx context.Context, id string) (Enrollment, error) {
	_, err := s.db.ExecContext(ctx, `UPDATE enrollments SET status=$1, updated_at=$2
		WHERE id=$3 AND status=$4`,
		string(StatusWithdrawn), s.now().Unix(), id, string(StatusActive))
	if err != nil {
		return Enrollment{}, err
	}
	return s.Get(ctx, id)
}

func (s *SQLStore) SetModuleProgress(ctx context.Context, id string, progress map[string]bool) error {
	pj, err := json.Marshal(progress)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE enrollments SET module_progress_json=$1, updated_at=$2 WHERE id=$3`,
		string(pj), s.now().Unix(), id)
	return err
}

func (s *SQLStore) ClaimCertificate(ctx context.Context, id, url string) (string, error) {
	_, err := s.db.ExecContext(ctx, `UPDATE enrollments SET certificate_url=$1, updated_at=$2
		WHERE id=$3 AND certificate_url IS NULL`,
		url, s.now().Unix(), id)
	if err != nil {
		return "", err
	}
	var canonical sql.NullString
	err = s.db.QueryRowContext(ctx, `SELECT certificate_url FROM enrollments WHERE id=$1`, id).Scan(&canonical)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrEnrollmentNotFound
		}
		return "", err
	}
	return canonical.String, nil
}

func (s *SQLStore) SetBadgeIssued(ctx context.Context, id string, at int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE enrollments SET badge_issued_at=$1, updated_at=$2
		WHERE id=$3 AND badge_issued_at IS NULL`,
		at, s.now().Unix(), id)
	return err
}

const selectEnrollment = `SELECT id,user_id,course_id,status,progress_percent,module_progress_json,badge_issued_at,certificate_url,created_at,updated_at FROM enrollments`

func scanEnrollment(row *sql.Row) (Enrollment, error) {
	var e Enrollment
	var status, mpj string
	var badge sql.NullInt64
	var cert sql.NullString
	err := row.Scan(&e.ID, &e.UserID, &e.CourseID, &status, &e.ProgressPercent,
		&mpj, &badge, &cert, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Enrollment{}, ErrEnrollmentNotFound
		}
		return Enrollment{}, err
	}
	e.Status = Status(status)
	if badge.Valid {
		e.BadgeIssuedAt = &badge.Int64
	}
	e.CertificateURL = cert.String
	if err := json.Unmarshal([]byte(mpj), &e.ModuleProgress); err != nil || e.ModuleProgress == nil {
		e.ModuleProgress = map[string]bool{}
	}
	return e, nil
}
