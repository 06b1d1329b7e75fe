package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parishhub/digitalschool/internal/course"
	"github.com/parishhub/digitalschool/internal/grading"
)

type SQLStore struct {
	db      *sql.DB
	driver  string // "sqlite" or "postgres"
	courses course.Store
	grader  grading.Grader

	// defaultThreshold applies to exams with pass_threshold unset (0).
	defaultThreshold float64

	now func() time.Time
}

func NewSQLStore(db *sql.DB, driver string, courses course.Store, grader grading.Grader, defaultThreshold float64) *SQLStore {
	return &SQLStore{
		db:               db,
		driver:           driver,
		courses:          courses,
		grader:           grader,
		defaultThreshold: defaultThreshold,
		now:              time.Now,
	}
}

// Threshold resolves an exam's effective pass threshold.
func (s *SQLStore) Threshold(ex course.Exam) float64 {
	if ex.PassThreshold > 0 {
		return ex.PassThreshold
	}
	return s.defaultThreshold
}

func (s *SQLStore) Start(ctx context.Context, examID, userID string) (Attempt, error) {
	ex, err := s.courses.GetExamAdmin(ctx, examID)
	if err != nil {
		return Attempt{}, err
	}
	if ex.Status != course.ExamPublished {
		return Attempt{}, ErrExamNotPublished
	}

	a, err := s.startTx(ctx, ex, userID)
	if !isUniqueViolation(err) {
		return a, err
	}
	// Lost a concurrent start: observe and return the winner's attempt.
	return s.inProgressFor(ctx, examID, userID)
}

func (s *SQLStore) startTx(ctx context.Context, ex course.Exam, userID string) (a Attempt, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	// Idempotent start: an open attempt is returned, not duplicated.
	row := tx.QueryRowContext(ctx, selectAttempt+` WHERE user_id=$1 AND exam_id=$2 AND status=$3`,
		userID, ex.ID, string(StatusInProgress))
	a, err = scanAttempt(row)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, ErrAttemptNotFound) {
		return Attempt{}, err
	}

	history, err := listAttemptsTx(ctx, tx, userID, ex.ID)
	if err != nil {
		return Attempt{}, err
	}
	if err = Evaluate(ex.Retake, history, s.now()); err != nil {
		return Attempt{}, err
	}

	snapshot := make([]course.Question, len(ex.Questions))
	copy(snapshot, ex.Questions)
	for i := range snapshot {
		if snapshot[i].Weight <= 0 {
			snapshot[i].Weight = 1
		}
	}
	sj, err := json.Marshal(snapshot)
	if err != nil {
		return Attempt{}, err
	}

	a = Attempt{
		ID:             uuid.NewString(),
		ExamID:         ex.ID,
		CourseID:       ex.CourseID,
		UserID:         userID,
		Status:         StatusInProgress,
		TotalQuestions: len(snapshot),
		Responses:      []Response{},
		StartedAt:      s.now().Unix(),
		snapshot:       snapshot,
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO attempts
		(id,exam_id,course_id,user_id,status,score,total_questions,responses_json,snapshot_json,started_at)
		VALUES ($1,$2,$3,$4,$5,0,$6,'[]',$7,$8)`,
		a.ID, a.ExamID, a.CourseID, a.UserID, string(a.Status), a.TotalQuestions, string(sj), a.StartedAt)
	if err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) SaveResponse(ctx context.Context, attemptID, questionID string, answerIndex int) (a Attempt, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	a, err = getAttemptTx(ctx, tx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status == StatusSubmitted {
		return Attempt{}, ErrAttemptAlreadySubmitted
	}
	if late, _ := s.expired(ctx, a); late {
		return Attempt{}, ErrAttemptExpired
	}

	order := make(map[string]int, len(a.snapshot))
	var q *course.Question
	for i := range a.snapshot {
		order[a.snapshot[i].ID] = i
		if a.snapshot[i].ID == questionID {
			q = &a.snapshot[i]
		}
	}
	if q == nil {
		return Attempt{}, ErrUnknownQuestion
	}
	if answerIndex < 0 || answerIndex >= len(q.Options) {
		return Attempt{}, ErrAnswerOutOfRange
	}

	replaced := false
	for i := range a.Responses {
		if a.Responses[i].QuestionID == questionID {
			a.Responses[i].AnswerIndex = answerIndex
			a.Responses[i].Correct = false
			replaced = true
			break
		}
	}
	if !replaced {
		a.Responses = append(a.Responses, Response{QuestionID: questionID, AnswerIndex: answerIndex})
	}
	sort.SliceStable(a.Responses, func(i, j int) bool {
		return order[a.Responses[i].QuestionID] < order[a.Responses[j].QuestionID]
	})

	rj, err := json.Marshal(a.Responses)
	if err != nil {
		return Attempt{}, err
	}
	_, err = tx.ExecContext(ctx, `UPDATE attempts SET responses_json=$1 WHERE id=$2 AND status=$3`,
		string(rj), attemptID, string(StatusInProgress))
	if err != nil {
		return Attempt{}, err
	}
	return a, nil
}

// Submit accepts late submissions and grades exactly what was recorded;
// the time limit is enforced at the response boundary instead.
func (s *SQLStore) Submit(ctx context.Context, attemptID string) (a Attempt, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	a, err = getAttemptTx(ctx, tx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status == StatusSubmitted {
		return a, nil
	}

	qs := make([]grading.Q, 0, len(a.snapshot))
	for _, q := range a.snapshot {
		qs = append(qs, grading.Q{ID: q.ID, CorrectIndex: q.CorrectIndex, Weight: q.Weight})
	}
	score, outcomes, err := grading.Percent(ctx, s.grader, qs, a.answers())
	if err != nil {
		return Attempt{}, err
	}
	for i := range a.Responses {
		a.Responses[i].Correct = outcomes[a.Responses[i].QuestionID].Correct
	}

	now := s.now().Unix()
	a.Score = score
	a.Status = StatusSubmitted
	a.SubmittedAt = &now

	rj, err := json.Marshal(a.Responses)
	if err != nil {
		return Attempt{}, err
	}
	res, err := tx.ExecContext(ctx, `UPDATE attempts
		SET status=$1, score=$2, responses_json=$3, submitted_at=$4
		WHERE id=$5 AND status=$6`,
		string(StatusSubmitted), a.Score, string(rj), now, attemptID, string(StatusInProgress))
	if err != nil {
		return Attempt{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// A concurrent submit won; return its result.
		return getAttemptTx(ctx, tx, attemptID)
	}
	return a, nil
}

func (s *SQLStore) Get(ctx context.Context, attemptID string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, selectAttempt+` WHERE id=$1`, attemptID)
	return scanAttempt(row)
}

func (s *SQLStore) List(ctx context.Context, opts ListOpts) ([]Attempt, error) {
	q := selectAttempt + ` WHERE 1=1`
	args := []any{}
	add := func(cond, val string) {
		if val == "" {
			return
		}
		args = append(args, val)
		q += cond + placeholder(len(args))
	}
	add(` AND exam_id=`, opts.ExamID)
	add(` AND course_id=`, opts.CourseID)
	add(` AND user_id=`, opts.UserID)
	add(` AND status=`, opts.Status)
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	q += ` ORDER BY started_at DESC LIMIT ` + placeholder(len(args))
	args = append(args, opts.Offset)
	q += ` OFFSET ` + placeholder(len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// PassedExamIDs resolves each exam's threshold in SQL so the whole passed set
// is read in one consistent query.
func (s *SQLStore) PassedExamIDs(ctx context.Context, userID, courseID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT a.exam_id
		  FROM attempts a
		  JOIN exams e ON e.id = a.exam_id
		 WHERE a.user_id=$1 AND a.course_id=$2 AND a.status=$3
		   AND a.score >= CASE WHEN e.pass_threshold > 0 THEN e.pass_threshold ELSE $4 END`,
		userID, courseID, string(StatusSubmitted), s.defaultThreshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	passed := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		passed[id] = true
	}
	return passed, rows.Err()
}

func (s *SQLStore) inProgressFor(ctx context.Context, examID, userID string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, selectAttempt+` WHERE user_id=$1 AND exam_id=$2 AND status=$3`,
		userID, examID, string(StatusInProgress))
	return scanAttempt(row)
}

// expired reports whether the attempt's time limit has elapsed.
func (s *SQLStore) expired(ctx context.Context, a Attempt) (bool, error) {
	ex, err := s.courses.GetExamAdmin(ctx, a.ExamID)
	if err != nil {
		return false, err
	}
	if ex.TimeLimitSec <= 0 {
		return false, nil
	}
	return s.now().After(time.Unix(a.StartedAt, 0).Add(time.Duration(ex.TimeLimitSec) * time.Second)), nil
}

// --- row plumbing ---

const selectAttempt = `SELECT id,exam_id,course_id,user_id,status,score,total_questions,responses_json,snapshot_json,started_at,submitted_at FROM attempts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (Attempt, error) {
	var a Attempt
	var status, rjson, sjson string
	var submitted sql.NullInt64
	err := row.Scan(&a.ID, &a.ExamID, &a.CourseID, &a.UserID, &status, &a.Score,
		&a.TotalQuestions, &rjson, &sjson, &a.StartedAt, &submitted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrAttemptNotFound
		}
		return Attempt{}, err
	}
	a.Status = Status(status)
	if submitted.Valid {
		a.SubmittedAt = &submitted.Int64
	}
	if err := json.Unmarshal([]byte(rjson), &a.Responses); err != nil {
		a.Responses = []Response{}
	}
	if err := json.Unmarshal([]byte(sjson), &a.snapshot); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func getAttemptTx(ctx context.Context, tx *sql.Tx, attemptID string) (Attempt, error) {
	row := tx.QueryRowContext(ctx, selectAttempt+` WHERE id=$1`, attemptID)
	return scanAttempt(row)
}

func listAttemptsTx(ctx context.Context, tx *sql.Tx, userID, examID string) ([]Attempt, error) {
	rows, err := tx.QueryContext(ctx, selectAttempt+` WHERE user_id=$1 AND exam_id=$2 ORDER BY started_at`,
		userID, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func placeholder(n int) string { return "$" + strconv.Itoa(n) }

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || // sqlite
		strings.Contains(msg, "duplicate key") // postgres
}
