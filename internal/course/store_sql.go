package course

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// PutCourse upserts the whole course structure in one transaction. Section
// and module order is normalized to slice order; question weights default
// to 1. Rows absent from the payload are removed.
func (s *SQLStore) PutCourse(ctx context.Context, c Course) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	now := time.Now().Unix()
	bj, err := json.Marshal(c.Branding)
	if err != nil {
		return err
	}
	if c.AccessMode == "" {
		c.AccessMode = AccessOpen
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO courses (id,title,access_mode,price_cents,branding_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, access_mode=EXCLUDED.access_mode,
			price_cents=EXCLUDED.price_cents, branding_json=EXCLUDED.branding_json`,
		c.ID, c.Title, string(c.AccessMode), c.PriceCents, string(bj), now)
	if err != nil {
		return err
	}

	keepSections := make([]string, 0, len(c.Sections))
	for i, sec := range c.Sections {
		keepSections = append(keepSections, sec.ID)
		_, err = tx.ExecContext(ctx, `INSERT INTO sections (id,course_id,ord,title) VALUES ($1,$2,$3,$4)
			ON CONFLICT (id) DO UPDATE SET ord=EXCLUDED.ord, title=EXCLUDED.title`,
			sec.ID, c.ID, i, sec.Title)
		if err != nil {
			return err
		}
		for j, m := range sec.Modules {
			ct := m.ContentType
			if ct == "" {
				ct = "video"
			}
			_, err = tx.ExecContext(ctx, `INSERT INTO modules (id,section_id,ord,title,content_type,content_ref)
				VALUES ($1,$2,$3,$4,$5,$6)
				ON CONFLICT (id) DO UPDATE SET ord=EXCLUDED.ord, title=EXCLUDED.title,
					content_type=EXCLUDED.content_type, content_ref=EXCLUDED.content_ref`,
				m.ID, sec.ID, j, m.Title, ct, m.ContentRef)
			if err != nil {
				return err
			}
		}
		if _, err = tx.ExecContext(ctx, deleteOrphans("modules", "section_id", sec.Modules, func(m Module) string { return m.ID }),
			orphanArgs(sec.ID, sec.Modules, func(m Module) string { return m.ID })...); err != nil {
			return err
		}
		if sec.Exam != nil {
			ex := *sec.Exam
			for k := range ex.Questions {
				if ex.Questions[k].Weight <= 0 {
					ex.Questions[k].Weight = 1
				}
			}
			qj, e := json.Marshal(ex.Questions)
			if e != nil {
				return e
			}
			if ex.Status == "" {
				ex.Status = ExamDraft
			}
			_, err = tx.ExecContext(ctx, `INSERT INTO exams
				(id,section_id,title,status,time_limit_sec,pass_threshold,max_attempts,cooldown_hours,questions_json,created_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
				ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, status=EXCLUDED.status,
					time_limit_sec=EXCLUDED.time_limit_sec, pass_threshold=EXCLUDED.pass_threshold,
					max_attempts=EXCLUDED.max_attempts, cooldown_hours=EXCLUDED.cooldown_hours,
					questions_json=EXCLUDED.questions_json`,
				ex.ID, sec.ID, ex.Title, string(ex.Status), ex.TimeLimitSec, ex.PassThreshold,
				ex.Retake.MaxAttempts, ex.Retake.CooldownHours, string(qj), now)
			if err != nil {
				return err
			}
		}
	}
	if _, err = tx.ExecContext(ctx, deleteOrphans("sections", "course_id", c.Sections, func(s Section) string { return s.ID }),
		orphanArgs(c.ID, c.Sections, func(s Section) string { return s.ID })...); err != nil {
		return err
	}
	return nil
}

func (s *SQLStore) GetCourse(ctx context.Context, id string) (Course, error) {
	var c Course
	var mode, bj string
	err := s.db.QueryRowContext(ctx,
		`SELECT id,title,access_mode,price_cents,branding_json,created_at FROM courses WHERE id=$1`, id).
		Scan(&c.ID, &c.Title, &mode, &c.PriceCents, &bj, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Course{}, ErrCourseNotFound
		}
		return Course{}, err
	}
	c.AccessMode = AccessMode(mode)
	if err := json.Unmarshal([]byte(bj), &c.Branding); err != nil {
		c.Branding = Branding{}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id,ord,title FROM sections WHERE course_id=$1 ORDER BY ord`, id)
	if err != nil {
		return Course{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var sec Section
		if err := rows.Scan(&sec.ID, &sec.Order, &sec.Title); err != nil {
			return Course{}, err
		}
		sec.CourseID = c.ID
		c.Sections = append(c.Sections, sec)
	}
	if err := rows.Err(); err != nil {
		return Course{}, err
	}

	for i := range c.Sections {
		sec := &c.Sections[i]
		mrows, err := s.db.QueryContext(ctx,
			`SELECT id,ord,title,content_type,content_ref FROM modules WHERE section_id=$1 ORDER BY ord`, sec.ID)
		if err != nil {
			return Course{}, err
		}
		for mrows.Next() {
			var m Module
			if err := mrows.Scan(&m.ID, &m.Order, &m.Title, &m.ContentType, &m.ContentRef); err != nil {
				mrows.Close()
				return Course{}, err
			}
			m.SectionID = sec.ID
			sec.Modules = append(sec.Modules, m)
		}
		mrows.Close()

		ex, err := s.examBySection(ctx, sec.ID)
		if err != nil {
			return Course{}, err
		}
		if ex != nil {
			ex.CourseID = c.ID
			ex.QuestionCount = len(ex.Questions)
			ex.Questions = nil // structure reads never carry the bank
			sec.Exam = ex
		}
	}
	return c, nil
}

// GetExam strips correct indexes (parity with the admin read below).
func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	e, err := s.GetExamAdmin(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	for i := range e.Questions {
		e.Questions[i].CorrectIndex = -1
	}
	return e, nil
}

func (s *SQLStore) GetExamAdmin(ctx context.Context, id string) (Exam, error) {
	row := s.db.QueryRowContext(ctx, `SELECT e.id,e.section_id,sec.course_id,e.title,e.status,
			e.time_limit_sec,e.pass_threshold,e.max_attempts,e.cooldown_hours,e.questions_json,e.created_at
		FROM exams e JOIN sections sec ON sec.id=e.section_id WHERE e.id=$1`, id)
	var e Exam
	var status, qjson string
	var maxAtt, cool sql.NullInt64
	if err := row.Scan(&e.ID, &e.SectionID, &e.CourseID, &e.Title, &status,
		&e.TimeLimitSec, &e.PassThreshold, &maxAtt, &cool, &qjson, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Exam{}, ErrExamNotFound
		}
		return Exam{}, err
	}
	e.Status = ExamStatus(status)
	if maxAtt.Valid {
		v := int(maxAtt.Int64)
		e.Retake.MaxAttempts = &v
	}
	if cool.Valid {
		v := int(cool.Int64)
		e.Retake.CooldownHours = &v
	}
	if err := json.Unmarshal([]byte(qjson), &e.Questions); err != nil {
		return Exam{}, err
	}
	e.QuestionCount = len(e.Questions)
	return e, nil
}

func (s *SQLStore) examBySection(ctx context.Context, sectionID string) (*Exam, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,status,time_limit_sec,pass_threshold,
			max_attempts,cooldown_hours,questions_json FROM exams WHERE section_id=$1`, sectionID)
	var e Exam
	var status, qjson string
	var maxAtt, cool sql.NullInt64
	err := row.Scan(&e.ID, &e.Title, &status, &e.TimeLimitSec, &e.PassThreshold, &maxAtt, &cool, &qjson)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.SectionID = sectionID
	e.Status = ExamStatus(status)
	if maxAtt.Valid {
		v := int(maxAtt.Int64)
		e.Retake.MaxAttempts = &v
	}
	if cool.Valid {
		v := int(cool.Int64)
		e.Retake.CooldownHours = &v
	}
	if err := json.Unmarshal([]byte(qjson), &e.Questions); err != nil {
		return nil, err
	}
	return &e, nil
}
