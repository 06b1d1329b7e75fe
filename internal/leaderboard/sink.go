// Package leaderboard notifies the external gamification service of course
// completions. Notification is fire-and-forget: the offline deployment
// appends to the event_log table, which the sync process ships upstream.
package leaderboard

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/parishhub/digitalschool/internal/enroll"
)

const eventCourseCompleted = "CourseCompleted"

type EventLogSink struct {
	db     *sql.DB
	siteID string
}

func NewEventLogSink(db *sql.DB, siteID string) *EventLogSink {
	if siteID == "" {
		siteID = "local"
	}
	return &EventLogSink{db: db, siteID: siteID}
}

func (s *EventLogSink) CourseCompleted(ctx context.Context, ev enroll.CompletionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at) VALUES ($1,$2,$3,$4,$5)`,
		s.siteID, eventCourseCompleted, ev.EnrollmentID, string(data), time.Now().Unix())
	return err
}

// Nop drops events; used when no leaderboard is configured.
type Nop struct{}

func (Nop) CourseCompleted(context.Context, enroll.CompletionEvent) error { return nil }
