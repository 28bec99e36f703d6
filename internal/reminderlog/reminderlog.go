// Package reminderlog records fired reminders received by the log endpoint.
package reminderlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/estate-crm/internal/db"
	"github.com/example/estate-crm/internal/reminder"
)

// Entry is a stored reminder log record.
type Entry struct {
	ID        uuid.UUID
	Record    reminder.LogRecord
	CreatedAt time.Time
}

func Validate(rec reminder.LogRecord) error {
	if rec.Category == "" {
		return fmt.Errorf("category required")
	}
	if rec.TaskID == 0 {
		return fmt.Errorf("taskId required")
	}
	if rec.LeadMinutes < 0 {
		return fmt.Errorf("leadMinutes must be >= 0")
	}
	return nil
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

func (r *Repo) Insert(ctx context.Context, rec reminder.LogRecord) (uuid.UUID, error) {
	if err := Validate(rec); err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	err := r.db.Exec(ctx, `
INSERT INTO reminder_logs(id,category,title,message,task_id,scheduled_start,lead_minutes)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		id, rec.Category, rec.Title, rec.Message, rec.TaskID, rec.ScheduledStart, rec.LeadMinutes)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert reminder log: %w", err)
	}
	return id, nil
}

// LogReminder stores rec directly, serving as the scheduler's log channel
// when no external endpoint is configured.
func (r *Repo) LogReminder(ctx context.Context, rec reminder.LogRecord) error {
	_, err := r.Insert(ctx, rec)
	return err
}

var _ reminder.LogSink = (*Repo)(nil)

func (r *Repo) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `
SELECT id,category,title,message,task_id,scheduled_start,lead_minutes,created_at
FROM reminder_logs
ORDER BY created_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return db.Collect(rows, scanEntry)
}

func scanEntry(row db.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.Record.Category, &e.Record.Title, &e.Record.Message, &e.Record.TaskID,
		&e.Record.ScheduledStart, &e.Record.LeadMinutes, &e.CreatedAt)
	return e, err
}
