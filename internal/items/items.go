// Package items stores schedule items and is the timeline's persistence
// collaborator.
package items

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/estate-crm/internal/db"
	"github.com/example/estate-crm/internal/timeline"
)

const itemColumns = `id,label,kind,scheduled_start,scheduled_end,est_duration_minutes,counterpart,location`

// Validate checks an item before it is stored.
func Validate(it timeline.Item) error {
	if strings.TrimSpace(it.Label) == "" {
		return fmt.Errorf("label required")
	}
	switch it.Kind {
	case timeline.KindTask, timeline.KindShowing:
	default:
		return fmt.Errorf("kind must be %q or %q", timeline.KindTask, timeline.KindShowing)
	}
	if it.EstDurationMinutes < 1 {
		return fmt.Errorf("est_duration_minutes must be >= 1")
	}
	if it.ScheduledStart != nil && it.ScheduledEnd != nil && !it.ScheduledEnd.After(*it.ScheduledStart) {
		return fmt.Errorf("scheduled_end must be after scheduled_start")
	}
	return nil
}

// Normalize fills defaults.
func Normalize(it timeline.Item) timeline.Item {
	it.Label = strings.TrimSpace(it.Label)
	if it.Kind == "" {
		it.Kind = timeline.KindTask
	}
	if it.EstDurationMinutes == 0 {
		it.EstDurationMinutes = timeline.DefaultDurationMinutes
	}
	return it
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

func (r *Repo) Create(ctx context.Context, it timeline.Item) (int64, error) {
	it = Normalize(it)
	if err := Validate(it); err != nil {
		return 0, err
	}
	var id int64
	err := r.db.QueryRow(ctx, `
INSERT INTO schedule_items(label,kind,scheduled_start,scheduled_end,est_duration_minutes,counterpart,location)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id`,
		it.Label, it.Kind, it.ScheduledStart, it.ScheduledEnd, it.EstDurationMinutes, it.Counterpart, it.Location,
	).Scan(&id)
	return id, db.WrapNotFound(err)
}

func (r *Repo) Get(ctx context.Context, id int64) (timeline.Item, error) {
	it, err := scanItem(r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM schedule_items WHERE id=$1`, id))
	if err != nil {
		return timeline.Item{}, db.WrapNotFound(err)
	}
	return it, nil
}

// ListForDay returns items starting on day (in day's location) plus every item
// without a start, which can be assigned from any day.
func (r *Repo) ListForDay(ctx context.Context, day time.Time) ([]timeline.Item, error) {
	y, m, d := day.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	to := from.AddDate(0, 0, 1)
	rows, err := r.db.Query(ctx, `
SELECT `+itemColumns+`
FROM schedule_items
WHERE (scheduled_start >= $1 AND scheduled_start < $2) OR scheduled_start IS NULL
ORDER BY scheduled_start ASC NULLS LAST, id ASC`, from, to)
	if err != nil {
		return nil, err
	}
	return db.Collect(rows, scanItem)
}

// UpdateTimes persists an edit.
func (r *Repo) UpdateTimes(ctx context.Context, id int64, start, end time.Time) error {
	if !end.After(start) {
		return timeline.ErrInvertedRange
	}
	var got int64
	err := r.db.QueryRow(ctx, `
UPDATE schedule_items SET scheduled_start=$2, scheduled_end=$3, updated_at=now()
WHERE id=$1
RETURNING id`, id, start, end).Scan(&got)
	return db.WrapNotFound(err)
}

func scanItem(row db.Row) (timeline.Item, error) {
	var it timeline.Item
	var start, end *time.Time
	if err := row.Scan(&it.ID, &it.Label, &it.Kind, &start, &end, &it.EstDurationMinutes, &it.Counterpart, &it.Location); err != nil {
		return timeline.Item{}, err
	}
	it.ScheduledStart = start
	it.ScheduledEnd = end
	return it, nil
}
