// Package plans stores the nominal working hours planned for a day.
package plans

import (
	"context"
	"fmt"
	"time"

	"github.com/example/estate-crm/internal/db"
	"github.com/example/estate-crm/internal/timeline"
)

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

// Set creates or replaces the plan for day.
func (r *Repo) Set(ctx context.Context, day time.Time, p timeline.PlanBounds) error {
	if !p.EndsAt.After(p.StartsAt) {
		return fmt.Errorf("plan end must be after plan start")
	}
	return r.db.Exec(ctx, `
INSERT INTO day_plans(day, starts_at, ends_at) VALUES ($1,$2,$3)
ON CONFLICT (day) DO UPDATE SET starts_at=EXCLUDED.starts_at, ends_at=EXCLUDED.ends_at, updated_at=now()`,
		day.Format("2006-01-02"), p.StartsAt, p.EndsAt)
}

// Get returns the plan for day or db.ErrNotFound.
func (r *Repo) Get(ctx context.Context, day time.Time) (timeline.PlanBounds, error) {
	var p timeline.PlanBounds
	err := r.db.QueryRow(ctx, `SELECT starts_at, ends_at FROM day_plans WHERE day=$1`, day.Format("2006-01-02")).
		Scan(&p.StartsAt, &p.EndsAt)
	if err != nil {
		return timeline.PlanBounds{}, db.WrapNotFound(err)
	}
	return p, nil
}
