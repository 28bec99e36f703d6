package timeline

import "time"

// DefaultDurationMinutes is used when an item carries no estimate.
const DefaultDurationMinutes = 30

// Kinds of schedule item. The kind doubles as the reminder category.
const (
	KindTask    = "task"
	KindShowing = "showing"
)

// Item is one entry of an agent's day: a task or a showing with an optional
// time window.
type Item struct {
	ID    int64
	Label string
	Kind  string

	ScheduledStart *time.Time
	ScheduledEnd   *time.Time

	EstDurationMinutes int

	// display only
	Counterpart string
	Location    string
}

// Scheduled reports whether both bounds are present and form a forward range.
// Partial or inverted data counts as unscheduled.
func (it Item) Scheduled() bool {
	if it.ScheduledStart == nil || it.ScheduledEnd == nil {
		return false
	}
	return it.ScheduledEnd.After(*it.ScheduledStart)
}

// In returns a copy of it with both bounds expressed in loc.
func (it Item) In(loc *time.Location) Item {
	if it.ScheduledStart != nil {
		t := it.ScheduledStart.In(loc)
		it.ScheduledStart = &t
	}
	if it.ScheduledEnd != nil {
		t := it.ScheduledEnd.In(loc)
		it.ScheduledEnd = &t
	}
	return it
}

// Duration returns the stored estimate, falling back to DefaultDurationMinutes.
func (it Item) Duration() int {
	if it.EstDurationMinutes > 0 {
		return it.EstDurationMinutes
	}
	return DefaultDurationMinutes
}

// Partition splits items into scheduled and unscheduled, preserving order.
func Partition(items []Item) (scheduled, unscheduled []Item) {
	for _, it := range items {
		if it.Scheduled() {
			scheduled = append(scheduled, it)
			continue
		}
		unscheduled = append(unscheduled, it)
	}
	return scheduled, unscheduled
}
