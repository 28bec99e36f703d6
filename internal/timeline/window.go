package timeline

import (
	"fmt"
	"time"
)

// HourRange is a pair of whole hours on a calendar day.
type HourRange struct {
	StartHour int
	EndHour   int
}

// DefaultHours is the fallback workday when neither an override nor a plan is known.
var DefaultHours = HourRange{StartHour: 9, EndHour: 17}

func (h HourRange) Valid() bool {
	return h.StartHour >= 0 && h.EndHour <= 24 && h.EndHour > h.StartHour
}

// Window is the placeable range of a calendar day.
type Window struct {
	Date      time.Time
	StartHour int
	EndHour   int
}

// NewWindow builds a window for the calendar day of date in date's location.
func NewWindow(date time.Time, h HourRange) (Window, error) {
	if !h.Valid() {
		return Window{}, fmt.Errorf("invalid workday hours %d-%d", h.StartHour, h.EndHour)
	}
	y, m, d := date.Date()
	return Window{
		Date:      time.Date(y, m, d, 0, 0, 0, 0, date.Location()),
		StartHour: h.StartHour,
		EndHour:   h.EndHour,
	}, nil
}

func (w Window) Start() time.Time {
	y, m, d := w.Date.Date()
	return time.Date(y, m, d, w.StartHour, 0, 0, 0, w.Date.Location())
}

func (w Window) End() time.Time {
	y, m, d := w.Date.Date()
	return time.Date(y, m, d, w.EndHour, 0, 0, 0, w.Date.Location())
}

// Minutes is the length of the window.
func (w Window) Minutes() int {
	return (w.EndHour - w.StartHour) * 60
}

// PlanBounds are the nominal start and end a day plan was created with.
type PlanBounds struct {
	StartsAt time.Time
	EndsAt   time.Time
}

// ResolveWindow picks the workday hours for day: an explicit override wins,
// then the plan's nominal bounds, then def.
func ResolveWindow(day time.Time, override *HourRange, plan *PlanBounds, def HourRange) (Window, error) {
	if override != nil && override.Valid() {
		return NewWindow(day, *override)
	}
	if plan != nil {
		if h, ok := planHours(day.Location(), *plan); ok {
			return NewWindow(day, h)
		}
	}
	if !def.Valid() {
		def = DefaultHours
	}
	return NewWindow(day, def)
}

// planHours floors the start hour and rounds the end hour up.
func planHours(loc *time.Location, p PlanBounds) (HourRange, bool) {
	if p.StartsAt.IsZero() || p.EndsAt.IsZero() || !p.EndsAt.After(p.StartsAt) {
		return HourRange{}, false
	}
	s := p.StartsAt.In(loc)
	e := p.EndsAt.In(loc)
	h := HourRange{StartHour: s.Hour(), EndHour: e.Hour()}
	if e.Minute() > 0 || e.Second() > 0 || e.Nanosecond() > 0 {
		h.EndHour++
	}
	// plans ending after midnight still stop at the end of the start day
	if e.YearDay() != s.YearDay() || e.Year() != s.Year() {
		h.EndHour = 24
	}
	if h.EndHour > 24 {
		h.EndHour = 24
	}
	return h, h.Valid()
}
