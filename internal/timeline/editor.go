package timeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotScheduled     = errors.New("item has no schedule")
	ErrAlreadyScheduled = errors.New("item is already scheduled")
	ErrInvertedRange    = errors.New("end must be after start")
	ErrBadClock         = errors.New("invalid wall-clock time (want HH:MM)")
	ErrUnknownOp        = errors.New("unknown edit operation")
)

// MinAssignedMinutes is the length given to an item assigned a start without
// a usable estimate.
const MinAssignedMinutes = 5

// Range is a computed (start, end) pair.
type Range struct {
	Start time.Time
	End   time.Time
}

func (r Range) Valid() bool { return r.End.After(r.Start) }

// ParseHourMinute reads "HH:MM" (seconds, if given, are ignored).
func ParseHourMinute(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, perr := time.Parse(layout, s); perr == nil {
			return t.Hour(), t.Minute(), nil
		}
	}
	return 0, 0, fmt.Errorf("%w: %q", ErrBadClock, s)
}

// atClock keeps the calendar day of t and replaces the wall clock.
func atClock(t time.Time, hour, minute int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, t.Location())
}

func bounds(it Item) (Range, error) {
	if it.ScheduledStart == nil || it.ScheduledEnd == nil {
		return Range{}, ErrNotScheduled
	}
	return Range{Start: *it.ScheduledStart, End: *it.ScheduledEnd}, nil
}

// SetAbsoluteStart moves the start to hhmm on its own calendar day. The end is
// not adjusted, so the result may be inverted.
func SetAbsoluteStart(it Item, hhmm string) (Range, error) {
	r, err := bounds(it)
	if err != nil {
		return Range{}, err
	}
	h, m, err := ParseHourMinute(hhmm)
	if err != nil {
		return Range{}, err
	}
	r.Start = atClock(r.Start, h, m)
	return r, nil
}

// SetAbsoluteEnd is SetAbsoluteStart for the end bound.
func SetAbsoluteEnd(it Item, hhmm string) (Range, error) {
	r, err := bounds(it)
	if err != nil {
		return Range{}, err
	}
	h, m, err := ParseHourMinute(hhmm)
	if err != nil {
		return Range{}, err
	}
	r.End = atClock(r.End, h, m)
	return r, nil
}

// ShiftByDelta moves both bounds by the same signed number of minutes.
func ShiftByDelta(it Item, minutes int) (Range, error) {
	r, err := bounds(it)
	if err != nil {
		return Range{}, err
	}
	d := time.Duration(minutes) * time.Minute
	return Range{Start: r.Start.Add(d), End: r.End.Add(d)}, nil
}

// AssignStart schedules an unscheduled item at hhmm on the window's day,
// lasting its estimate (at least MinAssignedMinutes when the estimate is
// unset). Scheduled items are moved with the other edits instead.
func AssignStart(it Item, hhmm string, w Window) (Range, error) {
	if it.Scheduled() {
		return Range{}, ErrAlreadyScheduled
	}
	h, m, err := ParseHourMinute(hhmm)
	if err != nil {
		return Range{}, err
	}
	dur := it.EstDurationMinutes
	if dur <= 0 {
		dur = MinAssignedMinutes
	}
	start := atClock(w.Date, h, m)
	return Range{Start: start, End: start.Add(time.Duration(dur) * time.Minute)}, nil
}

// EditFunc receives every computed pair. It is the only way an edit leaves
// the editor.
type EditFunc func(ctx context.Context, it Item, start, end time.Time) error

// Operations accepted by Editor.Apply.
const (
	OpSetStart = "set-start"
	OpSetEnd   = "set-end"
	OpShift    = "shift"
	OpAssign   = "assign"
)

// Gesture is one user edit.
type Gesture struct {
	Op    string
	Clock string // HH:MM for set-start, set-end, assign
	Delta int    // minutes for shift
}

// Editor turns gestures into ranges and hands them to OnEdit. Inverted ranges
// are rejected with ErrInvertedRange and never reach OnEdit.
type Editor struct {
	OnEdit EditFunc
}

func (e Editor) Apply(ctx context.Context, it Item, g Gesture, w Window) (Range, error) {
	var (
		r   Range
		err error
	)
	switch g.Op {
	case OpSetStart:
		r, err = SetAbsoluteStart(it, g.Clock)
	case OpSetEnd:
		r, err = SetAbsoluteEnd(it, g.Clock)
	case OpShift:
		r, err = ShiftByDelta(it, g.Delta)
	case OpAssign:
		r, err = AssignStart(it, g.Clock, w)
	default:
		return Range{}, fmt.Errorf("%w: %q", ErrUnknownOp, g.Op)
	}
	if err != nil {
		return Range{}, err
	}
	return r, e.emit(ctx, it, r)
}

func (e Editor) emit(ctx context.Context, it Item, r Range) error {
	if !r.Valid() {
		return ErrInvertedRange
	}
	if e.OnEdit == nil {
		return nil
	}
	if err := e.OnEdit(ctx, it, r.Start, r.End); err != nil {
		return fmt.Errorf("save item %d: %w", it.ID, err)
	}
	return nil
}
