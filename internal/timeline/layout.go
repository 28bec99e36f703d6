package timeline

import (
	"fmt"
	"sort"
	"time"
)

// Clamp returns t if it lies within the window, else the nearest boundary.
func Clamp(t time.Time, w Window) time.Time {
	start, end := w.Start(), w.End()
	if t.Before(start) {
		return start
	}
	if t.After(end) {
		return end
	}
	return t
}

// OffsetMinutes is the number of minutes between the window start and the
// clamped t. The result is always within [0, w.Minutes()].
func OffsetMinutes(t time.Time, w Window) float64 {
	return Clamp(t, w).Sub(w.Start()).Minutes()
}

// Layout maps minutes to pixels.
type Layout struct {
	PxPerMinute float64
	// MinBlockHeight keeps short blocks clickable. Display only.
	MinBlockHeight float64
}

// DefaultLayout matches the stock stylesheet.
var DefaultLayout = Layout{PxPerMinute: 1.5, MinBlockHeight: 24}

// Block is a positioned scheduled item.
type Block struct {
	Item   Item
	Top    float64
	Height float64
}

// Position places a scheduled item inside the window. ok is false for
// unscheduled items.
func (l Layout) Position(it Item, w Window) (b Block, ok bool) {
	if !it.Scheduled() {
		return Block{}, false
	}
	start := OffsetMinutes(*it.ScheduledStart, w)
	end := OffsetMinutes(*it.ScheduledEnd, w)
	h := (end - start) * l.PxPerMinute
	if h < l.MinBlockHeight {
		h = l.MinBlockHeight
	}
	return Block{Item: it, Top: start * l.PxPerMinute, Height: h}, true
}

// GridHeight is the pixel height of the whole window.
func (l Layout) GridHeight(w Window) float64 {
	return float64(w.Minutes()) * l.PxPerMinute
}

// HourLines returns every whole hour from StartHour to EndHour inclusive.
func HourLines(w Window) []int {
	out := make([]int, 0, w.EndHour-w.StartHour+1)
	for h := w.StartHour; h <= w.EndHour; h++ {
		out = append(out, h)
	}
	return out
}

// Gridline is an hour line with its offset and label.
type Gridline struct {
	Hour  int
	Top   float64
	Label string
}

func (l Layout) Gridlines(w Window) []Gridline {
	hours := HourLines(w)
	out := make([]Gridline, 0, len(hours))
	for _, h := range hours {
		out = append(out, Gridline{
			Hour:  h,
			Top:   float64((h-w.StartHour)*60) * l.PxPerMinute,
			Label: fmt.Sprintf("%02d:00", h),
		})
	}
	return out
}

// Arrangement is a rendered day: positioned blocks ordered by start plus the
// items that could not be placed.
type Arrangement struct {
	Window      Window
	Height      float64
	Gridlines   []Gridline
	Blocks      []Block
	Unscheduled []Item
}

func (l Layout) Arrange(items []Item, w Window) Arrangement {
	scheduled, unscheduled := Partition(items)
	a := Arrangement{
		Window:      w,
		Height:      l.GridHeight(w),
		Gridlines:   l.Gridlines(w),
		Unscheduled: unscheduled,
	}
	for _, it := range scheduled {
		b, _ := l.Position(it, w)
		a.Blocks = append(a.Blocks, b)
	}
	sort.SliceStable(a.Blocks, func(i, j int) bool {
		return a.Blocks[i].Item.ScheduledStart.Before(*a.Blocks[j].Item.ScheduledStart)
	})
	return a
}
