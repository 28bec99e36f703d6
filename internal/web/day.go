package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/example/estate-crm/internal/auth"
	"github.com/example/estate-crm/internal/db"
	"github.com/example/estate-crm/internal/reminder"
	"github.com/example/estate-crm/internal/timeline"
)

const (
	dayLayout   = "2006-01-02"
	clockLayout = "15:04"
)

const editFailed = "Could not update time"

var funcs = template.FuncMap{
	"px": func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) + "px" },
}

type blockView struct {
	ID          int64   `json:"id"`
	Label       string  `json:"label"`
	Kind        string  `json:"kind"`
	Start       string  `json:"start"`
	End         string  `json:"end"`
	Counterpart string  `json:"counterpart,omitempty"`
	Location    string  `json:"location,omitempty"`
	Top         float64 `json:"top"`
	Height      float64 `json:"height"`
}

type itemView struct {
	ID          int64  `json:"id"`
	Label       string `json:"label"`
	Kind        string `json:"kind"`
	EstMinutes  int    `json:"estMinutes"`
	Counterpart string `json:"counterpart,omitempty"`
}

type gridView struct {
	Label string  `json:"label"`
	Top   float64 `json:"top"`
}

type dayView struct {
	Date        string      `json:"date"`
	Prev        string      `json:"prev"`
	Next        string      `json:"next"`
	StartHour   int         `json:"startHour"`
	EndHour     int         `json:"endHour"`
	Height      float64     `json:"height"`
	Gridlines   []gridView  `json:"gridlines"`
	Blocks      []blockView `json:"blocks"`
	Unscheduled []itemView  `json:"unscheduled"`
}

// parseDay reads "today" or YYYY-MM-DD in the server's location.
func (s *Server) parseDay(v string) (time.Time, error) {
	if v == "" || v == "today" {
		y, m, d := s.Now().In(s.Location).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, s.Location), nil
	}
	return time.ParseInLocation(dayLayout, v, s.Location)
}

// overrideHours reads ?start=&end= hour overrides.
func overrideHours(r *http.Request) *timeline.HourRange {
	a, errA := strconv.Atoi(r.URL.Query().Get("start"))
	b, errB := strconv.Atoi(r.URL.Query().Get("end"))
	if errA != nil || errB != nil {
		return nil
	}
	h := timeline.HourRange{StartHour: a, EndHour: b}
	if !h.Valid() {
		return nil
	}
	return &h
}

func (s *Server) window(ctx context.Context, day time.Time, override *timeline.HourRange) (timeline.Window, error) {
	var plan *timeline.PlanBounds
	if s.Plans != nil {
		p, err := s.Plans.Get(ctx, day)
		switch {
		case err == nil:
			plan = &p
		case !db.IsNotFound(err):
			return timeline.Window{}, err
		}
	}
	return timeline.ResolveWindow(day, override, plan, s.Hours)
}

func (s *Server) buildDay(ctx context.Context, day time.Time, override *timeline.HourRange) (*dayView, error) {
	w, err := s.window(ctx, day, override)
	if err != nil {
		return nil, err
	}
	items, err := s.Items.ListForDay(ctx, day)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i] = items[i].In(s.Location)
	}
	a := s.Layout.Arrange(items, w)

	v := &dayView{
		Date:        day.Format(dayLayout),
		Prev:        day.AddDate(0, 0, -1).Format(dayLayout),
		Next:        day.AddDate(0, 0, 1).Format(dayLayout),
		StartHour:   w.StartHour,
		EndHour:     w.EndHour,
		Height:      a.Height,
		Gridlines:   make([]gridView, 0, len(a.Gridlines)),
		Blocks:      make([]blockView, 0, len(a.Blocks)),
		Unscheduled: make([]itemView, 0, len(a.Unscheduled)),
	}
	for _, g := range a.Gridlines {
		v.Gridlines = append(v.Gridlines, gridView{Label: g.Label, Top: g.Top})
	}
	for _, b := range a.Blocks {
		v.Blocks = append(v.Blocks, blockView{
			ID:          b.Item.ID,
			Label:       b.Item.Label,
			Kind:        b.Item.Kind,
			Start:       b.Item.ScheduledStart.Format(clockLayout),
			End:         b.Item.ScheduledEnd.Format(clockLayout),
			Counterpart: b.Item.Counterpart,
			Location:    b.Item.Location,
			Top:         b.Top,
			Height:      b.Height,
		})
	}
	for _, it := range a.Unscheduled {
		v.Unscheduled = append(v.Unscheduled, itemView{
			ID:          it.ID,
			Label:       it.Label,
			Kind:        it.Kind,
			EstMinutes:  it.EstDurationMinutes,
			Counterpart: it.Counterpart,
		})
	}
	return v, nil
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	day, err := s.parseDay(r.PathValue("date"))
	if err != nil {
		http.Error(w, "bad date", http.StatusBadRequest)
		return
	}
	v, err := s.buildDay(r.Context(), day, overrideHours(r))
	if err != nil {
		s.Logger.Error("day %s: %v", day.Format(dayLayout), err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())
	s.render(w, "templates/day.html", tmplData{
		Title: day.Format("Mon Jan 2"),
		User:  uid,
		Flash: r.URL.Query().Get("msg"),
		Day:   v,
	})
}

func (s *Server) handleDayJSON(w http.ResponseWriter, r *http.Request) {
	day, err := s.parseDay(r.PathValue("date"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad date")
		return
	}
	v, err := s.buildDay(r.Context(), day, overrideHours(r))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type editResult struct {
	ID    int64     `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// handleEditTime applies one timeline gesture. Form fields: op, clock, delta,
// day (the page's date, used as the window for assign).
func (s *Server) handleEditTime(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "bad item id", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	g := timeline.Gesture{Op: r.FormValue("op"), Clock: r.FormValue("clock")}
	if g.Op == timeline.OpShift {
		g.Delta, err = strconv.Atoi(r.FormValue("delta"))
		if err != nil {
			s.editRejected(w, r, "", "delta must be whole minutes")
			return
		}
	}

	it, err := s.Items.Get(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	it = it.In(s.Location)

	day, err := s.parseDay(r.FormValue("day"))
	if err != nil {
		s.editRejected(w, r, "", "bad date")
		return
	}
	win, err := s.window(ctx, day, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var saveErr error
	ed := timeline.Editor{OnEdit: func(ctx context.Context, it timeline.Item, start, end time.Time) error {
		saveErr = s.Items.UpdateTimes(ctx, it.ID, start, end)
		return saveErr
	}}
	rng, err := ed.Apply(ctx, it, g, win)
	if errors.Is(err, timeline.ErrUnknownOp) {
		s.Metrics.Edit("unknown", err)
	} else {
		s.Metrics.Edit(g.Op, err)
	}
	if err != nil {
		if saveErr != nil {
			s.Logger.Error("edit item %d: %v", id, err)
			_ = s.Pages.Toast(ctx, reminder.Toast{Title: editFailed, Variant: "destructive"})
			s.editFailed(w, r, day)
			return
		}
		s.editRejected(w, r, day.Format(dayLayout), rejectMessage(err))
		return
	}

	s.Pages.Changed(rng.Start.In(s.Location).Format(dayLayout))
	if s.Feed != nil {
		s.Feed.Refresh()
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, editResult{ID: id, Start: rng.Start, End: rng.End})
		return
	}
	http.Redirect(w, r, "/day/"+rng.Start.In(s.Location).Format(dayLayout), http.StatusSeeOther)
}

func rejectMessage(err error) string {
	switch {
	case errors.Is(err, timeline.ErrInvertedRange):
		return "End must be after start"
	case errors.Is(err, timeline.ErrAlreadyScheduled):
		return "Item is already on the timeline; move it instead"
	case errors.Is(err, timeline.ErrNotScheduled):
		return "Item has no time yet; assign a start first"
	case errors.Is(err, timeline.ErrBadClock):
		return "Time must be HH:MM"
	case errors.Is(err, timeline.ErrUnknownOp):
		return "Unknown edit"
	}
	return err.Error()
}

func (s *Server) editRejected(w http.ResponseWriter, r *http.Request, day, msg string) {
	if wantsJSON(r) || day == "" {
		writeJSONError(w, http.StatusUnprocessableEntity, msg)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/day/%s?msg=%s", day, template.URLQueryEscaper(msg)), http.StatusSeeOther)
}

func (s *Server) editFailed(w http.ResponseWriter, r *http.Request, day time.Time) {
	if wantsJSON(r) {
		writeJSONError(w, http.StatusBadGateway, editFailed)
		return
	}
	http.Redirect(w, r, "/day/"+day.Format(dayLayout)+"?msg="+template.URLQueryEscaper(editFailed), http.StatusSeeOther)
}

func wantsJSON(r *http.Request) bool {
	return r.Header.Get("Accept") == "application/json"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
