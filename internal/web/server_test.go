package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/estate-crm/internal/auth"
	"github.com/example/estate-crm/internal/db"
	"github.com/example/estate-crm/internal/live"
	"github.com/example/estate-crm/internal/metrics"
	"github.com/example/estate-crm/internal/notify"
	"github.com/example/estate-crm/internal/reminder"
	"github.com/example/estate-crm/internal/timeline"
)

type fakeAuth struct{ anonymous bool }

func (a *fakeAuth) Authenticate(_ context.Context, username, password string) (int64, error) {
	if username == "agent" && password == "password1" {
		return 1, nil
	}
	return 0, auth.ErrInvalidCredentials
}

func (a *fakeAuth) SetSession(w http.ResponseWriter, _ *http.Request, _ int64) error {
	http.SetCookie(w, &http.Cookie{Name: "s", Value: "1"})
	return nil
}

func (a *fakeAuth) ClearSession(http.ResponseWriter) {}

func (a *fakeAuth) UserID(*http.Request) (int64, bool) { return 1, !a.anonymous }

func (a *fakeAuth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.anonymous {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), 1)))
	})
}

type update struct {
	id         int64
	start, end time.Time
}

type fakeItems struct {
	items     map[int64]timeline.Item
	updateErr error
	updates   []update
}

func (f *fakeItems) Get(_ context.Context, id int64) (timeline.Item, error) {
	it, ok := f.items[id]
	if !ok {
		return timeline.Item{}, db.ErrNotFound
	}
	return it, nil
}

func (f *fakeItems) ListForDay(_ context.Context, day time.Time) ([]timeline.Item, error) {
	var out []timeline.Item
	for _, it := range f.items {
		if it.ScheduledStart == nil || it.ScheduledStart.Format(dayLayout) == day.Format(dayLayout) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeItems) UpdateTimes(_ context.Context, id int64, start, end time.Time) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, update{id, start, end})
	return nil
}

type fakePlans struct{ plans map[string]timeline.PlanBounds }

func (f *fakePlans) Get(_ context.Context, day time.Time) (timeline.PlanBounds, error) {
	p, ok := f.plans[day.Format(dayLayout)]
	if !ok {
		return timeline.PlanBounds{}, db.ErrNotFound
	}
	return p, nil
}

type fakeLogs struct{ recs []reminder.LogRecord }

func (f *fakeLogs) Insert(_ context.Context, rec reminder.LogRecord) (uuid.UUID, error) {
	f.recs = append(f.recs, rec)
	return uuid.New(), nil
}

type fakePages struct {
	toasts  []reminder.Toast
	changed []string
	events  []live.Event
}

func (p *fakePages) ServeHTTP(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) }

func (p *fakePages) Toast(_ context.Context, t reminder.Toast) error {
	p.toasts = append(p.toasts, t)
	return nil
}

func (p *fakePages) Changed(day string) { p.changed = append(p.changed, day) }

func (p *fakePages) Broadcast(ev live.Event) { p.events = append(p.events, ev) }

type fakeFeed struct{ refreshes int }

func (f *fakeFeed) Refresh() { f.refreshes++ }

func (f *fakeFeed) Pending() []reminder.Reminder {
	start := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
	return []reminder.Reminder{{
		Key:       reminder.Key{Category: "showing", TaskID: 3, Start: start.Format(reminder.ISOLayout), LeadMinutes: 30},
		Task:      reminder.Task{ID: 3, Title: "Open house", Start: start},
		TriggerAt: start.Add(-30 * time.Minute),
	}}
}

type env struct {
	srv   *Server
	h     http.Handler
	auth  *fakeAuth
	items *fakeItems
	pages *fakePages
	feed  *fakeFeed
	logs  *fakeLogs
	perms *notify.Permissions
	reg   *prometheus.Registry
}

func at(h, m int) *time.Time {
	t := time.Date(2024, 3, 12, h, m, 0, 0, time.UTC)
	return &t
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		auth: &fakeAuth{},
		items: &fakeItems{items: map[int64]timeline.Item{
			1: {ID: 1, Label: "Call lender", Kind: timeline.KindTask, ScheduledStart: at(10, 0), ScheduledEnd: at(10, 30), EstDurationMinutes: 30},
			2: {ID: 2, Label: "Paperwork", Kind: timeline.KindTask, EstDurationMinutes: 45},
			3: {ID: 3, Label: "Open house", Kind: timeline.KindShowing, ScheduledStart: at(13, 0), ScheduledEnd: at(14, 0), Counterpart: "Ms. Lee", Location: "12 Elm St"},
		}},
		pages: &fakePages{},
		feed:  &fakeFeed{},
		logs:  &fakeLogs{},
		perms: notify.NewPermissions(),
		reg:   prometheus.NewRegistry(),
	}
	m, err := metrics.New("estatecrm", e.reg)
	require.NoError(t, err)
	e.srv = &Server{
		Auth:     e.auth,
		Items:    e.items,
		Plans:    &fakePlans{plans: map[string]timeline.PlanBounds{}},
		Logs:     e.logs,
		Pages:    e.pages,
		Platform: &notify.Platform{Pages: e.pages, Perms: e.perms},
		Feed:     e.feed,
		Metrics:  m,
		Gatherer: e.reg,
		Location: time.UTC,
		LogToken: "s3cret",
		Now:      func() time.Time { return time.Date(2024, 3, 12, 8, 0, 0, 0, time.UTC) },
	}
	e.h = e.srv.Routes()
	return e
}

func (e *env) do(method, target string, form url.Values, hdr map[string]string) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

var jsonAccept = map[string]string{"Accept": "application/json"}

func TestHomeRedirectsToToday(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/day/2024-03-12", rec.Header().Get("Location"))
}

func TestDayPageRendersTimeline(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodGet, "/day/2024-03-12", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	// 09:00-17:00 at 1.5px/min
	assert.Contains(t, body, "height: 720.0px")
	assert.Contains(t, body, "top: 90.0px; height: 45.0px")
	assert.Contains(t, body, "Call lender")
	assert.Contains(t, body, "with Ms. Lee")
	assert.Contains(t, body, "Paperwork (45m)")
	assert.Contains(t, body, "09:00")
	assert.Contains(t, body, "17:00")
}

func TestDayJSONHonoursOverrideAndPlan(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodGet, "/api/day/2024-03-12?start=8&end=12", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var v dayView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, 8, v.StartHour)
	assert.Equal(t, 12, v.EndHour)
	assert.Len(t, v.Gridlines, 5)
	require.Len(t, v.Blocks, 2)
	assert.Equal(t, int64(1), v.Blocks[0].ID)
	assert.InDelta(t, 180.0, v.Blocks[0].Top, 1e-9)
	// showing at 13:00 is clamped to the window end and keeps the minimum height
	assert.InDelta(t, 360.0, v.Blocks[1].Top, 1e-9)
	assert.InDelta(t, timeline.DefaultLayout.MinBlockHeight, v.Blocks[1].Height, 1e-9)

	e.srv.Plans.(*fakePlans).plans["2024-03-13"] = timeline.PlanBounds{
		StartsAt: time.Date(2024, 3, 13, 7, 30, 0, 0, time.UTC),
		EndsAt:   time.Date(2024, 3, 13, 15, 15, 0, 0, time.UTC),
	}
	rec = e.do(http.MethodGet, "/api/day/2024-03-13", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, 7, v.StartHour)
	assert.Equal(t, 16, v.EndHour)
}

func TestBadDate(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/day/12-03-2024", nil, nil).Code)
}

func TestEditSetStartSavesAndRefreshes(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodPost, "/items/1/time", url.Values{"op": {"set-start"}, "clock": {"10:15"}, "day": {"2024-03-12"}}, jsonAccept)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, e.items.updates, 1)
	u := e.items.updates[0]
	assert.Equal(t, int64(1), u.id)
	assert.Equal(t, *at(10, 15), u.start)
	assert.Equal(t, *at(10, 30), u.end)
	assert.Equal(t, []string{"2024-03-12"}, e.pages.changed)
	assert.Equal(t, 1, e.feed.refreshes)
	assert.Empty(t, e.pages.toasts)
}

func TestEditShiftFormRedirects(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodPost, "/items/3/time", url.Values{"op": {"shift"}, "delta": {"-15"}, "day": {"2024-03-12"}}, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/day/2024-03-12", rec.Header().Get("Location"))
	require.Len(t, e.items.updates, 1)
	assert.Equal(t, *at(12, 45), e.items.updates[0].start)
	assert.Equal(t, *at(13, 45), e.items.updates[0].end)
}

func TestEditAssignUsesEstimate(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodPost, "/items/2/time", url.Values{"op": {"assign"}, "clock": {"14:00"}, "day": {"2024-03-12"}}, jsonAccept)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, e.items.updates, 1)
	assert.Equal(t, *at(14, 0), e.items.updates[0].start)
	assert.Equal(t, *at(14, 45), e.items.updates[0].end)
}

func TestEditInvertedRangeNeverSaved(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodPost, "/items/1/time", url.Values{"op": {"set-end"}, "clock": {"09:45"}, "day": {"2024-03-12"}}, jsonAccept)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "End must be after start")
	assert.Empty(t, e.items.updates)
	assert.Empty(t, e.pages.changed)
	assert.Empty(t, e.pages.toasts)
	assert.Zero(t, e.feed.refreshes)
}

func TestEditSaveFailureToasts(t *testing.T) {
	e := newEnv(t)
	e.items.updateErr = errors.New("connection reset")
	rec := e.do(http.MethodPost, "/items/1/time", url.Values{"op": {"shift"}, "delta": {"30"}, "day": {"2024-03-12"}}, jsonAccept)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	require.Len(t, e.pages.toasts, 1)
	assert.Equal(t, "Could not update time", e.pages.toasts[0].Title)
	assert.Equal(t, "destructive", e.pages.toasts[0].Variant)
	assert.Empty(t, e.pages.changed)
	assert.Zero(t, e.feed.refreshes)
}

func TestEditErrors(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodPost, "/items/99/time", url.Values{"op": {"shift"}, "delta": {"5"}}, jsonAccept).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/items/abc/time", url.Values{}, jsonAccept).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, e.do(http.MethodPost, "/items/1/time", url.Values{"op": {"shift"}, "delta": {"soon"}}, jsonAccept).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, e.do(http.MethodPost, "/items/1/time", url.Values{"op": {"drag"}}, jsonAccept).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, e.do(http.MethodPost, "/items/2/time", url.Values{"op": {"set-start"}, "clock": {"10:00"}}, jsonAccept).Code)
	rec := e.do(http.MethodPost, "/items/1/time", url.Values{"op": {"assign"}, "clock": {"15:00"}, "day": {"2024-03-12"}}, jsonAccept)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "already on the timeline")
	assert.Empty(t, e.items.updates)
}

func TestReminderLogAuth(t *testing.T) {
	e := newEnv(t)
	e.auth.anonymous = true
	body := `{"category":"showing","title":"Open house","message":"Starts in 30 minutes","taskId":3,"scheduledStart":"2024-03-12T13:00:00.000Z","leadMinutes":30}`

	post := func(hdr map[string]string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/reminders/log", strings.NewReader(body))
		for k, v := range hdr {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		e.h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, post(nil))
	assert.Equal(t, http.StatusUnauthorized, post(map[string]string{"Authorization": "Bearer nope"}))
	assert.Equal(t, http.StatusCreated, post(map[string]string{"Authorization": "Bearer s3cret"}))
	require.Len(t, e.logs.recs, 1)
	assert.Equal(t, int64(3), e.logs.recs[0].TaskID)
	assert.Equal(t, 30, e.logs.recs[0].LeadMinutes)
}

func TestReminderLogRejectsInvalid(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/reminders/log", strings.NewReader(`{"title":"x"}`))
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, e.logs.recs)
}

func TestPermissionEndpoints(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/notifications/permission", strings.NewReader(`{"permission":"granted"}`))
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, reminder.PermissionGranted, e.perms.Get())

	req = httptest.NewRequest(http.MethodPost, "/api/notifications/permission", strings.NewReader(`{"permission":"maybe"}`))
	rec = httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, reminder.PermissionGranted, e.perms.Get())

	rec = e.do(http.MethodPost, "/api/notifications/request", nil, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, e.pages.events, 1)
	assert.Equal(t, live.EventRequestPermission, e.pages.events[0].Type)
}

func TestPendingReminders(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodGet, "/api/reminders/pending", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got []pendingView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "showing", got[0].Category)
	assert.Equal(t, 30, got[0].Lead)
	assert.Equal(t, "showing/3/2024-03-12T10:00:00.000Z/-30m", got[0].Key)
}

func TestLoginFlow(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodGet, "/login", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sign in")

	rec = e.do(http.MethodPost, "/login", url.Values{"username": {"agent"}, "password": {"nope"}}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid username/password")

	rec = e.do(http.MethodPost, "/login", url.Values{"username": {"agent"}, "password": {"password1"}}, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.NotEmpty(t, rec.Result().Cookies())
}

func TestWebsocketAndMetricsRoutes(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusTeapot, e.do(http.MethodGet, "/ws", nil, nil).Code)

	e.do(http.MethodPost, "/items/1/time", url.Values{"op": {"shift"}, "delta": {"15"}}, jsonAccept)
	rec := e.do(http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `estatecrm_timeline_edits_total{op="shift",result="ok"} 1`)

	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/healthz", nil, nil).Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/static/app.js", nil, nil).Code)
}
