package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/estate-crm/internal/live"
	"github.com/example/estate-crm/internal/reminder"
)

type pages struct{ events []live.Event }

func (p *pages) Broadcast(ev live.Event) { p.events = append(p.events, ev) }

func TestPermissions(t *testing.T) {
	p := NewPermissions()
	assert.Equal(t, reminder.PermissionDefault, p.Get())
	require.NoError(t, p.Set(reminder.PermissionGranted))
	assert.Equal(t, reminder.PermissionGranted, p.Get())
	assert.Error(t, p.Set("maybe"))
	assert.Equal(t, reminder.PermissionGranted, p.Get())
}

func TestPlatformShowNeedsGrant(t *testing.T) {
	pg := &pages{}
	pl := &Platform{Pages: pg, Perms: NewPermissions()}

	assert.Error(t, pl.Show(context.Background(), "t", "b"))
	assert.Empty(t, pg.events)

	require.NoError(t, pl.Perms.Set(reminder.PermissionGranted))
	require.NoError(t, pl.Show(context.Background(), "Showing", "Starting now"))
	require.Len(t, pg.events, 1)
	assert.Equal(t, live.EventNotification, pg.events[0].Type)
	assert.Equal(t, live.Notification{Title: "Showing", Body: "Starting now"}, pg.events[0].Data)
}

func TestRequestPermissionOnlyBroadcasts(t *testing.T) {
	pg := &pages{}
	pl := &Platform{Pages: pg, Perms: NewPermissions()}
	pl.RequestPermission()
	require.Len(t, pg.events, 1)
	assert.Equal(t, live.EventRequestPermission, pg.events[0].Type)
	assert.Equal(t, reminder.PermissionDefault, pl.Permission())
}

func TestLogClientPosts(t *testing.T) {
	var got reminder.LogRecord
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	rec := reminder.LogRecord{Category: "task", Title: "Call", Message: "Starting now", TaskID: 3, ScheduledStart: "2024-03-12T10:00:00.000Z"}
	require.NoError(t, NewLogClient(srv.URL, "s3cret").LogReminder(context.Background(), rec))
	assert.Equal(t, rec, got)
	assert.Equal(t, "Bearer s3cret", auth)
}

func TestLogClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	assert.Error(t, NewLogClient(srv.URL, "").LogReminder(context.Background(), reminder.LogRecord{}))
}
