package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/example/estate-crm/internal/auth"
	"github.com/example/estate-crm/internal/reminder"
	"github.com/example/estate-crm/internal/reminderlog"
)

// handleReminderLog stores a fired reminder. Either a session or the shared
// reminder token is accepted.
func (s *Server) handleReminderLog(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.Auth.UserID(r); !ok && !auth.BearerMatches(r, s.LogToken) {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var rec reminder.LogRecord
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&rec); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if s.Logs == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "reminder log disabled")
		return
	}
	if err := reminderlog.Validate(rec); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.Logs.Insert(r.Context(), rec)
	if err != nil {
		s.Logger.Warn("reminder log: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "could not store reminder log")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

type permissionBody struct {
	Permission reminder.Permission `json:"permission"`
}

// handlePermission records the Notification.permission value the page sees.
func (s *Server) handlePermission(w http.ResponseWriter, r *http.Request) {
	var body permissionBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if s.Platform == nil || s.Platform.Perms == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "notifications disabled")
		return
	}
	if err := s.Platform.Perms.Set(body.Permission); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// handleRequestPermission is the explicit "enable notifications" action.
func (s *Server) handleRequestPermission(w http.ResponseWriter, r *http.Request) {
	if s.Platform == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "notifications disabled")
		return
	}
	s.Platform.RequestPermission()
	w.WriteHeader(http.StatusAccepted)
}

type pendingView struct {
	Key       string    `json:"key"`
	Category  string    `json:"category"`
	TaskID    int64     `json:"taskId"`
	Title     string    `json:"title"`
	Lead      int       `json:"leadMinutes"`
	TriggerAt time.Time `json:"triggerAt"`
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	out := []pendingView{}
	if s.Feed != nil {
		for _, p := range s.Feed.Pending() {
			out = append(out, pendingView{
				Key:       p.Key.String(),
				Category:  p.Key.Category,
				TaskID:    p.Key.TaskID,
				Title:     p.Task.Title,
				Lead:      p.Key.LeadMinutes,
				TriggerAt: p.TriggerAt,
			})
		}
	}
	writeJSON(w, http.StatusOK, out)
}
