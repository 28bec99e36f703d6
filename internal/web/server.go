package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/estate-crm/internal/auth"
	"github.com/example/estate-crm/internal/feed"
	"github.com/example/estate-crm/internal/live"
	"github.com/example/estate-crm/internal/logging"
	"github.com/example/estate-crm/internal/metrics"
	"github.com/example/estate-crm/internal/notify"
	"github.com/example/estate-crm/internal/reminder"
	"github.com/example/estate-crm/internal/timeline"
)

//go:embed templates/*.html static/*
var fs embed.FS

// ItemStore is the persistence collaborator for timeline edits.
type ItemStore interface {
	Get(ctx context.Context, id int64) (timeline.Item, error)
	ListForDay(ctx context.Context, day time.Time) ([]timeline.Item, error)
	UpdateTimes(ctx context.Context, id int64, start, end time.Time) error
}

type PlanStore interface {
	Get(ctx context.Context, day time.Time) (timeline.PlanBounds, error)
}

type LogStore interface {
	Insert(ctx context.Context, rec reminder.LogRecord) (uuid.UUID, error)
}

// Authenticator is implemented by *auth.Store.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (int64, error)
	SetSession(w http.ResponseWriter, r *http.Request, userID int64) error
	ClearSession(w http.ResponseWriter)
	UserID(r *http.Request) (int64, bool)
	RequireAuth(next http.Handler) http.Handler
}

// Pages is the live connection to open browser tabs.
type Pages interface {
	http.Handler
	reminder.Toaster
	Changed(day string)
}

// Feed is the reminder side of the server.
type Feed interface {
	Refresh()
	Pending() []reminder.Reminder
}

var (
	_ Authenticator = (*auth.Store)(nil)
	_ Pages         = (*live.Hub)(nil)
	_ Feed          = (*feed.Feed)(nil)
)

type Server struct {
	Auth     Authenticator
	Items    ItemStore
	Plans    PlanStore
	Logs     LogStore
	Pages    Pages
	Platform *notify.Platform
	Feed     Feed
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	Location *time.Location
	Hours    timeline.HourRange
	Layout   timeline.Layout
	LogToken string
	Logger   logging.Logger
	Now      func() time.Time
}

type tmplData struct {
	Title string
	User  int64
	Flash string
	Day   *dayView
}

func (s *Server) Routes() http.Handler {
	s.defaults()
	mux := http.NewServeMux()

	mux.Handle("GET /static/", http.FileServer(http.FS(fs)))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	if s.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.Handle("GET /{$}", s.Auth.RequireAuth(http.HandlerFunc(s.handleHome)))
	mux.Handle("GET /day/{date}", s.Auth.RequireAuth(http.HandlerFunc(s.handleDay)))
	mux.Handle("POST /items/{id}/time", s.Auth.RequireAuth(http.HandlerFunc(s.handleEditTime)))
	mux.Handle("GET /ws", s.Auth.RequireAuth(s.Pages))

	mux.Handle("GET /api/day/{date}", s.Auth.RequireAuth(http.HandlerFunc(s.handleDayJSON)))
	mux.Handle("GET /api/reminders/pending", s.Auth.RequireAuth(http.HandlerFunc(s.handlePending)))
	mux.HandleFunc("POST /api/reminders/log", s.handleReminderLog)
	mux.Handle("POST /api/notifications/permission", s.Auth.RequireAuth(http.HandlerFunc(s.handlePermission)))
	mux.Handle("POST /api/notifications/request", s.Auth.RequireAuth(http.HandlerFunc(s.handleRequestPermission)))

	return logRequests(s.Logger, mux)
}

func (s *Server) defaults() {
	s.Logger = logging.OrNop(s.Logger)
	if s.Location == nil {
		s.Location = time.Local
	}
	if !s.Hours.Valid() {
		s.Hours = timeline.DefaultHours
	}
	if s.Layout.PxPerMinute <= 0 {
		s.Layout = timeline.DefaultLayout
	}
	if s.Now == nil {
		s.Now = time.Now
	}
}

func logRequests(logger logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/day/"+s.Now().In(s.Location).Format(dayLayout), http.StatusFound)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, "templates/login.html", tmplData{Title: "Login"})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		username := strings.TrimSpace(r.FormValue("username"))
		id, err := s.Auth.Authenticate(r.Context(), username, r.FormValue("password"))
		if err != nil {
			s.render(w, "templates/login.html", tmplData{Title: "Login", Flash: "Invalid username/password"})
			return
		}
		if err := s.Auth.SetSession(w, r, id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) render(w http.ResponseWriter, name string, data tmplData) {
	t, err := template.New("").Funcs(funcs).ParseFS(fs, "templates/base.html", name)
	if err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
	}
}

// Start serves h until ctx is cancelled.
func Start(ctx context.Context, addr string, h http.Handler, logger logging.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logging.OrNop(logger).Info("listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
