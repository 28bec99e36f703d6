package reminder

import (
	"context"
	"fmt"
	"time"
)

// DefaultHorizon bounds how far ahead a reminder may be armed.
const DefaultHorizon = 48 * time.Hour

// ISOLayout is the start-time format used in dedup keys and log records.
const ISOLayout = "2006-01-02T15:04:05.000Z"

// Rule is the set of lead offsets applied to every task of one category.
type Rule struct {
	Category    string
	LeadMinutes []int
}

// leads returns the non-negative offsets in their given order, without repeats.
func (r Rule) leads() []int {
	seen := make(map[int]bool, len(r.LeadMinutes))
	out := make([]int, 0, len(r.LeadMinutes))
	for _, l := range r.LeadMinutes {
		if l < 0 || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// Task is a reminder target.
type Task struct {
	ID          int64
	Title       string
	Start       time.Time
	Counterpart string
	Location    string
}

// ISOStart renders t in UTC with millisecond precision.
func ISOStart(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// Key identifies one reminder opportunity. A key fires at most once per
// Scheduler.
type Key struct {
	Category    string
	TaskID      int64
	Start       string
	LeadMinutes int
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%s/-%dm", k.Category, k.TaskID, k.Start, k.LeadMinutes)
}

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// AfterFunc arms f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

func stdAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Toast is an in-app message.
type Toast struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant,omitempty"`
}

// Toaster shows in-app toasts.
type Toaster interface {
	Toast(ctx context.Context, t Toast) error
}

// Permission is the platform notification permission state.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// PlatformNotifier displays system notifications. The scheduler only reads
// Permission and never asks for it.
type PlatformNotifier interface {
	Permission() Permission
	Show(ctx context.Context, title, body string) error
}

// LogRecord is what the backend log endpoint receives.
type LogRecord struct {
	Category       string `json:"category"`
	Title          string `json:"title"`
	Message        string `json:"message"`
	TaskID         int64  `json:"taskId"`
	ScheduledStart string `json:"scheduledStart"`
	LeadMinutes    int    `json:"leadMinutes"`
}

// LogSink forwards fired reminders to the backend.
type LogSink interface {
	LogReminder(ctx context.Context, rec LogRecord) error
}

// Channels are the sinks a fired reminder is sent to. Nil channels are skipped.
type Channels struct {
	Toast    Toaster
	Platform PlatformNotifier
	Log      LogSink
}

// Observer receives scheduler counters.
type Observer interface {
	Armed(category string)
	Skipped(category, reason string)
	Fired(category string)
	ChannelFailed(channel string)
}

type nopObserver struct{}

func (nopObserver) Armed(string)           {}
func (nopObserver) Skipped(string, string) {}
func (nopObserver) Fired(string)           {}
func (nopObserver) ChannelFailed(string)   {}

// Skip reasons reported to the Observer.
const (
	SkipFired     = "fired"
	SkipPast      = "past"
	SkipHorizon   = "horizon"
	SkipDuplicate = "duplicate"
)

// Message is the human-readable lead text.
func Message(leadMinutes int) string {
	switch leadMinutes {
	case 0:
		return "Starting now"
	case 1:
		return "Starts in 1 minute"
	default:
		return fmt.Sprintf("Starts in %d minutes", leadMinutes)
	}
}

func describe(t Task, leadMinutes int) string {
	msg := Message(leadMinutes)
	if t.Counterpart != "" {
		msg += " with " + t.Counterpart
	}
	if t.Location != "" {
		msg += " at " + t.Location
	}
	return msg
}
