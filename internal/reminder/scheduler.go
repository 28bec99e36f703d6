package reminder

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/estate-crm/internal/logging"
)

const channelTimeout = 10 * time.Second

// Scheduler keeps one timer per (task, lead offset) and fires each dedup key
// at most once over its lifetime. The fired set and the live timers belong to
// the instance; separate schedulers never share state.
type Scheduler struct {
	channels Channels
	horizon  time.Duration
	now      func() time.Time
	after    AfterFunc
	dispatch func(func())
	logger   logging.Logger
	observer Observer

	mu     sync.Mutex
	fired  map[Key]bool
	timers map[Key]*handle
	closed bool
}

type handle struct {
	timer    Timer
	reminder Reminder
	// cancelled is set under Scheduler.mu when Stop won the race with expiry.
	cancelled bool
}

// Reminder is an armed or fired reminder.
type Reminder struct {
	Key       Key
	Task      Task
	TriggerAt time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

func WithAfterFunc(f AfterFunc) Option { return func(s *Scheduler) { s.after = f } }

// WithDispatcher replaces the goroutine-per-channel dispatch.
func WithDispatcher(d func(func())) Option { return func(s *Scheduler) { s.dispatch = d } }

func WithHorizon(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.horizon = d
		}
	}
}

func WithLogger(l logging.Logger) Option { return func(s *Scheduler) { s.logger = logging.OrNop(l) } }

func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observer = o
		}
	}
}

// New returns an idle scheduler.
func New(ch Channels, opts ...Option) *Scheduler {
	s := &Scheduler{
		channels: ch,
		horizon:  DefaultHorizon,
		now:      time.Now,
		after:    stdAfterFunc,
		dispatch: func(f func()) { go f() },
		logger:   logging.Nop(),
		observer: nopObserver{},
		fired:    make(map[Key]bool),
		timers:   make(map[Key]*handle),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// PassResult summarises one scheduling pass.
type PassResult struct {
	Cancelled  int
	Armed      int
	Duplicates int
	Fired      int
	Past       int
	Horizon    int
}

type taskKey struct {
	id    int64
	start string
}

// Reschedule runs a scheduling pass: every live timer is cancelled before any
// new one is armed. Tasks repeating an (id, start) pair already seen in the
// pass are ignored. A lead offset is armed only if its key has not fired and
// its trigger time is after now and no further than the horizon.
func (s *Scheduler) Reschedule(tasks []Task, rule Rule) PassResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res PassResult
	if s.closed {
		return res
	}
	res.Cancelled = s.cancelAllLocked()

	now := s.now()
	leads := rule.leads()
	seen := make(map[taskKey]bool, len(tasks))
	for _, t := range tasks {
		if t.Start.IsZero() {
			continue
		}
		tk := taskKey{id: t.ID, start: ISOStart(t.Start)}
		if seen[tk] {
			res.Duplicates++
			s.observer.Skipped(rule.Category, SkipDuplicate)
			continue
		}
		seen[tk] = true

		for _, lead := range leads {
			k := Key{Category: rule.Category, TaskID: t.ID, Start: tk.start, LeadMinutes: lead}
			triggerAt := t.Start.Add(-time.Duration(lead) * time.Minute)
			wait := triggerAt.Sub(now)
			switch {
			case s.fired[k]:
				res.Fired++
				s.observer.Skipped(rule.Category, SkipFired)
				continue
			case wait <= 0:
				res.Past++
				s.observer.Skipped(rule.Category, SkipPast)
				continue
			case wait > s.horizon:
				res.Horizon++
				s.observer.Skipped(rule.Category, SkipHorizon)
				continue
			}
			h := &handle{reminder: Reminder{Key: k, Task: t, TriggerAt: triggerAt}}
			h.timer = s.after(wait, func() { s.fire(h) })
			s.timers[k] = h
			res.Armed++
			s.observer.Armed(rule.Category)
		}
	}
	s.logger.Debug("pass %q: armed=%d cancelled=%d dup=%d fired=%d past=%d horizon=%d",
		rule.Category, res.Armed, res.Cancelled, res.Duplicates, res.Fired, res.Past, res.Horizon)
	return res
}

// Stop cancels every outstanding timer. Later passes are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAllLocked()
	s.closed = true
}

// cancelAllLocked drops every live timer. A timer whose Stop reports false
// has already expired; its queued callback still fires the reminder.
func (s *Scheduler) cancelAllLocked() int {
	n := len(s.timers)
	for k, h := range s.timers {
		if h.timer.Stop() {
			h.cancelled = true
		}
		delete(s.timers, k)
	}
	return n
}

// LiveKeys lists the keys that currently have a pending timer.
func (s *Scheduler) LiveKeys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Key, 0, len(s.timers))
	for k := range s.timers {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Pending lists armed reminders ordered by trigger time.
func (s *Scheduler) Pending() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Reminder, 0, len(s.timers))
	for _, h := range s.timers {
		out = append(out, h.reminder)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggerAt.Before(out[j].TriggerAt) })
	return out
}

// Fired reports whether k has already fired.
func (s *Scheduler) Fired(k Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired[k]
}

// fire runs on timer expiry. A cancelled handle does nothing, and so does any
// callback arriving after Stop.
func (s *Scheduler) fire(h *handle) {
	k := h.reminder.Key
	s.mu.Lock()
	if h.cancelled || s.closed {
		s.mu.Unlock()
		return
	}
	if cur, ok := s.timers[k]; ok {
		if cur != h && cur.timer.Stop() {
			cur.cancelled = true
		}
		delete(s.timers, k)
	}
	if s.fired[k] {
		s.mu.Unlock()
		return
	}
	// marked before any channel runs so a failing channel cannot refire k
	s.fired[k] = true
	ch := s.channels
	s.mu.Unlock()

	s.observer.Fired(k.Category)
	s.logger.Info("fired %s", k)
	s.notify(ch, h.reminder)
}

func (s *Scheduler) notify(ch Channels, r Reminder) {
	title := r.Task.Title
	msg := describe(r.Task, r.Key.LeadMinutes)

	if ch.Toast != nil {
		s.send("toast", func(ctx context.Context) error {
			return ch.Toast.Toast(ctx, Toast{Title: title, Description: msg})
		})
	}
	if ch.Platform != nil {
		s.send("platform", func(ctx context.Context) error {
			if ch.Platform.Permission() != PermissionGranted {
				return nil
			}
			return ch.Platform.Show(ctx, title, msg)
		})
	}
	if ch.Log != nil {
		rec := LogRecord{
			Category:       r.Key.Category,
			Title:          title,
			Message:        msg,
			TaskID:         r.Task.ID,
			ScheduledStart: r.Key.Start,
			LeadMinutes:    r.Key.LeadMinutes,
		}
		s.send("log", func(ctx context.Context) error {
			return ch.Log.LogReminder(ctx, rec)
		})
	}
}

// send dispatches one channel. Errors and panics stay inside the channel.
func (s *Scheduler) send(name string, f func(ctx context.Context) error) {
	s.dispatch(func() {
		defer func() {
			if p := recover(); p != nil {
				s.observer.ChannelFailed(name)
				s.logger.Warn("%s channel panicked: %v", name, p)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), channelTimeout)
		defer cancel()
		if err := f(ctx); err != nil {
			s.observer.ChannelFailed(name)
			s.logger.Debug("%s channel: %v", name, err)
		}
	})
}
