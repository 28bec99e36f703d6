// Package feed re-pulls upcoming schedule items when something changes and
// runs a reminder scheduling pass per category.
package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/estate-crm/internal/logging"
	"github.com/example/estate-crm/internal/reminder"
	"github.com/example/estate-crm/internal/timeline"
)

const (
	DefaultDebounce = 300 * time.Millisecond
	DefaultPoll     = time.Minute
	// DefaultDays covers the reminder horizon: today plus two.
	DefaultDays = 3
)

// Provider returns the items of one calendar day.
type Provider interface {
	ListForDay(ctx context.Context, day time.Time) ([]timeline.Item, error)
}

type Config struct {
	Location *time.Location
	Debounce time.Duration
	Poll     time.Duration
	Days     int
	Now      func() time.Time
}

// Feed owns one reminder scheduler per rule category.
type Feed struct {
	provider Provider
	rules    []reminder.Rule
	cfg      Config
	logger   logging.Logger

	refresh chan struct{}

	mu         sync.Mutex
	schedulers map[string]*reminder.Scheduler
}

// New builds a feed. newScheduler is called once per rule.
func New(p Provider, rules []reminder.Rule, newScheduler func(reminder.Rule) *reminder.Scheduler, cfg Config, logger logging.Logger) *Feed {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Poll <= 0 {
		cfg.Poll = DefaultPoll
	}
	if cfg.Days <= 0 {
		cfg.Days = DefaultDays
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	f := &Feed{
		provider:   p,
		rules:      rules,
		cfg:        cfg,
		logger:     logging.OrNop(logger),
		refresh:    make(chan struct{}, 1),
		schedulers: make(map[string]*reminder.Scheduler, len(rules)),
	}
	for _, r := range rules {
		f.schedulers[r.Category] = newScheduler(r)
	}
	return f
}

// Refresh signals that items changed. Bursts collapse into one pull.
func (f *Feed) Refresh() {
	select {
	case f.refresh <- struct{}{}:
	default:
	}
}

// Run pulls immediately, then on debounced refresh signals and on every poll
// tick. All reminder timers are cancelled when ctx ends.
func (f *Feed) Run(ctx context.Context) error {
	poll := time.NewTicker(f.cfg.Poll)
	defer poll.Stop()

	var debounce *time.Timer
	var debounceC <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
		f.Stop()
	}()

	f.sync(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.refresh:
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(f.cfg.Debounce)
			debounceC = debounce.C
		case <-debounceC:
			debounceC = nil
			f.sync(ctx)
		case <-poll.C:
			f.sync(ctx)
		}
	}
}

func (f *Feed) sync(ctx context.Context) {
	if err := f.Sync(ctx); err != nil {
		f.logger.Warn("sync failed: %v", err)
	}
}

// Sync runs one pull and one scheduling pass per category. On a provider
// error the previous timers are left alone.
func (f *Feed) Sync(ctx context.Context) error {
	tasks, err := f.pull(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rule := range f.rules {
		s, ok := f.schedulers[rule.Category]
		if !ok {
			continue
		}
		res := s.Reschedule(tasks[rule.Category], rule)
		f.logger.Debug("%s: %d tasks, %d reminders armed", rule.Category, len(tasks[rule.Category]), res.Armed)
	}
	return nil
}

func (f *Feed) pull(ctx context.Context) (map[string][]reminder.Task, error) {
	now := f.cfg.Now().In(f.cfg.Location)
	out := make(map[string][]reminder.Task)
	for i := 0; i < f.cfg.Days; i++ {
		day := now.AddDate(0, 0, i)
		items, err := f.provider.ListForDay(ctx, day)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", day.Format("2006-01-02"), err)
		}
		for _, it := range items {
			if it.ScheduledStart == nil {
				continue
			}
			out[it.Kind] = append(out[it.Kind], TaskFromItem(it))
		}
	}
	return out, nil
}

// TaskFromItem maps a schedule item with a start to a reminder target.
func TaskFromItem(it timeline.Item) reminder.Task {
	t := reminder.Task{ID: it.ID, Title: it.Label, Counterpart: it.Counterpart, Location: it.Location}
	if it.ScheduledStart != nil {
		t.Start = *it.ScheduledStart
	}
	return t
}

// Pending lists armed reminders across categories, soonest first.
func (f *Feed) Pending() []reminder.Reminder {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []reminder.Reminder
	for _, s := range f.schedulers {
		out = append(out, s.Pending()...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggerAt.Before(out[j].TriggerAt) })
	return out
}

// Stop tears down every scheduler.
func (f *Feed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.schedulers {
		s.Stop()
	}
}
