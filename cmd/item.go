package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/estate-crm/internal/config"
	"github.com/example/estate-crm/internal/items"
	"github.com/example/estate-crm/internal/plans"
	"github.com/example/estate-crm/internal/timeline"
)

const (
	dayLayout   = "2006-01-02"
	stampLayout = "2006-01-02 15:04"
)

func newItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage schedule items (non-UI)",
	}
	cmd.AddCommand(newItemCreateCmd())
	cmd.AddCommand(newItemListCmd())
	cmd.AddCommand(newItemNudgeCmd())
	return cmd
}

// parseDay reads YYYY-MM-DD (or empty for today) in loc.
func parseDay(v string, loc *time.Location) (time.Time, error) {
	if v == "" || v == "today" {
		y, m, d := time.Now().In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	}
	t, err := time.ParseInLocation(dayLayout, v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q (want YYYY-MM-DD)", v)
	}
	return t, nil
}

func newItemCreateCmd() *cobra.Command {
	var (
		label       string
		kind        string
		start       string
		minutes     int
		estMinutes  int
		counterpart string
		location    string
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Create a task or showing, optionally scheduled",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Base()
			if err != nil {
				return err
			}
			ctx := context.Background()
			d, err := openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			it := timeline.Item{
				Label:              label,
				Kind:               kind,
				EstDurationMinutes: estMinutes,
				Counterpart:        counterpart,
				Location:           location,
			}
			if start != "" {
				s, err := time.ParseInLocation(stampLayout, start, cfg.Location)
				if err != nil {
					return fmt.Errorf("invalid --start (want YYYY-MM-DD HH:MM): %w", err)
				}
				if minutes <= 0 {
					minutes = estMinutes
				}
				if minutes <= 0 {
					minutes = timeline.DefaultDurationMinutes
				}
				e := s.Add(time.Duration(minutes) * time.Minute)
				it.ScheduledStart, it.ScheduledEnd = &s, &e
			}

			id, err := items.NewRepo(d).Create(ctx, it)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created item id=%d\n", id)
			return nil
		},
	}

	c.Flags().StringVar(&label, "label", "", "item label")
	c.Flags().StringVar(&kind, "kind", timeline.KindTask, "task or showing")
	c.Flags().StringVar(&start, "start", "", "local start YYYY-MM-DD HH:MM (omit for unscheduled)")
	c.Flags().IntVar(&minutes, "minutes", 0, "scheduled length (defaults to the estimate)")
	c.Flags().IntVar(&estMinutes, "est-minutes", timeline.DefaultDurationMinutes, "estimated duration in minutes")
	c.Flags().StringVar(&counterpart, "with", "", "client or counterpart name")
	c.Flags().StringVar(&location, "at", "", "address or meeting place")
	_ = c.MarkFlagRequired("label")
	return c
}

func newItemListCmd() *cobra.Command {
	var day string
	c := &cobra.Command{
		Use:   "list",
		Short: "List a day's items plus everything unscheduled",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Base()
			if err != nil {
				return err
			}
			dt, err := parseDay(day, cfg.Location)
			if err != nil {
				return err
			}
			ctx := context.Background()
			d, err := openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			its, err := items.NewRepo(d).ListForDay(ctx, dt)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, it := range its {
				when := "unscheduled"
				if it.Scheduled() {
					when = it.ScheduledStart.In(cfg.Location).Format(stampLayout) + ".." + it.ScheduledEnd.In(cfg.Location).Format("15:04")
				}
				fmt.Fprintf(out, "id=%d kind=%s label=%q when=%s est=%dm\n", it.ID, it.Kind, it.Label, when, it.EstDurationMinutes)
			}
			return nil
		},
	}
	c.Flags().StringVar(&day, "day", "", "day YYYY-MM-DD (default today)")
	return c
}

func newItemNudgeCmd() *cobra.Command {
	var (
		id    int64
		op    string
		clock string
		delta int
		day   string
	)
	c := &cobra.Command{
		Use:   "nudge",
		Short: "Apply a timeline edit (set-start, set-end, shift, assign) to an item",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Base()
			if err != nil {
				return err
			}
			dt, err := parseDay(day, cfg.Location)
			if err != nil {
				return err
			}
			ctx := context.Background()
			d, err := openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			repo := items.NewRepo(d)
			it, err := repo.Get(ctx, id)
			if err != nil {
				return err
			}
			it = it.In(cfg.Location)

			w, err := resolveWindow(ctx, plans.NewRepo(d), dt, nil, cfg.WorkdayHours)
			if err != nil {
				return err
			}
			ed := timeline.Editor{OnEdit: func(ctx context.Context, it timeline.Item, start, end time.Time) error {
				return repo.UpdateTimes(ctx, it.ID, start, end)
			}}
			r, err := ed.Apply(ctx, it, timeline.Gesture{Op: op, Clock: clock, Delta: delta}, w)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "item %d now %s..%s\n", id, r.Start.Format(stampLayout), r.End.Format("15:04"))
			return nil
		},
	}
	c.Flags().Int64Var(&id, "id", 0, "item id")
	c.Flags().StringVar(&op, "op", timeline.OpShift, "set-start, set-end, shift or assign")
	c.Flags().StringVar(&clock, "clock", "", "HH:MM for set-start, set-end and assign")
	c.Flags().IntVar(&delta, "delta", 0, "minutes to shift by (negative moves earlier)")
	c.Flags().StringVar(&day, "day", "", "day used by assign (default today)")
	_ = c.MarkFlagRequired("id")
	return c
}
