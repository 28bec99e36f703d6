package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/estate-crm/internal/config"
	"github.com/example/estate-crm/internal/db"
	"github.com/example/estate-crm/internal/plans"
	"github.com/example/estate-crm/internal/timeline"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage day plans (the nominal working hours of a day)",
	}
	cmd.AddCommand(newPlanSetCmd())
	return cmd
}

func newPlanSetCmd() *cobra.Command {
	var day, from, to string
	c := &cobra.Command{
		Use:   "set",
		Short: "Set the planned start and end of a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Base()
			if err != nil {
				return err
			}
			dt, err := parseDay(day, cfg.Location)
			if err != nil {
				return err
			}
			start, err := onDay(dt, from)
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			end, err := onDay(dt, to)
			if err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}

			ctx := context.Background()
			d, err := openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := plans.NewRepo(d).Set(ctx, dt, timeline.PlanBounds{StartsAt: start, EndsAt: end}); err != nil {
				return err
			}
			w, _ := timeline.ResolveWindow(dt, nil, &timeline.PlanBounds{StartsAt: start, EndsAt: end}, cfg.WorkdayHours)
			fmt.Fprintf(cmd.OutOrStdout(), "plan %s %s..%s (timeline %02d:00-%02d:00)\n",
				dt.Format(dayLayout), start.Format("15:04"), end.Format("15:04"), w.StartHour, w.EndHour)
			return nil
		},
	}
	c.Flags().StringVar(&day, "day", "", "day YYYY-MM-DD (default today)")
	c.Flags().StringVar(&from, "from", "", "planned start HH:MM")
	c.Flags().StringVar(&to, "to", "", "planned end HH:MM")
	_ = c.MarkFlagRequired("from")
	_ = c.MarkFlagRequired("to")
	return c
}

func onDay(day time.Time, hhmm string) (time.Time, error) {
	h, m, err := timeline.ParseHourMinute(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	y, mo, d := day.Date()
	return time.Date(y, mo, d, h, m, 0, 0, day.Location()), nil
}

type planGetter interface {
	Get(ctx context.Context, day time.Time) (timeline.PlanBounds, error)
}

// resolveWindow looks up day's plan (if any) and derives the timeline window.
func resolveWindow(ctx context.Context, p planGetter, day time.Time, override *timeline.HourRange, def timeline.HourRange) (timeline.Window, error) {
	var plan *timeline.PlanBounds
	pb, err := p.Get(ctx, day)
	switch {
	case err == nil:
		plan = &pb
	case !db.IsNotFound(err):
		return timeline.Window{}, err
	}
	return timeline.ResolveWindow(day, override, plan, def)
}
