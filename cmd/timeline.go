package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/estate-crm/internal/config"
	"github.com/example/estate-crm/internal/items"
	"github.com/example/estate-crm/internal/plans"
	"github.com/example/estate-crm/internal/timeline"
)

func newTimelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Inspect day timelines",
	}
	cmd.AddCommand(newTimelineShowCmd())
	return cmd
}

func newTimelineShowCmd() *cobra.Command {
	var (
		day        string
		start, end int
	)
	c := &cobra.Command{
		Use:   "show",
		Short: "Print the block layout of a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Base()
			if err != nil {
				return err
			}
			dt, err := parseDay(day, cfg.Location)
			if err != nil {
				return err
			}
			var override *timeline.HourRange
			if cmd.Flags().Changed("start") || cmd.Flags().Changed("end") {
				h := timeline.HourRange{StartHour: start, EndHour: end}
				if !h.Valid() {
					return fmt.Errorf("invalid hours %d-%d", start, end)
				}
				override = &h
			}

			ctx := context.Background()
			d, err := openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			w, err := resolveWindow(ctx, plans.NewRepo(d), dt, override, cfg.WorkdayHours)
			if err != nil {
				return err
			}
			its, err := items.NewRepo(d).ListForDay(ctx, dt)
			if err != nil {
				return err
			}
			for i := range its {
				its[i] = its[i].In(cfg.Location)
			}
			printArrangement(cmd.OutOrStdout(), cfg.Layout.Arrange(its, w))
			return nil
		},
	}
	c.Flags().StringVar(&day, "day", "", "day YYYY-MM-DD (default today)")
	c.Flags().IntVar(&start, "start", timeline.DefaultHours.StartHour, "override window start hour")
	c.Flags().IntVar(&end, "end", timeline.DefaultHours.EndHour, "override window end hour")
	return c
}

func printArrangement(out io.Writer, a timeline.Arrangement) {
	fmt.Fprintf(out, "%s  %02d:00-%02d:00  height=%.1fpx\n",
		a.Window.Date.Format(dayLayout), a.Window.StartHour, a.Window.EndHour, a.Height)
	for _, g := range a.Gridlines {
		fmt.Fprintf(out, "  %7.1f  %s\n", g.Top, g.Label)
	}
	for _, b := range a.Blocks {
		fmt.Fprintf(out, "  block id=%d top=%.1f height=%.1f %s-%s %s %q\n",
			b.Item.ID, b.Top, b.Height,
			b.Item.ScheduledStart.Format("15:04"), b.Item.ScheduledEnd.Format("15:04"),
			b.Item.Kind, b.Item.Label)
	}
	if len(a.Unscheduled) > 0 {
		labels := make([]string, 0, len(a.Unscheduled))
		for _, it := range a.Unscheduled {
			labels = append(labels, fmt.Sprintf("%d:%q", it.ID, it.Label))
		}
		fmt.Fprintf(out, "  unscheduled: %s\n", strings.Join(labels, ", "))
	}
}
