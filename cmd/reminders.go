package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/estate-crm/internal/config"
	"github.com/example/estate-crm/internal/reminderlog"
)

func newRemindersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Inspect fired reminders",
	}
	cmd.AddCommand(newRemindersLogCmd())
	return cmd
}

func newRemindersLogCmd() *cobra.Command {
	var limit int
	c := &cobra.Command{
		Use:   "log",
		Short: "List the most recent reminder log records",
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

			es, err := reminderlog.NewRepo(d).Recent(ctx, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range es {
				fmt.Fprintf(out, "%s %s task=%d lead=%dm start=%s %q: %s\n",
					e.CreatedAt.In(cfg.Location).Format(time.RFC3339), e.Record.Category, e.Record.TaskID,
					e.Record.LeadMinutes, e.Record.ScheduledStart, e.Record.Title, e.Record.Message)
			}
			return nil
		},
	}
	c.Flags().IntVar(&limit, "limit", 20, "number of records")
	return c
}
