package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/estate-crm/internal/config"
	"github.com/example/estate-crm/internal/db"
	"github.com/example/estate-crm/internal/logging"
	"github.com/example/estate-crm/internal/migrate"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "estatecrm",
		Short: "Agent day planner: timeline UI, schedule editing and start-time reminders",
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newServerCmd())
	root.AddCommand(newUserCmd())
	root.AddCommand(newItemCmd())
	root.AddCommand(newPlanCmd())
	root.AddCommand(newTimelineCmd())
	root.AddCommand(newRemindersCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openDB connects and brings the schema up to date for one-shot commands.
func openDB(ctx context.Context, cfg config.Config) (*db.DB, error) {
	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if _, err := migrate.Up(ctx, d, logging.New(cfg.Debug).Component("migrate")); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}
