package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/estate-crm/internal/auth"
	"github.com/example/estate-crm/internal/config"
	"github.com/example/estate-crm/internal/db"
	"github.com/example/estate-crm/internal/feed"
	"github.com/example/estate-crm/internal/items"
	"github.com/example/estate-crm/internal/live"
	"github.com/example/estate-crm/internal/logging"
	"github.com/example/estate-crm/internal/metrics"
	"github.com/example/estate-crm/internal/migrate"
	"github.com/example/estate-crm/internal/notify"
	"github.com/example/estate-crm/internal/plans"
	"github.com/example/estate-crm/internal/reminder"
	"github.com/example/estate-crm/internal/reminderlog"
	"github.com/example/estate-crm/internal/web"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the timeline UI + reminder scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Debug)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.Ping(ctx); err != nil {
				return fmt.Errorf("db ping: %w", err)
			}

			if migrateUp {
				if _, err := migrate.Up(ctx, d, logger.Component("migrate")); err != nil {
					return err
				}
			}

			m, err := metrics.New("estatecrm", prometheus.DefaultRegisterer)
			if err != nil {
				return err
			}

			authStore := auth.NewStore(d, cfg.CookieHashKey, cfg.CookieBlockKey)
			itemRepo := items.NewRepo(d)
			logRepo := reminderlog.NewRepo(d)
			hub := live.NewHub(logger.Component("live"))
			platform := &notify.Platform{Pages: hub, Perms: notify.NewPermissions()}

			// reminders
			channels := reminder.Channels{
				Toast:    hub,
				Platform: platform,
				Log:      logSink(cfg, logRepo),
			}
			f := feed.New(itemRepo, cfg.Rules, func(rule reminder.Rule) *reminder.Scheduler {
				return reminder.New(channels,
					reminder.WithHorizon(cfg.Horizon),
					reminder.WithLogger(logger.Component("reminder/"+rule.Category)),
					reminder.WithObserver(m),
				)
			}, feed.Config{
				Location: cfg.Location,
				Debounce: cfg.FeedDebounce,
				Poll:     cfg.FeedPoll,
			}, logger.Component("feed"))

			// web
			ws := &web.Server{
				Auth:     authStore,
				Items:    itemRepo,
				Plans:    plans.NewRepo(d),
				Logs:     logRepo,
				Pages:    hub,
				Platform: platform,
				Feed:     f,
				Metrics:  m,
				Gatherer: prometheus.DefaultGatherer,
				Location: cfg.Location,
				Hours:    cfg.WorkdayHours,
				Layout:   cfg.Layout,
				LogToken: cfg.ReminderToken,
				Logger:   logger.Component("web"),
			}

			if cfg.ReminderLogURL != "" {
				logger.Info("reminder log records go to %s", cfg.ReminderLogURL)
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return f.Run(gctx) })
			g.Go(func() error { return web.Start(gctx, cfg.ListenAddr, ws.Routes(), logger.Component("web")) })
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")

	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}

// logSink picks the reminder log channel: the external endpoint when one is
// configured, else the local reminder_logs table.
func logSink(cfg config.Config, local *reminderlog.Repo) reminder.LogSink {
	if cfg.ReminderLogURL != "" {
		return notify.NewLogClient(cfg.ReminderLogURL, cfg.ReminderToken)
	}
	return local
}
