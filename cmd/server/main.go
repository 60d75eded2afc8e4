/*
main.go - Application entry point

PURPOSE:
  Command-line binary of the timesheet engine: the HTTP server plus
  maintenance commands that run the same engine against the same store.

COMMANDS:
  serve                     HTTP server with graceful shutdown
  generate month --user     Fill the current month
  generate year  --user --year [--state]
  export --user --year --output   Year balance and entries as xlsx
  statuses import --file    Replace status master data from JSON
  references import --file  Register reference codes from JSON
  users set --id ...        Create or update a profile

GLOBAL FLAGS:
  --config  YAML config file (optional; TIMESHEET_* env vars override)
  --db      SQLite database path (overrides database.path)
            Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Stop the generation scheduler
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration keys
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/warp/timesheet-engine/api"
	"github.com/warp/timesheet-engine/config"
	"github.com/warp/timesheet-engine/export"
	"github.com/warp/timesheet-engine/factory"
	"github.com/warp/timesheet-engine/holiday"
	"github.com/warp/timesheet-engine/store/sqlite"
	"github.com/warp/timesheet-engine/timesheet"
)

// app is the wiring shared by all commands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *sqlite.Store
	deps   timesheet.Dependencies
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		a       = &app{}
	)
	v := config.New()

	root := &cobra.Command{
		Use:          "timesheet",
		Short:        "Daily time entries, generation, approval lifecycle and balances.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context(), v, cfgFile)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	root.PersistentFlags().String("db", "", "SQLite database path")
	v.BindPFlag(config.KeyDatabasePath, root.PersistentFlags().Lookup("db"))

	root.AddCommand(
		newServeCmd(a),
		newGenerateCmd(a),
		newExportCmd(a),
		newStatusesCmd(a),
		newReferencesCmd(a),
		newUsersCmd(a),
	)
	return root
}

func (a *app) open(ctx context.Context, v *viper.Viper, cfgFile string) error {
	cfg, err := config.LoadFile(v, cfgFile)
	if err != nil {
		return err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	a.cfg, a.logger, a.store = cfg, logger, store
	a.deps = timesheet.Dependencies{
		Config:   cfg.TimesheetConfig(),
		Logger:   logger,
		Holidays: timesheet.NewHolidayCache(holiday.NewClient(cfg.Holidays.BaseURL, cfg.Holidays.Timeout), logger),
	}

	if cfg.Database.StatusesFile != "" {
		if err := a.importStatuses(ctx, cfg.Database.StatusesFile); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) close() error {
	if a.logger != nil {
		a.logger.Sync()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

func (a *app) inTx(ctx context.Context, fn func(*timesheet.Engine) error) error {
	return a.store.WithTx(ctx, func(s timesheet.Store) error {
		return fn(timesheet.NewEngine(s, a.deps))
	})
}

func (a *app) importStatuses(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read statuses file: %w", err)
	}
	catalog, err := factory.NewStatusFactory().ParseStatusCatalog(data)
	if err != nil {
		return err
	}
	if err := a.store.SaveStatuses(ctx, catalog); err != nil {
		return err
	}
	a.logger.Info("status master data imported", zap.String("file", path), zap.Int("statuses", len(catalog)))
	return nil
}

// =============================================================================
// SERVE
// =============================================================================

func newServeCmd(a *app) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			return a.serve()
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "HTTP server port")
	return cmd
}

func (a *app) serve() error {
	handler := api.NewHandler(a.store, a.deps)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		Logger:         a.logger,
	})

	scheduler := api.NewGenerationScheduler(a.store, a.deps)
	scheduler.Enabled = a.cfg.Scheduler.Enabled
	scheduler.CheckInterval = a.cfg.Scheduler.Interval
	scheduler.Start()
	defer scheduler.Stop()
	if next := scheduler.NextRunTime(); !next.IsZero() {
		a.logger.Info("next scheduled generation", zap.Time("at", next))
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", zap.Int("port", a.cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}

	a.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.logger.Info("server stopped")
	return nil
}

// =============================================================================
// GENERATE
// =============================================================================

func newGenerateCmd(a *app) *cobra.Command {
	var (
		userID string
		year   int
		state  string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate default entries for a user",
	}

	month := &cobra.Command{
		Use:   "month",
		Short: "Fill the current month with default work entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.generate(cmd, func(eng *timesheet.Engine) (timesheet.GenerationResult, error) {
				return eng.Generation.GenerateMonthly(cmd.Context(), timesheet.UserID(userID))
			})
		},
	}
	yearCmd := &cobra.Command{
		Use:   "year",
		Short: "Fill a year with work, weekend and holiday entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.generate(cmd, func(eng *timesheet.Engine) (timesheet.GenerationResult, error) {
				return eng.Generation.GenerateYearly(cmd.Context(), timesheet.UserID(userID), year, state)
			})
		},
	}

	for _, c := range []*cobra.Command{month, yearCmd} {
		c.Flags().StringVar(&userID, "user", "", "user id")
		c.MarkFlagRequired("user")
	}
	yearCmd.Flags().IntVar(&year, "year", time.Now().Year(), "calendar year")
	yearCmd.Flags().StringVar(&state, "state", "", "state code for holidays (default: user's state)")

	cmd.AddCommand(month, yearCmd)
	return cmd
}

func (a *app) generate(cmd *cobra.Command, run func(*timesheet.Engine) (timesheet.GenerationResult, error)) error {
	var result timesheet.GenerationResult
	err := a.inTx(cmd.Context(), func(eng *timesheet.Engine) error {
		var err error
		result, err = run(eng)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d created, %d skipped\n",
		result.UserID, result.Period, result.Created, result.Skipped)
	return nil
}

// =============================================================================
// EXPORT
// =============================================================================

func newExportCmd(a *app) *cobra.Command {
	var (
		userID string
		year   int
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the year balance and entries of a user as xlsx",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var (
				balance timesheet.YearBalance
				entries []timesheet.TimeEntry
			)
			err := a.inTx(ctx, func(eng *timesheet.Engine) error {
				var err error
				if balance, err = eng.Balances.YearBalance(ctx, timesheet.UserID(userID), year); err != nil {
					return err
				}
				period := timesheet.YearPeriod(year)
				entries, err = eng.Entries.List(ctx, timesheet.UserID(userID), period.Start, period.End)
				return err
			})
			if err != nil {
				return err
			}

			if output == "" {
				output = fmt.Sprintf("balance-%s-%d.xlsx", userID, year)
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create output %s: %w", output, err)
			}
			defer f.Close()
			if err := export.WriteYearReport(f, balance, entries); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d entries)\n", output, len(entries))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "calendar year")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default balance-<user>-<year>.xlsx)")
	cmd.MarkFlagRequired("user")
	return cmd
}

// =============================================================================
// MASTER DATA
// =============================================================================

func newStatusesCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "statuses",
		Short: "Manage status master data",
	}
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Replace status master data from a JSON file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.importStatuses(cmd.Context(), file)
		},
	}
	importCmd.Flags().StringVar(&file, "file", "", "JSON status list")
	importCmd.MarkFlagRequired("file")
	cmd.AddCommand(importCmd)
	return cmd
}

func newReferencesCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "references",
		Short: "Manage project, activity, work location and travel type codes",
	}
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Register reference codes from a JSON file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read references file: %w", err)
			}
			refs, err := factory.NewStatusFactory().ParseReferences(data)
			if err != nil {
				return err
			}
			for _, ref := range refs {
				if err := a.store.AddReference(cmd.Context(), ref.Kind, ref.Code, ref.Name); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d reference codes\n", len(refs))
			return nil
		},
	}
	importCmd.Flags().StringVar(&file, "file", "", "JSON reference list")
	importCmd.MarkFlagRequired("file")
	cmd.AddCommand(importCmd)
	return cmd
}

func newUsersCmd(a *app) *cobra.Command {
	var (
		user   timesheet.User
		id     string
		weekly string
	)
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage employee profiles",
	}
	set := &cobra.Command{
		Use:   "set",
		Short: "Create or update a profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			hours, err := decimal.NewFromString(weekly)
			if err != nil {
				return fmt.Errorf("invalid --weekly-hours %q: %w", weekly, err)
			}
			user.ID = timesheet.UserID(id)
			user.WeeklyHours = hours

			var expected decimal.Decimal
			err = a.inTx(cmd.Context(), func(eng *timesheet.Engine) error {
				if err := eng.Profiles.Users.SaveUser(cmd.Context(), user); err != nil {
					return err
				}
				var err error
				expected, err = eng.Profiles.ExpectedDailyHours(cmd.Context(), user.ID)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s hours per day\n", user.ID, expected)
			return nil
		},
	}
	set.Flags().StringVar(&id, "id", "", "user id")
	set.Flags().StringVar(&user.Name, "name", "", "display name")
	set.Flags().StringVar(&weekly, "weekly-hours", "40", "contracted hours per week")
	set.Flags().IntVar(&user.WorkingDaysPerWeek, "days", 5, "working days per week")
	set.Flags().StringVar(&user.StateCode, "state", "", "state code for holidays")
	set.MarkFlagRequired("id")
	cmd.AddCommand(set)
	return cmd
}
