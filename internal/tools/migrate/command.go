package migrate

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/sandeepkv93/course-identity-service/internal/config"
	"github.com/sandeepkv93/course-identity-service/internal/database"
	"github.com/sandeepkv93/course-identity-service/internal/observability"
	"github.com/sandeepkv93/course-identity-service/internal/tools/common"
	"github.com/sandeepkv93/course-identity-service/internal/tools/ui"
)

type options struct {
	envFile string
	timeout time.Duration
	ci      bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Identity store migration tooling",
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "operation timeout")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")

	cmd.AddCommand(
		newUpCommand(opts),
		newStatusCommand(opts),
		newPlanCommand(opts),
	)
	return cmd
}

func newUpCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Create or update the identity tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "migrate up", func(ctx context.Context, db *gorm.DB) ([]string, error) {
				pending := database.PendingTables(db)
				if err := database.Migrate(db); err != nil {
					return nil, err
				}
				if len(pending) == 0 {
					return []string{"schema already up to date"}, nil
				}
				return []string{"created tables: " + strings.Join(pending, ", ")}, nil
			})
		},
	}
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report database reachability and missing tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "migrate status", func(ctx context.Context, db *gorm.DB) ([]string, error) {
				pending := database.PendingTables(db)
				details := []string{"database reachable"}
				if len(pending) == 0 {
					return append(details, "migrations: none pending"), nil
				}
				return append(details, "pending tables: "+strings.Join(pending, ", ")), nil
			})
		},
	}
}

func newPlanCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show what migrate up would do",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "migrate plan", func(ctx context.Context, db *gorm.DB) ([]string, error) {
				details := []string{"would AutoMigrate users and user_courses"}
				for _, table := range database.PendingTables(db) {
					details = append(details, "would create table "+table)
				}
				return append(details, "no mutation executed in plan mode"), nil
			})
		},
	}
}

// execute opens the store, runs fn against it and exits with status 3 on failure.
func execute(opts *options, title string, fn func(context.Context, *gorm.DB) ([]string, error)) error {
	start := time.Now()
	details, err := run(opts, title, func(ctx context.Context) ([]string, error) {
		_, db, err := loadConfigDB(opts.envFile)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		defer func() { _ = sqlDB.Close() }()
		if err := sqlDB.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("db ping: %w", err)
		}
		return fn(ctx, db)
	})
	recordCommand(title, start, err)
	if opts.ci {
		common.PrintCIResult(err == nil, title, details, err)
	}
	if err != nil {
		os.Exit(3)
	}
	return nil
}

func recordCommand(title string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	ctx := context.Background()
	observability.RecordToolCommandRun(ctx, "migrate", title, outcome)
	observability.RecordToolCommandDuration(ctx, "migrate", title, outcome, time.Since(start))
}

func run(opts *options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.ci {
		ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
		defer cancel()
		return fn(ctx)
	}
	return ui.Run(title, opts.timeout, fn)
}

func loadConfigDB(envFile string) (*config.Config, *gorm.DB, error) {
	if err := common.LoadEnvFile(envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}
