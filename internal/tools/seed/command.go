package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/sandeepkv93/course-identity-service/internal/config"
	"github.com/sandeepkv93/course-identity-service/internal/database"
	"github.com/sandeepkv93/course-identity-service/internal/observability"
	"github.com/sandeepkv93/course-identity-service/internal/repository"
	"github.com/sandeepkv93/course-identity-service/internal/service"
	"github.com/sandeepkv93/course-identity-service/internal/tools/common"
	"github.com/sandeepkv93/course-identity-service/internal/tools/ui"
)

type options struct {
	envFile             string
	bootstrapAdminEmail string
	timeout             time.Duration
	ci                  bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "seed", Short: "Identity seed tooling"}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().StringVar(&opts.bootstrapAdminEmail, "bootstrap-admin-email", "", "override bootstrap admin email")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "operation timeout")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(
		newApplyCommand(opts),
		newDryRunCommand(opts),
		newVerifyEmailCommand(opts),
		newEnrollCommand(opts),
	)
	return cmd
}

func newApplyCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Promote the bootstrap admin if that identity exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "seed apply", func(ctx context.Context) ([]string, error) {
				cfg, db, err := loadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer closeDB(db)
				report, err := database.SeedSync(db, adminEmail(cfg, opts))
				if err != nil {
					return nil, err
				}
				switch {
				case report.Email == "":
					return []string{"no bootstrap admin email configured"}, nil
				case !report.Found:
					return []string{"no identity registered under " + report.Email, "it will start as admin once activated"}, nil
				case report.Promoted:
					return []string{"promoted to admin: " + report.Email}, nil
				default:
					return []string{"already admin: " + report.Email}, nil
				}
			})
		},
	}
}

func newDryRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run",
		Short: "Show what seeding would do",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "seed dry-run", func(ctx context.Context) ([]string, error) {
				if err := common.LoadEnvFile(opts.envFile); err != nil {
					return nil, err
				}
				cfg, err := config.Load()
				if err != nil {
					return nil, err
				}
				email := adminEmail(cfg, opts)
				if email == "" {
					return []string{"no bootstrap admin email configured, nothing to do"}, nil
				}
				return []string{fmt.Sprintf("would assign admin role to identity if present: %s", email)}, nil
			})
		},
	}
}

func newVerifyEmailCommand(opts *options) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "verify-email",
		Short: "Mark an identity as verified",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "seed verify-email", func(ctx context.Context) ([]string, error) {
				if strings.TrimSpace(email) == "" {
					return nil, fmt.Errorf("email is required")
				}
				_, db, err := loadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer closeDB(db)
				if err := database.VerifyEmail(db, email); err != nil {
					return nil, err
				}
				return []string{fmt.Sprintf("marked verified: %s", strings.TrimSpace(strings.ToLower(email)))}, nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email to mark verified")
	return cmd
}

// newEnrollCommand records a course purchase the way the order flow does,
// rewriting the identity's live session as well as the store.
func newEnrollCommand(opts *options) *cobra.Command {
	var email, courseID string
	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Add a course to an identity's enrollments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "seed enroll", func(ctx context.Context) ([]string, error) {
				if strings.TrimSpace(email) == "" || strings.TrimSpace(courseID) == "" {
					return nil, fmt.Errorf("email and course are required")
				}
				cfg, db, err := loadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer closeDB(db)
				client := redis.NewClient(&redis.Options{
					Addr:     cfg.RedisAddr,
					Password: cfg.RedisPassword,
					DB:       cfg.RedisDB,
				})
				defer func() { _ = client.Close() }()

				users := repository.NewUserRepository(db)
				sessions := repository.NewRedisSessionRepository(client, cfg.RedisKeyPrefix, cfg.JWTRefreshTTL)
				svc := service.NewUserService(users, sessions, service.DisabledStorageService{})

				user, err := users.FindByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
				if err != nil {
					if errors.Is(err, repository.ErrUserNotFound) {
						return nil, fmt.Errorf("no identity registered under %s", email)
					}
					return nil, err
				}
				user, err = svc.AddCourse(ctx, user.ID, courseID)
				if err != nil {
					return nil, err
				}
				return []string{
					fmt.Sprintf("enrolled %s in %s", user.Email, strings.TrimSpace(courseID)),
					fmt.Sprintf("courses on record: %d", len(user.Courses)),
				}, nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email of the enrolling identity")
	cmd.Flags().StringVar(&courseID, "course", "", "course id to add")
	return cmd
}

func execute(opts *options, title string, fn func(context.Context) ([]string, error)) error {
	start := time.Now()
	details, err := run(opts, title, fn)
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
	observability.RecordToolCommandRun(ctx, "seed", title, outcome)
	observability.RecordToolCommandDuration(ctx, "seed", title, outcome, time.Since(start))
}

func run(opts *options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.ci {
		ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
		defer cancel()
		return fn(ctx)
	}
	return ui.Run(title, opts.timeout, fn)
}

func adminEmail(cfg *config.Config, opts *options) string {
	if opts.bootstrapAdminEmail != "" {
		return strings.TrimSpace(strings.ToLower(opts.bootstrapAdminEmail))
	}
	return cfg.BootstrapAdminEmail
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

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
