// Package cli implements the adminctl maintenance commands.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"bigpartner/internal/config"
	"bigpartner/internal/database"
	"bigpartner/internal/reaper"
	"bigpartner/internal/services"
	"bigpartner/internal/storage"
)

// Opener connects to the configured database
type Opener func(cfg *config.Config) (*gorm.DB, error)

// Env carries what every command needs
type Env struct {
	Config *config.Config
	Open   Opener
	Now    func() time.Time
}

// DefaultEnv loads configuration from the environment
func DefaultEnv() (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return &Env{
		Config: cfg,
		Open:   func(cfg *config.Config) (*gorm.DB, error) { return database.Open(&cfg.Database) },
		Now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// NewRootCommand creates the adminctl root command
func NewRootCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "adminctl",
		Short:         "Big Partner maintenance commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newMigrateCommand(env))
	cmd.AddCommand(newCreateAdminCommand(env))
	cmd.AddCommand(newPurgeTrashCommand(env))
	return cmd
}

func withDB(env *Env, fn func(db *gorm.DB) error) error {
	db, err := env.Open(env.Config)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close(db)
	return fn(db)
}

func newMigrateCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(env, func(db *gorm.DB) error {
				if err := database.Migrate(db); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
				return nil
			})
		},
	}
}

type createAdminOptions struct {
	Username string
	Email    string
	Password string
}

func newCreateAdminCommand(env *Env) *cobra.Command {
	opts := &createAdminOptions{}

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator, or promote an existing user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(env, func(db *gorm.DB) error {
				if err := database.Migrate(db); err != nil {
					return err
				}
				auth := services.NewAuthService(db, &env.Config.Auth, nil, env.Config.Listing)
				u, err := auth.CreateAdmin(cmd.Context(), opts.Username, opts.Email, opts.Password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Admin user ready: %s (id=%d)\n", u.Username, u.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.Username, "username", "admin", "admin username")
	cmd.Flags().StringVar(&opts.Email, "email", "", "admin email address")
	cmd.Flags().StringVar(&opts.Password, "password", "", "admin password (at least 8 characters)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

type purgeOptions struct {
	Days   int
	DryRun bool
}

func newPurgeTrashCommand(env *Env) *cobra.Command {
	opts := &purgeOptions{}

	cmd := &cobra.Command{
		Use:   "purge-trash",
		Short: "Permanently delete properties (and their image files) that have been in the trash past retention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Days < 0 {
				return fmt.Errorf("invalid --days %d: must not be negative", opts.Days)
			}
			retention := time.Duration(opts.Days) * 24 * time.Hour
			images, err := storage.NewImageStore(env.Config.Storage)
			if err != nil {
				return fmt.Errorf("open upload storage: %w", err)
			}
			return withDB(env, func(db *gorm.DB) error {
				n, err := reaper.Sweep(cmd.Context(), db, images, retention, opts.DryRun, env.Now())
				if err != nil {
					return err
				}
				verb := "Purged"
				if opts.DryRun {
					verb = "Would purge"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d properties\n", verb, n)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&opts.Days, "days", env.Config.Trash.RetentionDays, "retention window in days")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", env.Config.Trash.DryRun, "only report what would be purged")
	return cmd
}
