package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tinygems/tinygems/internal/artist"
	"github.com/tinygems/tinygems/internal/config"
	"github.com/tinygems/tinygems/internal/database"
	"github.com/tinygems/tinygems/internal/filesystem"
	"github.com/tinygems/tinygems/internal/maintenance"
	"github.com/tinygems/tinygems/internal/resolve"
)

func newDBCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect, maintain and export the artist profile database",
	}

	maint := func(fn func(ctx context.Context, svc *maintenance.Service, out io.Writer) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), *configPath, func(ctx context.Context, cfg *config.Config, db *sql.DB, logger *slog.Logger) error {
				return fn(ctx, newMaintenance(cfg, db, logger), cmd.OutOrStdout())
			})
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Print database size and row counts",
			Args:  cobra.NoArgs,
			RunE: maint(func(ctx context.Context, svc *maintenance.Service, out io.Writer) error {
				st, err := svc.Status(ctx)
				if err != nil {
					return err
				}
				return writeIndentedJSON(out, st)
			}),
		},
		&cobra.Command{
			Use:   "optimize",
			Short: "Run PRAGMA optimize and checkpoint the WAL",
			Args:  cobra.NoArgs,
			RunE: maint(func(ctx context.Context, svc *maintenance.Service, _ io.Writer) error {
				return svc.Optimize(ctx)
			}),
		},
		&cobra.Command{
			Use:   "vacuum",
			Short: "Rebuild the database file",
			Args:  cobra.NoArgs,
			RunE: maint(func(ctx context.Context, svc *maintenance.Service, _ io.Writer) error {
				return svc.Vacuum(ctx)
			}),
		},
		&cobra.Command{
			Use:   "backup",
			Short: "Snapshot the database into the backup directory and prune old backups",
			Args:  cobra.NoArgs,
			RunE: maint(func(ctx context.Context, svc *maintenance.Service, out io.Writer) error {
				info, err := svc.Backup(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "wrote %s (%d bytes)\n", info.Filename, info.Size)
				return svc.Prune()
			}),
		},
		&cobra.Command{
			Use:   "backups",
			Short: "List backups, newest first",
			Args:  cobra.NoArgs,
			RunE: maint(func(_ context.Context, svc *maintenance.Service, out io.Writer) error {
				backups, err := svc.ListBackups()
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "FILENAME\tSIZE\tCREATED")
				for _, b := range backups {
					fmt.Fprintf(tw, "%s\t%d\t%s\n", b.Filename, b.Size, b.CreatedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			}),
		},
		newExportCmd(configPath),
	)
	return cmd
}

func newExportCmd(configPath *string) *cobra.Command {
	var outPath, platform string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every stored artist profile as a JSON array",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), *configPath, func(ctx context.Context, _ *config.Config, db *sql.DB, _ *slog.Logger) error {
				profiles, err := exportProfiles(ctx, artist.NewService(db), platform)
				if err != nil {
					return err
				}
				if outPath == "" || outPath == "-" {
					return writeIndentedJSON(cmd.OutOrStdout(), profiles)
				}
				err = filesystem.WriteAtomic(outPath, 0o600, func(w io.Writer) error {
					return writeIndentedJSON(w, profiles)
				})
				if err != nil {
					return fmt.Errorf("writing %s: %w", outPath, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d profiles to %s\n", len(profiles), outPath)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "-", "file to write, or - for stdout")
	cmd.Flags().StringVar(&platform, "platform", "", "only export artists connected on this platform")
	return cmd
}

// exportProfiles pages through the store in name order.
func exportProfiles(ctx context.Context, store *artist.Service, platform string) ([]resolve.Profile, error) {
	all := []resolve.Profile{}
	for page := 1; ; page++ {
		params := artist.ListParams{Page: page, PageSize: 200, Platform: platform}
		params.Validate()
		profiles, total, err := store.List(ctx, params)
		if err != nil {
			return nil, err
		}
		all = append(all, profiles...)
		if len(profiles) == 0 || len(all) >= total {
			return all, nil
		}
	}
}

func newMaintenance(cfg *config.Config, db *sql.DB, logger *slog.Logger) *maintenance.Service {
	return maintenance.NewService(db, maintenance.Options{
		DBPath:    cfg.Database.Path,
		BackupDir: cfg.Database.BackupDir,
		Retention: cfg.Database.BackupRetention,
	}, logger)
}

// withDatabase loads config, opens and migrates the database and runs fn.
func withDatabase(ctx context.Context, configPath string, fn func(context.Context, *config.Config, *sql.DB, *slog.Logger) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	db, err := database.Open(ctx, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck
	if err := database.Migrate(ctx, db, logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return fn(ctx, cfg, db, logger)
}
