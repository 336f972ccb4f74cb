package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/edflow/edflow/internal/config"
	"github.com/edflow/edflow/internal/domain/facility"
	"github.com/edflow/edflow/internal/domain/flow"
	"github.com/edflow/edflow/internal/platform/db"
	"github.com/edflow/edflow/migrations"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "edflow-server",
		Short:        "ED waiting-room burden and disengagement-risk service",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(computeCmd())
	root.AddCommand(estimateWaitCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, websocket hub and watch monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func migrationFS(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func openMigrator(ctx context.Context, dir string) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.HasDatabase() {
		return nil, nil, fmt.Errorf("DATABASE_URL is required for migrations")
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrationFS(dir)), pool.Close, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			target, _ := cmd.Flags().GetInt("to")

			ctx := cmd.Context()
			migrator, closePool, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closePool()

			count, err := migrator.UpTo(ctx, target)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Migrations directory (default: embedded)")
	upCmd.Flags().Int("to", 0, "Stop after this version (0 = all)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := cmd.Context()
			migrator, closePool, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatuses(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Migrations directory (default: embedded)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printStatuses(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	for _, s := range statuses {
		status, appliedAt := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format(time.DateTime)
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

// fixedFacility answers every lookup with the same context. The offline
// commands use it in place of the facility directory.
type fixedFacility facility.Context

func (f fixedFacility) Lookup(context.Context, string) facility.Context {
	return facility.Context(f)
}

// offlineService builds a flow service from --leave-weight and
// --facility-wait; a negative wait means the facility publishes none.
func offlineService(cmd *cobra.Command) (*flow.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cal, err := config.LoadCalibration(cfg.CalibrationFile)
	if err != nil {
		return nil, err
	}

	fc := facility.Context{LeaveSignalWeight: cal.DefaultLeaveSignalWeight}
	if cmd.Flags().Changed("leave-weight") {
		fc.LeaveSignalWeight, _ = cmd.Flags().GetFloat64("leave-weight")
	}
	if wait, _ := cmd.Flags().GetFloat64("facility-wait"); wait >= 0 {
		fc.AverageWait = &wait
		fc.Known = true
	}
	return flow.NewService(cal, fixedFacility(fc), zerolog.New(cmd.ErrOrStderr())), nil
}

func readRequest(cmd *cobra.Command, v interface{}) error {
	path, _ := cmd.Flags().GetString("file")
	var r io.Reader = cmd.InOrStdin()
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func addOfflineFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "f", "-", "Request JSON file (- for stdin)")
	cmd.Flags().Float64("leave-weight", 1.0, "Facility leave-signal weight (default from calibration)")
	cmd.Flags().Float64("facility-wait", -1, "Facility published average wait in minutes (negative = unknown)")
}

func computeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Run compute_burden on a JSON request without starting the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := offlineService(cmd)
			if err != nil {
				return err
			}
			var req flow.ComputeBurdenRequest
			if err := readRequest(cmd, &req); err != nil {
				return err
			}
			res, err := svc.ComputeBurden(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	addOfflineFlags(cmd)
	return cmd
}

func estimateWaitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate-wait",
		Short: "Run estimate_wait_minutes on a JSON request without starting the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := offlineService(cmd)
			if err != nil {
				return err
			}
			var req flow.EstimateWaitRequest
			if err := readRequest(cmd, &req); err != nil {
				return err
			}
			res, err := svc.EstimateWait(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	addOfflineFlags(cmd)
	return cmd
}

var _ flow.FacilityLookup = fixedFacility{}
