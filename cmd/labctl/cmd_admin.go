package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/caddl-lab-desk/internal/app"
	"github.com/caddl-lab-desk/internal/domain"
)

func (c *cli) backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or import the full data archive",
	}

	var output string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write all reports and consultations to a JSON archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			archive, err := a.Reports.Export(cmd.Context())
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(archive, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode archive: %w", err)
			}

			if output == "-" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if output == "" {
				output = fmt.Sprintf("caddl_backup_%s.json", time.Now().Format(domain.DateLayout))
			}
			if dir := filepath.Dir(output); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create %s: %w", dir, err)
				}
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("failed to write archive: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d reports and %d consultations to %s\n",
				len(archive.Reports), len(archive.Consultations), output)
			return nil
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "", `archive path, "-" for stdout`)

	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Replace stored data with the contents of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read archive: %w", err)
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			result, err := a.Reports.Restore(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d reports and %d consultations\n", result.Reports, result.Consultations)
			return nil
		},
	}

	cmd.AddCommand(export, importCmd)
	return cmd
}

func (c *cli) seedCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the demonstration reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			seeded, err := a.Reports.Seed(cmd.Context(), force)
			if err != nil {
				return err
			}
			if seeded {
				fmt.Fprintln(cmd.OutOrStdout(), "Demo data loaded.")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Store already initialised; use --force to reseed.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "add the demo report even if reports exist")
	return cmd
}

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the relational schema",
		Long: `Runs the embedded SQL migrations against the PostgreSQL database
named in the storage.database section. Only meaningful for the
"postgres" storage backend.`,
	}

	run := func(up bool) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Storage.Backend != domain.BackendPostgres {
				return fmt.Errorf("migrations require the %q backend, configured backend is %q",
					domain.BackendPostgres, cfg.Storage.Backend)
			}
			if err := app.Migrate(cmd.Context(), cfg.Storage.Database, c.logger, up); err != nil {
				return err
			}
			direction := "up"
			if !up {
				direction = "down"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied (%s).\n", direction)
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply all pending migrations", Args: cobra.NoArgs, RunE: run(true)},
		&cobra.Command{Use: "down", Short: "Roll back the latest migration", Args: cobra.NoArgs, RunE: run(false)},
	)
	return cmd
}
