package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tracker/internal/cli"
	"tracker/internal/storage"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the expenses database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := cli.OpenRepository(a.logger, a.cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			if err := repo.Close(); err != nil {
				return err
			}

			version, dirty, err := storage.SchemaVersion(a.cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", version, dirty)
			return nil
		},
	}
}
