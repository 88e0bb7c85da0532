package main

import (
	"github.com/spf13/cobra"

	"tracker/internal/cli"
	"tracker/internal/config"
	applog "tracker/internal/log"
)

// app carries what every subcommand needs once the root has initialized.
type app struct {
	cfg    *config.Config
	logger *applog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "tracker",
		Short:        "Expense tracker",
		Long:         `Record expenses with a name, a price and an optional date, browse them page by page and search them by date.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cli.LoadEnvFile()
			cfg, err := cli.LoadConfig()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = cli.SetupLogger(cfg, applog.ComponentCLI, cmd.ErrOrStderr())
			return nil
		},
	}

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newAddCmd(a),
		newListCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
	)
	return root
}
