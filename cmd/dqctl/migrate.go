package main

import (
	"fmt"

	"bitbucket.org/mmdatafocus/dq_backend/config"
	"bitbucket.org/mmdatafocus/dq_backend/dqcheck"
	"bitbucket.org/mmdatafocus/dq_backend/models"
	"github.com/spf13/cobra"
)

var migrateSources bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the check, suggestion and run tables",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateSources, "sources", false, "Also migrate the SAMPLE_* source tables")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadPipelineSettings()
	if err != nil {
		return err
	}
	registry, err := dqcheck.LoadRulesFile(settings.RulesFile)
	if err != nil {
		return err
	}
	config.ConnectDatabaseWithRetry()
	if err := models.MigrateTable(config.GetDB(), registry.CheckTables(), migrateSources); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "migrated %d check tables\n", len(registry.CheckTables()))
	return nil
}
