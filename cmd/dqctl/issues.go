package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"bitbucket.org/mmdatafocus/dq_backend/config"
	"github.com/spf13/cobra"
)

var (
	issuesEntity int64
	issuesLimit  int
)

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "List the latest stored observations for an applicant",
	Args:  cobra.NoArgs,
	RunE:  runIssues,
}

func init() {
	issuesCmd.Flags().Int64Var(&issuesEntity, "entity", 0, "SK_ID_CURR to list (required)")
	issuesCmd.Flags().IntVar(&issuesLimit, "limit", config.DefaultQueryLimit, "Maximum rows per check table")
	_ = issuesCmd.MarkFlagRequired("entity")
	rootCmd.AddCommand(issuesCmd)
}

func runIssues(cmd *cobra.Command, args []string) error {
	if issuesEntity <= 0 {
		return errors.New("--entity must be a positive id")
	}
	_, store, err := pipeline()
	if err != nil {
		return err
	}
	rows, err := store.LatestIssues(cmd.Context(), issuesEntity, issuesLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tTABLE\tCOLUMN\tCHECK\tSEVERITY\tDETAIL")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.SourceTable, r.ColumnName, r.CheckType, r.Severity,
			r.Observation().DetailText())
	}
	return w.Flush()
}
