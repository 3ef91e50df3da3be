package main

import (
	"github.com/spf13/cobra"
)

var profileTruncateFirst bool

var profileAllCmd = &cobra.Command{
	Use:   "profile-all",
	Short: "Scan every registered table in full",
	Long: `Run duplicate detection and the rule packs over every row of every
registered table and write the observations to the check tables.

Examples:
  dqctl profile-all
  dqctl profile-all --truncate-first`,
	Args: cobra.NoArgs,
	RunE: runProfileAll,
}

func init() {
	profileAllCmd.Flags().BoolVar(&profileTruncateFirst, "truncate-first", false, "Empty the check tables before scanning")
	rootCmd.AddCommand(profileAllCmd)
}

func runProfileAll(cmd *cobra.Command, args []string) error {
	o, _, err := pipeline()
	if err != nil {
		return err
	}
	profiles, err := o.ProfileAll(cmd.Context(), profileTruncateFirst)
	if perr := printJSON(cmd.OutOrStdout(), profiles); perr != nil {
		return perr
	}
	return err
}
