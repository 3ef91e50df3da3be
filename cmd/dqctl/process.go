package main

import (
	"errors"
	"fmt"

	"bitbucket.org/mmdatafocus/dq_backend/reasoner"
	"bitbucket.org/mmdatafocus/dq_backend/utils"
	"github.com/spf13/cobra"
)

var (
	processEntity int64
	processCards  bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the pipeline for one applicant",
	Long: `Reset, detect, enrich, persist and reason over a single SK_ID_CURR.

Examples:
  dqctl process --entity 100002
  dqctl process --entity 100002 --cards`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().Int64Var(&processEntity, "entity", 0, "SK_ID_CURR to process (required)")
	processCmd.Flags().BoolVar(&processCards, "cards", false, "Print suggestion cards instead of the run report")
	_ = processCmd.MarkFlagRequired("entity")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	if processEntity <= 0 {
		return errors.New("--entity must be a positive id")
	}
	o, _, err := pipeline()
	if err != nil {
		return err
	}
	ctx := utils.SetTriggerInContext(cmd.Context(), utils.TriggerCLI)
	report, err := o.ProcessEntity(ctx, processEntity)
	if err != nil {
		return fmt.Errorf("process entity %d: %w", processEntity, err)
	}
	if !processCards {
		return printJSON(cmd.OutOrStdout(), report)
	}
	cards := make([]reasoner.Card, 0, len(report.Suggestions))
	for _, s := range report.Suggestions {
		cards = append(cards, reasoner.Format(s))
	}
	return printJSON(cmd.OutOrStdout(), cards)
}
