package main

import (
	"encoding/json"
	"fmt"
	"io"

	"bitbucket.org/mmdatafocus/dq_backend/config"
	"bitbucket.org/mmdatafocus/dq_backend/models"
	"bitbucket.org/mmdatafocus/dq_backend/workflow"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "dqctl",
	Short:         "Operate the Home Credit data quality pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// pipeline connects MySQL (and Redis when configured) and wires the
// orchestrator the same way the service does.
func pipeline() (*workflow.Orchestrator, *models.GormStore, error) {
	settings, err := config.LoadPipelineSettings()
	if err != nil {
		return nil, nil, err
	}
	config.ConnectDatabaseWithRetry()
	if config.RedisConfigured() {
		config.ConnectRedisWithRetry()
	}
	return workflow.NewFromSettings(config.GetDB(), settings, config.GetLogger())
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
