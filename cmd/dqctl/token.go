package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/dq_backend/utils"
	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenRole    string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the /api/dq routes",
	Long: `Sign a token with DQ_JWT_SECRET.

Examples:
  dqctl token --subject ops --ttl 24h`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Token subject (required)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "operator", "Role claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 12*time.Hour, "Token lifespan")
	_ = tokenCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	secret := os.Getenv("DQ_JWT_SECRET")
	if secret == "" {
		return errors.New("DQ_JWT_SECRET is not set")
	}
	token, err := utils.JwtGenerate([]byte(secret), tokenSubject, tokenRole, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
