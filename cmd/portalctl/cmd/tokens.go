package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func TokensCmd(open Open) *cobra.Command {
	tokensCmd := &cobra.Command{
		Use:   "tokens",
		Short: "Maintain invite, recovery and refresh tokens",
	}

	var olderThan time.Duration
	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete tokens that expired more than --older-than ago",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, env *Env) error {
				n, err := env.Tokens.CleanupExpired(ctx, olderThan)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d tokens\n", n)
				return nil
			})
		},
	}
	cleanupCmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "grace period after expiry")
	tokensCmd.AddCommand(cleanupCmd)

	return tokensCmd
}
