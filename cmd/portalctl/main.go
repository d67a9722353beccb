package main

import (
	"os"

	"github.com/lumenflow/portal/cmd/portalctl/cmd"
	"github.com/lumenflow/portal/internal/config"
	"github.com/lumenflow/portal/internal/logger"

	"github.com/spf13/cobra"
)

func main() {
	cfg := config.Load()
	logger.Init("portalctl", cfg.IsDevelopment(), cfg.SentryDSN, cfg.AppEnv)

	rootCmd := &cobra.Command{
		Use:          "portalctl",
		Short:        "Staff tools for the client portal",
		SilenceUsage: true,
	}

	open := cmd.Opener(cfg)
	rootCmd.AddCommand(cmd.MigrateCmd(open))
	rootCmd.AddCommand(cmd.InviteCmd(open))
	rootCmd.AddCommand(cmd.ProjectCmd(open))
	rootCmd.AddCommand(cmd.TaskCmd(open))
	rootCmd.AddCommand(cmd.AssetCmd(open))
	rootCmd.AddCommand(cmd.ArticleCmd(open))
	rootCmd.AddCommand(cmd.TokensCmd(open))

	err := rootCmd.Execute()
	logger.Flush()
	if err != nil {
		os.Exit(1)
	}
}
