package cmd

import (
	"context"
	"fmt"

	"github.com/lumenflow/portal/internal/model"
	"github.com/lumenflow/portal/internal/service"

	"github.com/spf13/cobra"
)

func InviteCmd(open Open) *cobra.Command {
	var (
		name     string
		role     string
		projects []string
	)

	inviteCmd := &cobra.Command{
		Use:   "invite <email>",
		Short: "Invite a client or staff member and email them a link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, env *Env) error {
				user, err := env.Auth.Invite(ctx, service.Invite{
					Email:      args[0],
					Name:       name,
					Role:       role,
					ProjectIDs: projects,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "invited %s (%s)\n", user.Email, user.ID)
				return nil
			})
		},
	}

	inviteCmd.Flags().StringVar(&name, "name", "", "display name")
	inviteCmd.Flags().StringVar(&role, "role", model.RoleClient, "client, staff or admin")
	inviteCmd.Flags().StringSliceVar(&projects, "project", nil, "project id to add the user to (repeatable)")
	_ = inviteCmd.MarkFlagRequired("name")
	return inviteCmd
}
