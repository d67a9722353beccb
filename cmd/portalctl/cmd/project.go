package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/lumenflow/portal/internal/model"
	"github.com/lumenflow/portal/internal/repository"

	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

func ProjectCmd(open Open) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Manage client projects",
	}
	projectCmd.AddCommand(projectCreateCmd(open))
	projectCmd.AddCommand(projectListCmd(open))
	projectCmd.AddCommand(projectMemberCmd(open, true))
	projectCmd.AddCommand(projectMemberCmd(open, false))
	return projectCmd
}

func projectCreateCmd(open Open) *cobra.Command {
	var (
		description string
		status      string
		deadline    string
	)

	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project for this brand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !model.ValidProjectStatus(status) {
				return fmt.Errorf("invalid status %q", status)
			}
			due, err := parseDate(deadline)
			if err != nil {
				return err
			}

			return run(cmd, open, func(ctx context.Context, env *Env) error {
				project := &model.Project{
					Brand:       env.Brand,
					Name:        args[0],
					Description: description,
					Status:      status,
					Deadline:    due,
				}
				err := env.Projects.Create(ctx, project)
				if err != nil {
					return fmt.Errorf("failed to create project: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), project.ID)
				return nil
			})
		},
	}

	createCmd.Flags().StringVar(&description, "description", "", "short description")
	createCmd.Flags().StringVar(&status, "status", model.ProjectStatusPlanning, "planning, active, done or archived")
	createCmd.Flags().StringVar(&deadline, "deadline", "", "deadline as YYYY-MM-DD")
	return createCmd
}

func projectListCmd(open Open) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every project of this brand",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, env *Env) error {
				projects, err := env.Projects.Visible(ctx, repository.ProjectScope{Brand: env.Brand, Staff: true})
				if err != nil {
					return fmt.Errorf("failed to list projects: %w", err)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tDEADLINE")
				for _, p := range projects {
					deadline := "-"
					if p.Deadline != nil {
						deadline = p.Deadline.Format(dateLayout)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Status, deadline)
				}
				return tw.Flush()
			})
		},
	}
}

// projectMemberCmd adds or removes a member. Both take the user's email.
func projectMemberCmd(open Open, add bool) *cobra.Command {
	use, short := "add-member <project-id> <email>", "Give a user access to a project"
	if !add {
		use, short = "remove-member <project-id> <email>", "Take a user's access to a project away"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, env *Env) error {
				user, err := env.Users.ByEmail(ctx, args[1])
				if err != nil {
					return fmt.Errorf("failed to find user %s: %w", args[1], err)
				}
				if add {
					return env.Projects.AddMember(ctx, args[0], user.ID)
				}
				return env.Projects.RemoveMember(ctx, args[0], user.ID)
			})
		},
	}
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", value)
	}
	return &t, nil
}
