package cmd

import (
	"context"
	"fmt"

	"github.com/lumenflow/portal/internal/model"

	"github.com/spf13/cobra"
)

func TaskCmd(open Open) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Manage project tasks",
	}

	var (
		priority string
		due      string
		position int
	)
	addCmd := &cobra.Command{
		Use:   "add <project-id> <title>",
		Short: "Add a task to a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !model.ValidTaskPriority(priority) {
				return fmt.Errorf("invalid priority %q", priority)
			}
			dueDate, err := parseDate(due)
			if err != nil {
				return err
			}

			return run(cmd, open, func(ctx context.Context, env *Env) error {
				task := &model.Task{
					ProjectID: args[0],
					Title:     args[1],
					Status:    model.TaskStatusTodo,
					Priority:  priority,
					DueDate:   dueDate,
					Position:  position,
				}
				err := env.Tasks.Create(ctx, task)
				if err != nil {
					return fmt.Errorf("failed to create task: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), task.ID)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&priority, "priority", model.TaskPriorityMedium, "low, medium, high or urgent")
	addCmd.Flags().StringVar(&due, "due", "", "due date as YYYY-MM-DD")
	addCmd.Flags().IntVar(&position, "position", 0, "sort position within the project")
	taskCmd.AddCommand(addCmd)

	taskCmd.AddCommand(&cobra.Command{
		Use:   "status <task-id> <status>",
		Short: "Move a task to todo, in_progress, review or done",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !model.ValidTaskStatus(args[1]) {
				return fmt.Errorf("invalid status %q", args[1])
			}
			return run(cmd, open, func(ctx context.Context, env *Env) error {
				return env.Tasks.SetStatus(ctx, args[0], args[1])
			})
		},
	})

	return taskCmd
}
