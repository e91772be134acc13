package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BuzzLyutic/todo-api/internal/client"
	"github.com/BuzzLyutic/todo-api/internal/model"
)

func newListCmd(s *session) *cobra.Command {
	var order string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show your tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := client.ParseOrder(order)
			if err != nil {
				return err
			}
			if err := requireAuth(s); err != nil {
				return err
			}
			if err := s.tasks.FetchTasks(cmd.Context()); err != nil {
				return handleAPIError(s, err)
			}

			items := s.tasks.State().Items
			fmt.Fprintln(cmd.OutOrStdout(), renderTasks(client.OrderTasks(items, o), client.ComputeStats(items)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&order, "order", "o", string(client.OrderDefault),
		"default, alphabetical, pending or completed")
	return cmd
}

func newAddCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "add <text>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuth(s); err != nil {
				return err
			}
			task, err := s.tasks.AddTask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return handleAPIError(s, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTask(task))
			return nil
		},
	}
}

func newDoneCmd(s *session, completed bool) *cobra.Command {
	use, short := "done <id>", "Mark a task as completed"
	if !completed {
		use, short = "undo <id>", "Mark a task as pending again"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := requireAuth(s); err != nil {
				return err
			}
			task, err := s.tasks.UpdateTask(cmd.Context(), id, model.TaskPatch{Completed: &completed})
			if err != nil {
				return handleAPIError(s, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTask(task))
			return nil
		},
	}
}

func newEditCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> <text>",
		Short: "Change a task's text",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := requireAuth(s); err != nil {
				return err
			}
			text := strings.Join(args[1:], " ")
			task, err := s.tasks.UpdateTask(cmd.Context(), id, model.TaskPatch{Text: &text})
			if err != nil {
				return handleAPIError(s, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTask(task))
			return nil
		},
	}
}

func newRemoveCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := requireAuth(s); err != nil {
				return err
			}
			if err := s.tasks.RemoveTask(cmd.Context(), id); err != nil {
				return handleAPIError(s, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %d\n", id)
			return nil
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}
