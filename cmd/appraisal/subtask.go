package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"staff-appraisal/pkg/task"
	"staff-appraisal/pkg/workflow"
)

var subtaskCmd = &cobra.Command{
	Use:     "subtask",
	Aliases: []string{"sub"},
	Short:   "Assign, progress and review subtasks",
}

var subtaskCreateCmd = &cobra.Command{
	Use:   "create <task-id>",
	Short: "Assign a new subtask under a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := workflow.CreateSubtaskInput{ParentTaskID: args[0], CreatedBy: actorID}
		in.Name, _ = cmd.Flags().GetString("name")
		in.Description, _ = cmd.Flags().GetString("description")
		in.Priority, _ = cmd.Flags().GetString("priority")
		in.AssigneeID, _ = cmd.Flags().GetString("assignee")
		in.DueDate, _ = cmd.Flags().GetString("due")
		st, err := instance.Service.CreateSubtask(cmd.Context(), in)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), st)
	},
}

// assigneeCmd wraps a service method the assignee calls on their own subtask.
func assigneeCmd(use, short string, move func(*workflow.Service, context.Context, string, string) (*task.Subtask, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <subtask-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := move(instance.Service, cmd.Context(), args[0], actorID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
}

var (
	subtaskStartCmd  = assigneeCmd("start", "Begin work on an assigned subtask", (*workflow.Service).StartSubtask)
	subtaskSubmitCmd = assigneeCmd("submit", "Submit a subtask for review", (*workflow.Service).SubmitForReview)
)

var subtaskReworkCmd = &cobra.Command{
	Use:   "rework <subtask-id>",
	Short: "Send a reviewed subtask back to its assignee",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := instance.Service.SetSubtaskStatus(cmd.Context(), workflow.SetStatusInput{
			SubtaskID: args[0],
			Status:    string(task.StatusRework),
			Actor:     actorID,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var subtaskCompleteCmd = &cobra.Command{
	Use:   "complete <subtask-id>",
	Short: "Complete a reviewed subtask and score it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		quality, _ := cmd.Flags().GetString("quality")
		res, err := instance.Service.SetSubtaskStatus(cmd.Context(), workflow.SetStatusInput{
			SubtaskID:     args[0],
			Status:        string(task.StatusCompleted),
			QualityOfWork: quality,
			Actor:         actorID,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var subtaskReviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "List subtasks waiting for review",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dept, _ := cmd.Flags().GetString("department")
		subs, err := instance.Service.PendingReviews(cmd.Context(), dept, 0)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), subs)
		}
		printSubtasks(cmd, subs)
		return nil
	},
}

var subtaskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a department's subtasks in every status, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dept, _ := cmd.Flags().GetString("department")
		limit, _ := cmd.Flags().GetInt("limit")
		subs, err := instance.Service.DepartmentSubtasks(cmd.Context(), dept, limit)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), subs)
		}
		printSubtasks(cmd, subs)
		return nil
	},
}

var subtaskHistoryCmd = &cobra.Command{
	Use:   "history <subtask-id>",
	Short: "Show the audit trail of a subtask",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := instance.Service.SubtaskHistory(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), events)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tTYPE\tACTOR")
		for _, e := range events {
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Type, e.Actor)
		}
		return w.Flush()
	},
}

func init() {
	f := subtaskCreateCmd.Flags()
	f.String("name", "", "subtask name")
	f.String("description", "", "subtask description")
	f.String("priority", "medium", "low, medium or high")
	f.String("assignee", "", "staff id of the assignee")
	f.String("due", "", "due date, no later than the parent task's")
	subtaskCompleteCmd.Flags().String("quality", "", "quality of work: excellent, good, satisfactory or \"needs improvement\"")
	subtaskReviewsCmd.Flags().String("department", "", "only reviews in this department")
	subtaskListCmd.Flags().String("department", "", "only subtasks in this department")
	subtaskListCmd.Flags().Int("limit", 50, "maximum subtasks to list")

	subtaskCmd.AddCommand(subtaskCreateCmd, subtaskStartCmd, subtaskSubmitCmd,
		subtaskReworkCmd, subtaskCompleteCmd, subtaskReviewsCmd, subtaskListCmd, subtaskHistoryCmd)
	rootCmd.AddCommand(subtaskCmd)
}
