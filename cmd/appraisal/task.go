package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"staff-appraisal/pkg/task"
	"staff-appraisal/pkg/workflow"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create and inspect tasks",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a task",
	Example: `  appraisal task create --name "Q3 audit" --description "Close the books" \
    --due "2026-09-30 17:00:00" --department finance --as <hod-id>`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		in := workflow.CreateTaskInput{CreatedBy: actorID}
		in.Name, _ = cmd.Flags().GetString("name")
		in.Description, _ = cmd.Flags().GetString("description")
		in.DueDate, _ = cmd.Flags().GetString("due")
		in.DepartmentID, _ = cmd.Flags().GetString("department")
		t, err := instance.Service.CreateTask(cmd.Context(), in)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), t)
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dept, _ := cmd.Flags().GetString("department")
		limit, _ := cmd.Flags().GetInt("limit")
		tasks, err := instance.Service.ListTasks(cmd.Context(), dept, limit)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), tasks)
		}
		if len(tasks) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No tasks found.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tPENDING\tDUE\tNAME")
		for _, t := range tasks {
			fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\n", t.ID, t.Status,
				t.PendingSubtasksCount, t.SubtaskCount, t.DueDate.Format("2006-01-02"), truncStr(t.Name, 50))
		}
		return w.Flush()
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show a task and its subtasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := instance.Service.GetTask(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		subs, err := instance.Service.ListSubtasks(cmd.Context(), t.ID)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), struct {
				*task.Task
				Subtasks []task.Subtask `json:"subtasks"`
			}{t, subs})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  [%s]  due %s  %d of %d pending\n\n", t.ID, t.Name, t.Status,
			t.DueDate.Format("2006-01-02 15:04"), t.PendingSubtasksCount, t.SubtaskCount)
		printSubtasks(cmd, subs)
		return nil
	},
}

func printSubtasks(cmd *cobra.Command, subs []task.Subtask) {
	if len(subs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No subtasks.")
		return
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tASSIGNEE\tREWORK\tEFF\tNAME")
	for _, s := range subs {
		eff := "-"
		if s.Efficiency != nil {
			eff = fmt.Sprint(*s.Efficiency)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n", s.ID, s.Status, s.Priority,
			truncStr(s.AssigneeID, 8), s.ReworkCount, eff, truncStr(s.Name, 40))
	}
	_ = w.Flush()
}

func init() {
	taskCreateCmd.Flags().String("name", "", "task name")
	taskCreateCmd.Flags().String("description", "", "task description")
	taskCreateCmd.Flags().String("due", "", "due date, e.g. 2026-09-30 or 2026-09-30 17:00:00")
	taskCreateCmd.Flags().String("department", "", "owning department")
	taskListCmd.Flags().String("department", "", "only tasks in this department")
	taskListCmd.Flags().Int("limit", 50, "maximum tasks to list")

	taskCmd.AddCommand(taskCreateCmd, taskListCmd, taskShowCmd)
	rootCmd.AddCommand(taskCmd)
}
