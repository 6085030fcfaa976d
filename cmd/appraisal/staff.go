package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"staff-appraisal/pkg/workflow"
)

var staffCmd = &cobra.Command{
	Use:   "staff",
	Short: "Register staff and read their performance",
}

var staffRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a staff member",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		in := workflow.RegisterStaffInput{Actor: actorID}
		in.Name, _ = cmd.Flags().GetString("name")
		in.Email, _ = cmd.Flags().GetString("email")
		in.Role, _ = cmd.Flags().GetString("role")
		in.DepartmentID, _ = cmd.Flags().GetString("department")
		in.Workload, _ = cmd.Flags().GetInt("workload")
		member, err := instance.Service.RegisterStaff(cmd.Context(), in)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), member)
	},
}

var staffListCmd = &cobra.Command{
	Use:   "list",
	Short: "List staff",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dept, _ := cmd.Flags().GetString("department")
		members, err := instance.Service.ListStaff(cmd.Context(), dept)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), members)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tROLE\tDEPT\tPENDING\tDONE\tEFF\tNAME")
		for _, m := range members {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n", m.ID, m.Role, m.DepartmentID,
				m.PendingCount, m.TasksCompletedCount, m.OverallEfficiency, m.Name)
		}
		return w.Flush()
	},
}

var staffReportCmd = &cobra.Command{
	Use:   "report <staff-id>",
	Short: "Show a staff member's performance report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := instance.Service.GetStaffReport(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), report)
		}
		d, p := report.Staff, report.Performance
		fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>  %s, %s\n", d.Name, d.Email, d.Role, d.DepartmentID)
		fmt.Fprintf(cmd.OutOrStdout(), "overall efficiency %d  completion %.2f%%  average %.2f\n",
			d.OverallEfficiency, p.CompletionRate, p.AverageEfficiency)
		fmt.Fprintf(cmd.OutOrStdout(), "%d subtasks: %d completed, %d pending\n\n", p.TotalSubtasks, p.CompletedSubtasks, p.PendingSubtasks)
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SUBTASK\tTASK\tSTATUS\tREWORK\tEFF")
		for _, h := range report.History {
			eff := "-"
			if h.Efficiency != nil {
				eff = fmt.Sprint(*h.Efficiency)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", truncStr(h.SubtaskName, 30), truncStr(h.TaskName, 30),
				h.Status, h.ReworkCount, eff)
		}
		return w.Flush()
	},
}

var staffRankingsCmd = &cobra.Command{
	Use:   "rankings",
	Short: "Rank staff by overall efficiency",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dept, _ := cmd.Flags().GetString("department")
		limit, _ := cmd.Flags().GetInt("limit")
		ranks, err := instance.Service.StaffRankings(cmd.Context(), dept, limit)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), ranks)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tEFF\tDONE\tNAME\tDEPT")
		for _, r := range ranks {
			fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\n", r.Rank, r.OverallEfficiency, r.TasksCompletedCount, r.Name, r.DepartmentID)
		}
		return w.Flush()
	},
}

func init() {
	f := staffRegisterCmd.Flags()
	f.String("name", "", "full name")
	f.String("email", "", "email address, unique")
	f.String("role", "staff", "staff or hod")
	f.String("department", "", "department")
	f.Int("workload", 0, "current workload")
	staffListCmd.Flags().String("department", "", "only staff in this department")
	staffRankingsCmd.Flags().String("department", "", "only staff in this department")
	staffRankingsCmd.Flags().Int("limit", 50, "maximum entries")

	staffCmd.AddCommand(staffRegisterCmd, staffListCmd, staffReportCmd, staffRankingsCmd)
	rootCmd.AddCommand(staffCmd)
}
