// Command appraisal drives the staff appraisal workflow from the terminal.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"staff-appraisal/internal/app"
	"staff-appraisal/internal/config"
)

var (
	cfgFile  string
	actorID  string
	jsonOut  bool
	instance *app.App
)

var rootCmd = &cobra.Command{
	Use:           "appraisal",
	Short:         "Manage tasks, subtasks and staff efficiency",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		a, err := app.Open(cmd.Context(), cfg, cfg.Log.Logger(cmd.ErrOrStderr()))
		if err != nil {
			return err
		}
		instance = a
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", os.Getenv("APPRAISAL_CONFIG"), "config file")
	rootCmd.PersistentFlags().StringVar(&actorID, "as", "", "staff id recorded as the actor")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print JSON instead of a table")
}

func main() {
	err := rootCmd.Execute()
	if instance != nil {
		instance.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "appraisal: %v\n", err)
		os.Exit(1)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncStr(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
