package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/rahul/pcagent/internal/observability"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	showJSON     bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs",
	RunE:  runHistory,
}

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the execution log of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to list")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "print the execution log as JSON")
	rootCmd.AddCommand(historyCmd, showCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	h, err := openHistory(cfg)
	if err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs yet")
		return nil
	}
	defer h.Close()

	runs, err := h.ListRuns(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs yet")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTARTED\tSTATUS\tSTEPS\tTASK")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\n",
			r.RunID, r.StartTime.Local().Format("2006-01-02 15:04:05"), r.Status,
			r.CompletedSteps, r.TotalSteps, r.Task)
	}
	return w.Flush()
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	h, err := openHistory(cfg)
	if err != nil {
		return fmt.Errorf("no run history at %s", cfg.Memory.Path)
	}
	defer h.Close()

	l, err := h.GetRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if showJSON {
		data, err := json.MarshalIndent(l, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), observability.RenderSummary(l))
	return nil
}
