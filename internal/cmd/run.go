package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rahul/pcagent/internal/observability"
	"github.com/rahul/pcagent/internal/task"
	"github.com/spf13/cobra"
)

var (
	runContext []string
	runJSON    bool
	runNoLLM   bool
)

var runCmd = &cobra.Command{
	Use:   "run <task...>",
	Short: "Plan and execute a single task",
	Long: `Plan the given task and execute it step by step. The execution log is
printed when the run ends and saved to the run history.

Ctrl-C stops the run before the next step; the step in progress finishes.`,
	Example: `  pcagent run search google for golang generics
  pcagent run --context user=alice "open https://example.com and log in"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringArrayVar(&runContext, "context", nil, "extra planning context as key=value (repeatable)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the execution log as JSON")
	runCmd.Flags().BoolVar(&runNoLLM, "no-llm", false, "use the heuristic planner only")
	rootCmd.AddCommand(runCmd)
}

func runTask(cmd *cobra.Command, args []string) error {
	taskCtx, err := parseContext(runContext)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, !runNoLLM)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l := a.orchestrator.Execute(ctx, strings.Join(args, " "), taskCtx)

	out := cmd.OutOrStdout()
	if runJSON {
		data, err := json.MarshalIndent(l, "", "  ")
		if err != nil {
			return fmt.Errorf("encode execution log: %w", err)
		}
		fmt.Fprintln(out, string(data))
	} else {
		fmt.Fprintln(out, observability.RenderSummary(l))
	}

	if l.Status != task.RunCompleted {
		return fmt.Errorf("task %s", l.Status)
	}
	return nil
}

// parseContext turns key=value pairs into a planning context map.
func parseContext(pairs []string) (map[string]any, error) {
	taskCtx := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --context %q, expected key=value", p)
		}
		taskCtx[k] = v
	}
	return taskCtx, nil
}
