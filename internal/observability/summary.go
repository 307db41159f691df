package observability

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rahul/pcagent/internal/task"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	summaryFrame = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

var stepIcons = map[task.StepStatus]string{
	task.StepCompleted: "✔",
	task.StepFailed:    "✘",
	task.StepSkipped:   "↷",
	task.StepRunning:   "…",
	task.StepPending:   "·",
}

// FormatSummary renders l as plain text for chat gateways.
func FormatSummary(l *task.ExecutionLog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", l.Task)
	fmt.Fprintf(&b, "Status: %s (%d/%d steps completed, %d failed) in %.1fs\n",
		l.Status, l.CompletedSteps, l.TotalSteps, l.FailedSteps, l.DurationSeconds)
	if l.Plan.Source == task.SourceHeuristic && l.Plan.FallbackReason != "" {
		fmt.Fprintf(&b, "Plan: heuristic (%s)\n", l.Plan.FallbackReason)
	}
	for _, s := range l.Steps {
		fmt.Fprintf(&b, "%s %d. [%s] %s", stepIcons[s.Status], s.StepNumber, s.Action, s.Description)
		if s.ErrorMessage != "" {
			fmt.Fprintf(&b, ": %s", s.ErrorMessage)
		}
		b.WriteString("\n")
	}
	if l.Cancelled {
		b.WriteString("Run was cancelled before all steps executed.\n")
	}
	if l.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", l.Error)
	}
	return b.String()
}

// RenderSummary renders l with terminal styling for the CLI.
func RenderSummary(l *task.ExecutionLog) string {
	statusStyle := okStyle
	switch l.Status {
	case task.RunPartiallyCompleted:
		statusStyle = warnStyle
	case task.RunFailed, task.RunError:
		statusStyle = failStyle
	}

	lines := []string{
		titleStyle.Render(l.Task),
		fmt.Sprintf("%s  %s",
			statusStyle.Render(strings.ToUpper(string(l.Status))),
			mutedStyle.Render(fmt.Sprintf("%d/%d completed · %d failed · %.1fs · %s plan",
				l.CompletedSteps, l.TotalSteps, l.FailedSteps, l.DurationSeconds, l.Plan.Source))),
		"",
	}
	for _, s := range l.Steps {
		style := mutedStyle
		switch s.Status {
		case task.StepCompleted:
			style = okStyle
		case task.StepFailed:
			style = failStyle
		}
		line := fmt.Sprintf("%s %2d %-8s %s", style.Render(stepIcons[s.Status]), s.StepNumber, s.Action, s.Description)
		if s.Attempts > 1 {
			line += mutedStyle.Render(fmt.Sprintf(" (%d attempts)", s.Attempts))
		}
		if s.ErrorMessage != "" {
			line += "\n" + failStyle.Render("      "+s.ErrorMessage)
		}
		lines = append(lines, line)
	}
	if l.Error != "" {
		lines = append(lines, "", failStyle.Render(l.Error))
	}
	if l.Cancelled {
		lines = append(lines, "", warnStyle.Render("cancelled"))
	}
	return summaryFrame.Render(strings.Join(lines, "\n"))
}
