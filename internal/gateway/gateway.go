// Package gateway turns chat messages into task executions.
package gateway

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/rahul/pcagent/internal/observability"
	"github.com/rahul/pcagent/internal/store"
	"github.com/rahul/pcagent/internal/task"
)

// Messenger defines the interface for communication gateways (Telegram, Discord, etc.)
type Messenger interface {
	// Start begins the message listening loop
	Start() error
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}

// Runner executes a task description.
type Runner interface {
	Execute(ctx context.Context, description string, taskCtx map[string]any) *task.ExecutionLog
}

// History is the part of the run store the gateways use.
type History interface {
	AddMessage(ctx context.Context, chatID, role, content string) error
	GetMessages(ctx context.Context, chatID string, limit int) ([]store.Message, error)
	ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error)
}

const helpText = `Send me a task in plain language, for example:
  search google for golang generics
  open https://example.com

Commands:
  /status   what the agent is doing
  /history  recent runs
  /help     this message`

// recentMessages bounds the chat history passed to the planner.
const recentMessages = 6

// Handler answers one chat message. It is shared by every gateway.
type Handler struct {
	Runner  Runner
	History History
}

// Handle runs text as a task, or answers a command, and returns the reply.
func (h *Handler) Handle(ctx context.Context, source, chatID, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return helpText
	}
	recent := h.recent(ctx, chatID)
	h.record(ctx, chatID, "human", text)

	reply := h.reply(ctx, source, chatID, text, recent)
	h.record(ctx, chatID, "ai", reply)
	return reply
}

func (h *Handler) reply(ctx context.Context, source, chatID, text string, recent []string) string {
	cmd, _, _ := strings.Cut(text, " ")
	switch strings.ToLower(cmd) {
	case "/start", "/help":
		return helpText
	case "/status":
		return formatStatus(observability.GetStatus())
	case "/history":
		return h.history(ctx)
	}

	taskCtx := map[string]any{
		"source":  source,
		"chat_id": chatID,
	}
	if len(recent) > 0 {
		taskCtx["recent_messages"] = recent
	}
	l := h.Runner.Execute(ctx, text, taskCtx)
	return observability.FormatSummary(l)
}

// recent returns the last few human messages of the chat, oldest first.
func (h *Handler) recent(ctx context.Context, chatID string) []string {
	if h.History == nil {
		return nil
	}
	msgs, err := h.History.GetMessages(ctx, chatID, recentMessages)
	if err != nil {
		log.Printf("Warning: failed to load chat history: %v", err)
		return nil
	}
	var out []string
	for _, m := range msgs {
		if m.Role == "human" && !strings.HasPrefix(m.Content, "/") {
			out = append(out, m.Content)
		}
	}
	return out
}

func (h *Handler) history(ctx context.Context) string {
	if h.History == nil {
		return "History is not enabled."
	}
	runs, err := h.History.ListRuns(ctx, 5)
	if err != nil {
		log.Printf("Error listing runs: %v", err)
		return "I could not read the run history."
	}
	if len(runs) == 0 {
		return "No runs yet."
	}
	var sb strings.Builder
	for _, r := range runs {
		fmt.Fprintf(&sb, "%s  %s  %d/%d  %s\n",
			r.StartTime.Local().Format("Jan 02 15:04"), r.Status, r.CompletedSteps, r.TotalSteps, r.Task)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (h *Handler) record(ctx context.Context, chatID, role, content string) {
	if h.History == nil {
		return
	}
	if err := h.History.AddMessage(ctx, chatID, role, content); err != nil {
		log.Printf("Warning: failed to record %s message: %v", role, err)
	}
}

func formatStatus(s observability.Status) string {
	if s.Role == observability.RoleIdle {
		return fmt.Sprintf("Idle. %d runs so far, %d not fully completed.", s.Runs, s.FailedRuns)
	}
	if s.TotalSteps > 0 {
		return fmt.Sprintf("%s: %s (step %d/%d)", s.Role, s.ActiveTask, s.Step, s.TotalSteps)
	}
	return fmt.Sprintf("%s: %s", s.Role, s.ActiveTask)
}

// chunk splits text into pieces of at most limit bytes, preferring line breaks.
func chunk(text string, limit int) []string {
	var parts []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
		}
		parts = append(parts, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}
