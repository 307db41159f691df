package gateway

import (
	"context"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rahul/pcagent/internal/store"
	"github.com/rahul/pcagent/internal/task"
)

type fakeRunner struct {
	description string
	taskCtx     map[string]any
}

func (r *fakeRunner) Execute(ctx context.Context, description string, taskCtx map[string]any) *task.ExecutionLog {
	r.description, r.taskCtx = description, taskCtx
	return &task.ExecutionLog{
		RunID:          "run-1",
		Task:           description,
		Status:         task.RunCompleted,
		CompletedSteps: 1,
		TotalSteps:     1,
	}
}

type fakeHistory struct {
	messages []string
	stored   []store.Message
	runs     []store.RunSummary
}

func (h *fakeHistory) AddMessage(ctx context.Context, chatID, role, content string) error {
	h.messages = append(h.messages, chatID+"/"+role)
	h.stored = append(h.stored, store.Message{ChatID: chatID, Role: role, Content: content})
	return nil
}

func (h *fakeHistory) GetMessages(ctx context.Context, chatID string, limit int) ([]store.Message, error) {
	var out []store.Message
	for _, m := range h.stored {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (h *fakeHistory) ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error) {
	return h.runs, nil
}

func TestHandler_RunsTask(t *testing.T) {
	runner := &fakeRunner{}
	hist := &fakeHistory{}
	h := &Handler{Runner: runner, History: hist}

	reply := h.Handle(context.Background(), "telegram", "42", "  open https://example.com ")

	if runner.description != "open https://example.com" {
		t.Errorf("Unexpected task %q", runner.description)
	}
	if runner.taskCtx["source"] != "telegram" || runner.taskCtx["chat_id"] != "42" {
		t.Errorf("Unexpected context %v", runner.taskCtx)
	}
	if !strings.Contains(reply, "completed") {
		t.Errorf("Expected summary reply, got %q", reply)
	}
	if strings.Join(hist.messages, ",") != "42/human,42/ai" {
		t.Errorf("Expected both sides recorded, got %v", hist.messages)
	}
	if _, ok := runner.taskCtx["recent_messages"]; ok {
		t.Error("first message has no history to pass")
	}

	h.Handle(context.Background(), "telegram", "42", "now click login")
	recent, _ := runner.taskCtx["recent_messages"].([]string)
	if len(recent) != 1 || recent[0] != "open https://example.com" {
		t.Errorf("Expected earlier request as context, got %v", runner.taskCtx["recent_messages"])
	}
}

func TestHandler_Commands(t *testing.T) {
	runner := &fakeRunner{}
	hist := &fakeHistory{runs: []store.RunSummary{{
		RunID: "r", Task: "search google", Status: task.RunFailed, TotalSteps: 3, StartTime: time.Now(),
	}}}
	h := &Handler{Runner: runner, History: hist}
	ctx := context.Background()

	if reply := h.Handle(ctx, "discord", "c", "/help"); !strings.Contains(reply, "/history") {
		t.Errorf("Unexpected help %q", reply)
	}
	if reply := h.Handle(ctx, "discord", "c", "/history"); !strings.Contains(reply, "failed  0/3  search google") {
		t.Errorf("Unexpected history %q", reply)
	}
	if reply := h.Handle(ctx, "discord", "c", "/status"); reply == "" {
		t.Error("Expected a status reply")
	}
	if runner.description != "" {
		t.Errorf("commands must not run tasks, ran %q", runner.description)
	}

	h.History = nil
	if reply := h.Handle(ctx, "discord", "c", "/history"); reply != "History is not enabled." {
		t.Errorf("Unexpected reply %q", reply)
	}
}

func TestChunk(t *testing.T) {
	parts := chunk("aaaa\nbbbb\ncc", 10)
	if len(parts) != 2 || parts[0] != "aaaa\nbbbb" || parts[1] != "cc" {
		t.Errorf("Unexpected chunks %q", parts)
	}
	parts = chunk(strings.Repeat("x", 25), 10)
	if len(parts) != 3 || parts[2] != "xxxxx" {
		t.Errorf("Unexpected chunks %q", parts)
	}
	if len(chunk("", 10)) != 0 {
		t.Error("empty text has no chunks")
	}
}

func TestSenderName(t *testing.T) {
	cases := []struct {
		msg  *tgbotapi.Message
		want string
	}{
		{&tgbotapi.Message{From: &tgbotapi.User{UserName: "alice"}}, "alice"},
		{&tgbotapi.Message{SenderChat: &tgbotapi.Chat{Title: "News"}}, "News"},
		{&tgbotapi.Message{Text: "channel post"}, "unknown"},
	}
	for _, c := range cases {
		if got := senderName(c.msg); got != c.want {
			t.Errorf("senderName(%+v) = %q, want %q", c.msg, got, c.want)
		}
	}
}
