package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypePlan        EventType = "plan"
	EventTypeStep        EventType = "step"
	EventTypeRetry       EventType = "retry"
	EventTypeAbort       EventType = "abort"
	EventTypeRun         EventType = "run"
	EventTypePolicyCheck EventType = "policy_check"
	EventTypeHeartbeat   EventType = "heartbeat"
	EventTypeLLM         EventType = "llm"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Step      int       `json:"step,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging.
type Logger struct {
	mu         sync.Mutex
	out        io.Writer
	llmLogPath string
	maxSize    int64
}

func NewLogger() *Logger {
	return &Logger{
		out:        os.Stderr,
		llmLogPath: filepath.Join("logs", "llm.jsonl"),
		maxSize:    10 * 1024 * 1024, // 10MB
	}
}

// WithOutput redirects structured events to w. A nil writer discards them.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	if w == nil {
		w = io.Discard
	}
	l.out = w
	return l
}

// WithLLMLogPath changes where LLM exchanges are appended. An empty path
// disables the file.
func (l *Logger) WithLLMLogPath(path string) *Logger {
	l.llmLogPath = path
	return l
}

// Log emits a structured JSON event.
func (l *Logger) Log(evt Event) {
	if l == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		data = []byte(fmt.Sprintf("{\"error\": \"failed to marshal event: %v\"}", err))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Write(append(data, '\n'))

	if evt.Type == EventTypeLLM && l.llmLogPath != "" {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogPlan(runID string, source string, steps int, fallbackReason string) {
	data := map[string]any{
		"source": source,
		"steps":  steps,
	}
	if fallbackReason != "" {
		data["fallback_reason"] = fallbackReason
	}
	l.Log(Event{Type: EventTypePlan, RunID: runID, Data: data})
}

func (l *Logger) LogStep(runID string, step int, action, status string, attempts int, errMsg string) {
	data := map[string]any{
		"action":   action,
		"status":   status,
		"attempts": attempts,
	}
	if errMsg != "" {
		data["error"] = errMsg
	}
	l.Log(Event{Type: EventTypeStep, RunID: runID, Step: step, Data: data})
}

func (l *Logger) LogRetry(runID string, step, attempt int, err error) {
	l.Log(Event{
		Type:  EventTypeRetry,
		RunID: runID,
		Step:  step,
		Data: map[string]any{
			"attempt": attempt,
			"error":   err.Error(),
		},
	})
}

func (l *Logger) LogAbort(runID string, step int, reason string) {
	l.Log(Event{
		Type:  EventTypeAbort,
		RunID: runID,
		Step:  step,
		Data:  map[string]string{"reason": reason},
	})
}

func (l *Logger) LogRun(runID, task, status string, completed, failed, total int) {
	l.Log(Event{
		Type:  EventTypeRun,
		RunID: runID,
		Data: map[string]any{
			"task":      task,
			"status":    status,
			"completed": completed,
			"failed":    failed,
			"total":     total,
		},
	})
}

func (l *Logger) LogPolicyCheck(action, effect, reason string) {
	l.Log(Event{
		Type: EventTypePolicyCheck,
		Data: map[string]string{
			"action": action,
			"effect": effect,
			"reason": reason,
		},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}

func (l *Logger) LogLLM(purpose string, prompt any, response string, toolCalls any) {
	l.Log(Event{
		Type: EventTypeLLM,
		Data: map[string]any{
			"purpose":    purpose,
			"prompt":     prompt,
			"response":   response,
			"tool_calls": toolCalls,
		},
	})
}
