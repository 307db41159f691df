// Package store keeps execution history in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/rahul/pcagent/internal/task"
)

var ErrRunNotFound = errors.New("run not found")

// RunSummary is one row of the run history listing.
type RunSummary struct {
	RunID          string
	Task           string
	Status         task.RunStatus
	CompletedSteps int
	FailedSteps    int
	TotalSteps     int
	StartTime      time.Time
	EndTime        time.Time
}

// Message is one line of a gateway conversation.
type Message struct {
	ChatID    string
	Role      string
	Content   string
	Timestamp time.Time
}

type HistoryStore struct {
	DB *sql.DB
}

func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// one writer; sqlite serializes anyway
	db.SetMaxOpenConns(1)

	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			task TEXT NOT NULL,
			status TEXT NOT NULL,
			completed_steps INTEGER NOT NULL,
			failed_steps INTEGER NOT NULL,
			total_steps INTEGER NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			log TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS runs_start_time ON runs (start_time);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id TEXT,
			role TEXT,
			content TEXT,
			timestamp TEXT NOT NULL
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, fmt.Errorf("init history schema: %w", err)
		}
	}

	return &HistoryStore{DB: db}, nil
}

func (h *HistoryStore) Close() error {
	return h.DB.Close()
}

// SaveLog stores a finished execution log. Saving the same run again
// replaces it.
func (h *HistoryStore) SaveLog(ctx context.Context, l *task.ExecutionLog) error {
	payload, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode execution log: %w", err)
	}
	query := `INSERT OR REPLACE INTO runs
		(run_id, task, status, completed_steps, failed_steps, total_steps, start_time, end_time, log)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = h.DB.ExecContext(ctx, query,
		l.RunID, l.Task, string(l.Status),
		l.CompletedSteps, l.FailedSteps, l.TotalSteps,
		formatTime(l.StartTime), formatTime(l.EndTime),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", l.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (h *HistoryStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT run_id, task, status, completed_steps, failed_steps, total_steps, start_time, end_time
		FROM runs ORDER BY start_time DESC LIMIT ?`
	rows, err := h.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var status, start, end string
		if err := rows.Scan(&r.RunID, &r.Task, &status, &r.CompletedSteps, &r.FailedSteps, &r.TotalSteps, &start, &end); err != nil {
			return nil, err
		}
		r.Status = task.RunStatus(status)
		r.StartTime = parseTime(start)
		r.EndTime = parseTime(end)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun loads the full execution log of a run.
func (h *HistoryStore) GetRun(ctx context.Context, runID string) (*task.ExecutionLog, error) {
	var payload string
	err := h.DB.QueryRowContext(ctx, `SELECT log FROM runs WHERE run_id = ?`, runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	var l task.ExecutionLog
	if err := json.Unmarshal([]byte(payload), &l); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &l, nil
}

func (h *HistoryStore) AddMessage(ctx context.Context, chatID, role, content string) error {
	query := `INSERT INTO messages (chat_id, role, content, timestamp) VALUES (?, ?, ?, ?)`
	_, err := h.DB.ExecContext(ctx, query, chatID, role, content, formatTime(time.Now()))
	return err
}

// GetMessages returns the last limit messages of a chat in chronological order.
func (h *HistoryStore) GetMessages(ctx context.Context, chatID string, limit int) ([]Message, error) {
	query := `SELECT chat_id, role, content, timestamp FROM messages WHERE chat_id = ? ORDER BY id DESC LIMIT ?`
	rows, err := h.DB.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []Message
	for rows.Next() {
		var m Message
		var ts string
		if err := rows.Scan(&m.ChatID, &m.Role, &m.Content, &ts); err != nil {
			return nil, err
		}
		m.Timestamp = parseTime(ts)
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}

// timeLayout has fixed width so stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}
