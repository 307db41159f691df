package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rahul/pcagent/internal/planner"
	"github.com/rahul/pcagent/internal/task"
	"github.com/rahul/pcagent/internal/vision"
)

var errActuator = errors.New("actuator failed")

// callLog records collaborator calls as "name:arg" strings.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, fmt.Sprintf(format, args...))
}

func (c *callLog) count(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if len(call) >= len(prefix) && call[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

type fakeBrowser struct {
	callLog
	active bool
	fail   map[string]bool
}

func (b *fakeBrowser) result(op string) error {
	if b.fail[op] {
		return errActuator
	}
	return nil
}

func (b *fakeBrowser) NavigateTo(ctx context.Context, url string) error {
	b.add("browser.navigate:%s", url)
	if err := b.result("navigate"); err != nil {
		return err
	}
	b.active = true
	return nil
}

func (b *fakeBrowser) ClickElement(ctx context.Context, selector string) error {
	b.add("browser.click:%s", selector)
	return b.result("click")
}

func (b *fakeBrowser) ClickElementByText(ctx context.Context, text string) error {
	b.add("browser.clicktext:%s", text)
	return b.result("clicktext")
}

func (b *fakeBrowser) TypeInElement(ctx context.Context, selector, text string) error {
	b.add("browser.type:%s=%s", selector, text)
	return b.result("type")
}

func (b *fakeBrowser) ScrollPage(ctx context.Context, direction string, amount int) error {
	b.add("browser.scroll:%s/%d", direction, amount)
	return b.result("scroll")
}

func (b *fakeBrowser) PressKey(ctx context.Context, key string) error {
	b.add("browser.key:%s", key)
	return b.result("key")
}

func (b *fakeBrowser) Active() bool { return b.active }

type fakeDesktop struct {
	callLog
	fail map[string]bool
	// hook runs on every call before the outcome is decided.
	hook func(op string)
}

func (d *fakeDesktop) result(op string) error {
	if d.hook != nil {
		d.hook(op)
	}
	if d.fail[op] {
		return errActuator
	}
	return nil
}

func (d *fakeDesktop) ClickAt(ctx context.Context, x, y int) error {
	d.add("desktop.click:%d,%d", x, y)
	return d.result("click")
}

func (d *fakeDesktop) TypeText(ctx context.Context, text string) error {
	d.add("desktop.type:%s", text)
	return d.result("type")
}

func (d *fakeDesktop) PressKey(ctx context.Context, key string) error {
	d.add("desktop.key:%s", key)
	return d.result("key")
}

func (d *fakeDesktop) ScrollPage(ctx context.Context, direction string, amount int) error {
	d.add("desktop.scroll:%s/%d", direction, amount)
	return d.result("scroll")
}

func (d *fakeDesktop) ClickTemplate(ctx context.Context, imagePath string) error {
	d.add("desktop.template:%s", imagePath)
	return d.result("template")
}

type fakeCapturer struct {
	name string
	err  error
}

func (c fakeCapturer) CaptureScreen(ctx context.Context) (*vision.Screenshot, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &vision.Screenshot{PNG: []byte(c.name), Title: c.name}, nil
}

type fakeAnalyzer struct {
	nilResult bool
	seen      []string
}

func (a *fakeAnalyzer) AnalyzeImage(ctx context.Context, shot *vision.Screenshot) (*vision.Analysis, error) {
	a.seen = append(a.seen, shot.Title)
	if a.nilResult {
		return nil, nil
	}
	return &vision.Analysis{Source: "fake", Title: shot.Title, CurrentState: "ready"}, nil
}

type fakeDecider struct {
	goal, state string
}

func (d *fakeDecider) Decide(ctx context.Context, goal, state string) (*planner.Decision, error) {
	d.goal, d.state = goal, state
	return &planner.Decision{RecommendedAction: "click OK"}, nil
}

// staticPlanner hands the generator a fixed plan payload.
type staticPlanner struct {
	payload string
	panics  bool
}

func (p staticPlanner) PlanTask(ctx context.Context, description string, taskCtx map[string]any) (string, error) {
	if p.panics {
		panic("planner exploded")
	}
	return p.payload, nil
}

func planPayload(t *testing.T, steps ...task.StepSpec) string {
	t.Helper()
	b, err := json.Marshal(task.Plan{Task: "test", Steps: steps})
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func step(n int, action task.Action, params map[string]any, retries int) task.StepSpec {
	return task.StepSpec{
		StepNumber:  n,
		Action:      action,
		Description: fmt.Sprintf("%s step", action),
		Parameters:  params,
		Timeout:     5,
		MaxRetries:  retries,
	}
}
