package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/rahul/pcagent/internal/governance"
	"github.com/rahul/pcagent/internal/observability"
	"github.com/rahul/pcagent/internal/planner"
	"github.com/rahul/pcagent/internal/task"
	"github.com/rahul/pcagent/internal/vision"
)

// StepDispatcher performs one attempt of a step.
type StepDispatcher interface {
	Dispatch(ctx context.Context, s *Session, spec task.StepSpec) (any, error)
}

// Dispatcher maps each action to exactly one collaborator call. Analyzer,
// Decider and Policy are optional.
type Dispatcher struct {
	Analyzer vision.Analyzer
	Decider  planner.Decider
	Policy   governance.PolicyEngine
	Logger   *observability.Logger

	// Sleep is used by wait steps; time.Sleep when nil.
	Sleep func(time.Duration)
}

// Dispatch runs spec once. Collaborators get a context bounded by the step
// timeout and detached from ctx's cancellation: an action already in flight
// is never interrupted.
func (d *Dispatcher) Dispatch(ctx context.Context, s *Session, spec task.StepSpec) (any, error) {
	if err := d.checkPolicy(ctx, s, spec); err != nil {
		return nil, err
	}

	timeout := time.Duration(spec.Timeout) * time.Second
	if timeout <= 0 {
		timeout = task.DefaultTimeout * time.Second
	}
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	p := spec.Parameters
	switch spec.Action {
	case task.ActionClick:
		return d.click(callCtx, s, p)
	case task.ActionType:
		return d.typeText(callCtx, s, p)
	case task.ActionNavigate:
		return d.navigate(callCtx, s, p)
	case task.ActionWait:
		return d.wait(p)
	case task.ActionAnalyze:
		return d.analyze(callCtx, s)
	case task.ActionDecide:
		return d.decide(callCtx, s, p)
	case task.ActionScroll:
		return d.scroll(callCtx, s, p)
	case task.ActionKey:
		return d.key(callCtx, s, p)
	default:
		log.Printf("Unknown action: %s", spec.Action)
		return nil, fmt.Errorf("%w %q", ErrUnknownAction, spec.Action)
	}
}

func (d *Dispatcher) checkPolicy(ctx context.Context, s *Session, spec task.StepSpec) error {
	if d.Policy == nil {
		return nil
	}
	args, _ := json.Marshal(spec.Parameters)
	res, err := d.Policy.Evaluate(ctx, governance.Request{
		Action:    string(spec.Action),
		Arguments: string(args),
		RunID:     s.RunID,
	})
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}
	d.Logger.LogPolicyCheck(string(spec.Action), string(res.Effect), res.Reason)
	if res.Effect == governance.EffectDeny {
		return fmt.Errorf("%w: %s", ErrPolicyDenied, res.Reason)
	}
	return nil
}

// click targets, in order of preference: coordinates, selector, text, template.
func (d *Dispatcher) click(ctx context.Context, s *Session, p map[string]any) (any, error) {
	if raw, ok := p["coordinates"]; ok {
		x, y, err := parseCoordinates(raw)
		if err != nil {
			return nil, err
		}
		if s.Desktop == nil {
			return nil, fmt.Errorf("click at coordinates: %w", ErrNoCollaborator)
		}
		if err := s.Desktop.ClickAt(ctx, x, y); err != nil {
			return nil, err
		}
		return fmt.Sprintf("Clicked at (%d, %d)", x, y), nil
	}
	if sel, ok := stringParam(p, "selector"); ok {
		if s.Browser == nil {
			return nil, fmt.Errorf("click selector: %w", ErrNoCollaborator)
		}
		if err := s.Browser.ClickElement(ctx, sel); err != nil {
			return nil, err
		}
		return fmt.Sprintf("Clicked %s", sel), nil
	}
	if text, ok := stringParam(p, "text"); ok {
		if s.Browser == nil {
			return nil, fmt.Errorf("click text: %w", ErrNoCollaborator)
		}
		if err := s.Browser.ClickElementByText(ctx, text); err != nil {
			return nil, err
		}
		return fmt.Sprintf("Clicked element with text %q", text), nil
	}
	if tmpl, ok := stringParam(p, "template"); ok {
		if s.Desktop == nil {
			return nil, fmt.Errorf("click template: %w", ErrNoCollaborator)
		}
		if err := s.Desktop.ClickTemplate(ctx, tmpl); err != nil {
			return nil, err
		}
		return fmt.Sprintf("Clicked template %s", tmpl), nil
	}
	log.Printf("Click action missing target specification")
	return nil, ErrMissingTarget
}

func (d *Dispatcher) typeText(ctx context.Context, s *Session, p map[string]any) (any, error) {
	text, ok := stringParam(p, "text")
	if !ok {
		return nil, fmt.Errorf("type: %w: text", ErrMissingParameter)
	}
	if sel, ok := stringParam(p, "selector"); ok {
		if s.Browser == nil {
			return nil, fmt.Errorf("type into selector: %w", ErrNoCollaborator)
		}
		if err := s.Browser.TypeInElement(ctx, sel, text); err != nil {
			return nil, err
		}
		return fmt.Sprintf("Typed text in %s", sel), nil
	}
	if s.Desktop == nil {
		return nil, fmt.Errorf("type: %w", ErrNoCollaborator)
	}
	if err := s.Desktop.TypeText(ctx, text); err != nil {
		return nil, err
	}
	return "Typed text", nil
}

func (d *Dispatcher) navigate(ctx context.Context, s *Session, p map[string]any) (any, error) {
	url, ok := stringParam(p, "url")
	if !ok {
		return nil, fmt.Errorf("navigate: %w: url", ErrMissingParameter)
	}
	if s.Browser == nil {
		return nil, fmt.Errorf("navigate: %w", ErrNoCollaborator)
	}
	if err := s.Browser.NavigateTo(ctx, url); err != nil {
		return nil, err
	}
	s.BrowserActive = true
	return fmt.Sprintf("Navigated to %s", url), nil
}

func (d *Dispatcher) wait(p map[string]any) (any, error) {
	secs := min(max(floatParam(p, "duration", 1.0), 0), task.MaxWaitSeconds)
	sleep := d.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	sleep(time.Duration(secs * float64(time.Second)))
	return fmt.Sprintf("Waited %.1fs", secs), nil
}

func (d *Dispatcher) analyze(ctx context.Context, s *Session) (any, error) {
	if d.Analyzer == nil {
		return nil, fmt.Errorf("analyze: %w", ErrNoCollaborator)
	}
	shot, err := s.capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("screen capture failed: %w", err)
	}
	analysis, err := d.Analyzer.AnalyzeImage(ctx, shot)
	if err != nil {
		return nil, err
	}
	if analysis == nil {
		return nil, ErrNoAnalysis
	}
	s.LastAnalysis = analysis
	return analysis, nil
}

func (d *Dispatcher) decide(ctx context.Context, s *Session, p map[string]any) (any, error) {
	if d.Decider == nil {
		return "Skipped: no planner available", nil
	}
	goal, _ := stringParam(p, "task")
	state := ""
	if s.LastAnalysis != nil {
		state = s.LastAnalysis.Summary()
	}
	return d.Decider.Decide(ctx, goal, state)
}

func (d *Dispatcher) scroll(ctx context.Context, s *Session, p map[string]any) (any, error) {
	direction, ok := stringParam(p, "direction")
	if !ok {
		direction = "down"
	}
	amount := int(floatParam(p, "amount", 3))

	var err error
	switch {
	case s.BrowserActive && s.Browser != nil:
		err = s.Browser.ScrollPage(ctx, direction, amount)
	case s.Desktop != nil:
		err = s.Desktop.ScrollPage(ctx, direction, amount)
	default:
		err = fmt.Errorf("scroll: %w", ErrNoCollaborator)
	}
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("Scrolled %s %d", direction, amount), nil
}

func (d *Dispatcher) key(ctx context.Context, s *Session, p map[string]any) (any, error) {
	key, ok := stringParam(p, "key")
	if !ok {
		return nil, fmt.Errorf("key: %w: key", ErrMissingParameter)
	}

	var err error
	switch {
	case s.BrowserActive && s.Browser != nil:
		err = s.Browser.PressKey(ctx, key)
	case s.Desktop != nil:
		err = s.Desktop.PressKey(ctx, key)
	default:
		err = fmt.Errorf("key: %w", ErrNoCollaborator)
	}
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("Pressed key: %s", key), nil
}

func stringParam(p map[string]any, key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, s != ""
	default:
		return fmt.Sprint(v), true
	}
}

func floatParam(p map[string]any, key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

// parseCoordinates accepts [x, y], {"x": x, "y": y} and "x,y".
func parseCoordinates(raw any) (int, int, error) {
	toInt := func(v any) (int, bool) {
		switch n := v.(type) {
		case float64:
			return int(n), true
		case int:
			return n, true
		case string:
			i, err := strconv.Atoi(strings.TrimSpace(n))
			return i, err == nil
		}
		return 0, false
	}

	switch c := raw.(type) {
	case []any:
		if len(c) == 2 {
			x, okX := toInt(c[0])
			y, okY := toInt(c[1])
			if okX && okY {
				return x, y, nil
			}
		}
	case []int:
		if len(c) == 2 {
			return c[0], c[1], nil
		}
	case map[string]any:
		x, okX := toInt(c["x"])
		y, okY := toInt(c["y"])
		if okX && okY {
			return x, y, nil
		}
	case string:
		parts := strings.Split(c, ",")
		if len(parts) == 2 {
			x, okX := toInt(parts[0])
			y, okY := toInt(parts[1])
			if okX && okY {
				return x, y, nil
			}
		}
	}
	return 0, 0, fmt.Errorf("invalid coordinates %v", raw)
}
