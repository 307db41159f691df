package task

import "strings"

// Action is the kind of work a single plan step performs.
type Action string

const (
	ActionClick    Action = "click"
	ActionType     Action = "type"
	ActionNavigate Action = "navigate"
	ActionWait     Action = "wait"
	ActionAnalyze  Action = "analyze"
	ActionDecide   Action = "decide"
	ActionScroll   Action = "scroll"
	ActionKey      Action = "key"
)

// Actions lists the full vocabulary in a stable order.
var Actions = []Action{
	ActionClick,
	ActionType,
	ActionNavigate,
	ActionWait,
	ActionAnalyze,
	ActionDecide,
	ActionScroll,
	ActionKey,
}

var actionAliases = map[string]Action{
	"press":      ActionKey,
	"keypress":   ActionKey,
	"key_press":  ActionKey,
	"goto":       ActionNavigate,
	"open":       ActionNavigate,
	"visit":      ActionNavigate,
	"input":      ActionType,
	"fill":       ActionType,
	"type_text":  ActionType,
	"sleep":      ActionWait,
	"pause":      ActionWait,
	"observe":    ActionAnalyze,
	"screenshot": ActionAnalyze,
	"think":      ActionDecide,
	"plan":       ActionDecide,
}

// Known reports whether a is part of the action vocabulary.
func (a Action) Known() bool {
	switch a {
	case ActionClick, ActionType, ActionNavigate, ActionWait,
		ActionAnalyze, ActionDecide, ActionScroll, ActionKey:
		return true
	}
	return false
}

// Critical reports whether a failure of a invalidates every later step.
func (a Action) Critical() bool {
	return a == ActionNavigate || a == ActionAnalyze
}

// ParseAction normalizes raw planner output into an Action. Unknown kinds are
// returned lower-cased so the dispatcher can report them by name.
func ParseAction(raw string) Action {
	s := strings.ToLower(strings.TrimSpace(raw))
	if alias, ok := actionAliases[s]; ok {
		return alias
	}
	return Action(s)
}
