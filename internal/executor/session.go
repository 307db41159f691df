// Package executor runs plans step by step against the desktop, the browser,
// the screen analyzer and the planner, with per-step retries and an abort
// policy.
package executor

import (
	"context"
	"errors"

	"github.com/rahul/pcagent/internal/vision"
)

var (
	ErrUnknownAction    = errors.New("unknown action")
	ErrMissingTarget    = errors.New("click action missing target specification")
	ErrMissingParameter = errors.New("missing parameter")
	ErrNoCollaborator   = errors.New("collaborator not configured")
	ErrPolicyDenied     = errors.New("denied by policy")
	ErrNoAnalysis       = errors.New("screen analysis returned no result")
	ErrNoBrowserSession = errors.New("no active browser session")
	ErrUnsupported      = errors.New("not supported")
)

// Desktop injects OS-level input into whatever window has focus.
type Desktop interface {
	ClickAt(ctx context.Context, x, y int) error
	TypeText(ctx context.Context, text string) error
	PressKey(ctx context.Context, key string) error
	ScrollPage(ctx context.Context, direction string, amount int) error
	ClickTemplate(ctx context.Context, imagePath string) error
}

// Browser drives a single browser tab.
type Browser interface {
	NavigateTo(ctx context.Context, url string) error
	ClickElement(ctx context.Context, selector string) error
	ClickElementByText(ctx context.Context, text string) error
	TypeInElement(ctx context.Context, selector, text string) error
	ScrollPage(ctx context.Context, direction string, amount int) error
	PressKey(ctx context.Context, key string) error
	Active() bool
}

// Session is the single active input target of one Execute call. It is
// passed to every dispatch and never shared between runs.
type Session struct {
	RunID          string
	Browser        Browser
	Desktop        Desktop
	BrowserCapture vision.Capturer
	DesktopCapture vision.Capturer

	// BrowserActive is set once a page has been opened in this run, or when
	// the browser already had one when the run started.
	BrowserActive bool

	// LastAnalysis is the most recent successful analyze result; decide
	// steps use it as the current state.
	LastAnalysis *vision.Analysis
}

func (s *Session) capture(ctx context.Context) (*vision.Screenshot, error) {
	switch {
	case s.BrowserActive && s.BrowserCapture != nil:
		return s.BrowserCapture.CaptureScreen(ctx)
	case s.DesktopCapture != nil:
		return s.DesktopCapture.CaptureScreen(ctx)
	case s.BrowserCapture != nil:
		return s.BrowserCapture.CaptureScreen(ctx)
	}
	return nil, errors.Join(ErrNoCollaborator, errors.New("no screen capture available"))
}
