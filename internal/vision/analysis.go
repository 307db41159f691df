// Package vision turns a screen capture into a structured description of
// what is visible: interactive elements, readable text and the page state.
package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Screenshot is one capture of the active session. PNG is always set; the
// page fields are only filled when the capture came from a browser.
type Screenshot struct {
	PNG        []byte    `json:"-"`
	Path       string    `json:"path,omitempty"`
	URL        string    `json:"url,omitempty"`
	Title      string    `json:"title,omitempty"`
	HTML       string    `json:"-"`
	CapturedAt time.Time `json:"captured_at"`
}

// Element is an interactive element found on screen.
type Element struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Purpose  string `json:"purpose,omitempty"`
	Location string `json:"location,omitempty"`
	Selector string `json:"selector,omitempty"`
}

// Analysis is the structured result of analyzing a Screenshot.
type Analysis struct {
	Source             string    `json:"source"`
	URL                string    `json:"url,omitempty"`
	Title              string    `json:"title,omitempty"`
	CurrentState       string    `json:"current_state"`
	Text               string    `json:"text,omitempty"`
	Elements           []Element `json:"elements"`
	RecommendedActions []string  `json:"recommended_actions,omitempty"`
	Confidence         float64   `json:"confidence"`
	HasText            bool      `json:"has_text"`
	UIElementsCount    int       `json:"ui_elements_count"`
	AnalyzedAt         time.Time `json:"analyzed_at"`
}

// Summary is a short description suitable for planner context.
func (a *Analysis) Summary() string {
	var b strings.Builder
	if a.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", a.Title)
	}
	if a.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", a.URL)
	}
	if a.CurrentState != "" {
		fmt.Fprintf(&b, "State: %s\n", a.CurrentState)
	}
	fmt.Fprintf(&b, "Interactive elements: %d\n", a.UIElementsCount)
	for i, e := range a.Elements {
		if i == 10 {
			fmt.Fprintf(&b, "  ... %d more\n", len(a.Elements)-i)
			break
		}
		fmt.Fprintf(&b, "  - %s %q %s\n", e.Type, e.Text, e.Selector)
	}
	return strings.TrimSpace(b.String())
}

// Analyzer inspects a screenshot. A nil Analysis with a nil error means the
// analyzer had nothing to say about this capture.
type Analyzer interface {
	AnalyzeImage(ctx context.Context, shot *Screenshot) (*Analysis, error)
}

// Chain tries analyzers in order and returns the first non-nil analysis.
type Chain []Analyzer

func (c Chain) AnalyzeImage(ctx context.Context, shot *Screenshot) (*Analysis, error) {
	var errs []error
	for _, a := range c {
		res, err := a.AnalyzeImage(ctx, shot)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if res != nil {
			return res, nil
		}
	}
	return nil, errors.Join(errs...)
}

// Capturer grabs the current screen.
type Capturer interface {
	CaptureScreen(ctx context.Context) (*Screenshot, error)
}

// Describer captures the screen and summarizes it for planning.
type Describer struct {
	Capturer Capturer
	Analyzer Analyzer
}

func (d Describer) DescribeScreen(ctx context.Context) (string, error) {
	if d.Capturer == nil || d.Analyzer == nil {
		return "", nil
	}
	shot, err := d.Capturer.CaptureScreen(ctx)
	if err != nil {
		return "", fmt.Errorf("capture failed: %w", err)
	}
	res, err := d.Analyzer.AnalyzeImage(ctx, shot)
	if err != nil || res == nil {
		return "", err
	}
	return res.Summary(), nil
}
