package tools

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/rahul/pcagent/internal/executor"
	"github.com/rahul/pcagent/internal/vision"
)

const scrollStepPixels = 120

var (
	_ executor.Browser = (*Browser)(nil)
	_ vision.Capturer  = (*Browser)(nil)
)

// BrowserOptions configure the Chrome instance started on first use.
type BrowserOptions struct {
	Headless      bool
	UserDataDir   string
	ScreenshotDir string
	// Timeout bounds a single browser call when the caller's context has
	// no deadline.
	Timeout time.Duration
}

// Browser drives one Chrome tab through chromedp. Chrome is started lazily
// and stays open until Close.
type Browser struct {
	mu            sync.Mutex
	opts          BrowserOptions
	allocCtx      context.Context
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	active        bool
}

func NewBrowser(opts BrowserOptions) *Browser {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Browser{opts: opts}
}

func (b *Browser) initBrowser() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx != nil {
		select {
		case <-b.browserCtx.Done():
			b.cleanup()
		default:
			return b.browserCtx, nil
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", b.opts.Headless),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.WindowSize(1280, 900),
	)
	if b.opts.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(b.opts.UserDataDir))
	}

	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	b.browserCtx, b.browserCancel = chromedp.NewContext(b.allocCtx, chromedp.WithLogf(log.Printf))

	if err := chromedp.Run(b.browserCtx); err != nil {
		b.cleanup()
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}
	return b.browserCtx, nil
}

func (b *Browser) cleanup() {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.browserCtx = nil
	b.allocCtx = nil
	b.active = false
}

// Close shuts Chrome down. The next call starts a fresh instance.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cleanup()
}

// Active reports whether a page has been opened and Chrome is still running.
func (b *Browser) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browserCtx == nil || b.browserCtx.Err() != nil {
		return false
	}
	return b.active
}

// run executes actions in the tab, bounded by ctx's deadline and cancelled
// with it. chromedp needs the tab context as parent, so ctx is linked in
// rather than used directly.
func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	browserCtx, err := b.initBrowser()
	if err != nil {
		return err
	}

	timeout := b.opts.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	runCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (b *Browser) NavigateTo(ctx context.Context, url string) error {
	if err := b.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	b.mu.Lock()
	b.active = true
	b.mu.Unlock()
	return nil
}

func (b *Browser) ClickElement(ctx context.Context, selector string) error {
	err := b.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// ClickElementByText clicks the first visible element whose text contains text.
func (b *Browser) ClickElementByText(ctx context.Context, text string) error {
	sel := textXPath(text)
	err := b.run(ctx,
		chromedp.WaitVisible(sel, chromedp.BySearch),
		chromedp.Click(sel, chromedp.BySearch),
	)
	if err != nil {
		return fmt.Errorf("click text %q: %w", text, err)
	}
	return nil
}

func (b *Browser) TypeInElement(ctx context.Context, selector, text string) error {
	err := b.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Focus(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("type in %s: %w", selector, err)
	}
	return nil
}

func (b *Browser) ScrollPage(ctx context.Context, direction string, amount int) error {
	js, err := scrollScript(direction, amount)
	if err != nil {
		return err
	}
	if err := b.run(ctx, chromedp.Evaluate(js, nil)); err != nil {
		return fmt.Errorf("scroll %s: %w", direction, err)
	}
	return nil
}

func (b *Browser) PressKey(ctx context.Context, key string) error {
	if err := b.run(ctx, chromedp.KeyEvent(browserKey(key))); err != nil {
		return fmt.Errorf("press %s: %w", key, err)
	}
	return nil
}

// CaptureScreen screenshots the current tab together with its URL, title and
// document HTML.
func (b *Browser) CaptureScreen(ctx context.Context) (*vision.Screenshot, error) {
	if !b.Active() {
		return nil, executor.ErrNoBrowserSession
	}

	shot := &vision.Screenshot{CapturedAt: time.Now()}
	err := b.run(ctx,
		chromedp.CaptureScreenshot(&shot.PNG),
		chromedp.Location(&shot.URL),
		chromedp.Title(&shot.Title),
		chromedp.ActionFunc(func(ctx context.Context) error {
			node, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			shot.HTML, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("browser capture: %w", err)
	}

	if b.opts.ScreenshotDir != "" {
		path, err := saveScreenshot(b.opts.ScreenshotDir, "browser", shot.PNG)
		if err != nil {
			log.Printf("Warning: could not save screenshot: %v", err)
		}
		shot.Path = path
	}
	return shot, nil
}

var browserKeys = map[string]string{
	"enter":     kb.Enter,
	"return":    kb.Enter,
	"tab":       kb.Tab,
	"escape":    kb.Escape,
	"esc":       kb.Escape,
	"backspace": kb.Backspace,
	"delete":    kb.Delete,
	"up":        kb.ArrowUp,
	"down":      kb.ArrowDown,
	"left":      kb.ArrowLeft,
	"right":     kb.ArrowRight,
	"home":      kb.Home,
	"end":       kb.End,
	"pageup":    kb.PageUp,
	"pagedown":  kb.PageDown,
	"space":     " ",
}

// browserKey maps a key name to the character sequence chromedp sends.
// Unknown names are sent as typed.
func browserKey(key string) string {
	if k, ok := browserKeys[strings.ToLower(strings.TrimSpace(key))]; ok {
		return k
	}
	return key
}

func scrollScript(direction string, amount int) (string, error) {
	if amount <= 0 {
		amount = 1
	}
	px := amount * scrollStepPixels
	switch strings.ToLower(direction) {
	case "", "down":
		return fmt.Sprintf("window.scrollBy(0, %d)", px), nil
	case "up":
		return fmt.Sprintf("window.scrollBy(0, %d)", -px), nil
	case "right":
		return fmt.Sprintf("window.scrollBy(%d, 0)", px), nil
	case "left":
		return fmt.Sprintf("window.scrollBy(%d, 0)", -px), nil
	}
	return "", fmt.Errorf("invalid scroll direction %q", direction)
}

// textXPath matches elements whose own text contains text.
func textXPath(text string) string {
	return fmt.Sprintf("//*[contains(normalize-space(text()), %s)]", xpathLiteral(strings.TrimSpace(text)))
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = "'" + p + "'"
	}
	return "concat(" + strings.Join(quoted, `, "'", `) + ")"
}

func saveScreenshot(dir, prefix string, png []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%d.png", prefix, time.Now().UnixNano()))
	if err := os.WriteFile(path, png, 0644); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}
